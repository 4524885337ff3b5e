// Package tcase loads generation requests from YAML suite files or from
// command-line flags.
package tcase

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pilot/internal/types"
)

// Suite is the on-disk format: a list of test cases sharing optional
// suite-level defaults.
type Suite struct {
	URL   string                    `yaml:"url"`
	Mode  types.GenerationMode      `yaml:"mode"`
	Cases []types.GenerationRequest `yaml:"cases"`
}

// LoadFile parses a suite file and resolves per-case defaults.
func LoadFile(path string) ([]types.GenerationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite %s: %w", path, err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse suite %s: %w", path, err)
	}
	if len(suite.Cases) == 0 {
		return nil, fmt.Errorf("suite %s has no cases", path)
	}

	for i := range suite.Cases {
		c := &suite.Cases[i]
		if c.URL == "" {
			c.URL = suite.URL
		}
		if c.Mode == "" {
			c.Mode = suite.Mode
		}
		if err := validate(*c, i); err != nil {
			return nil, fmt.Errorf("suite %s: %w", path, err)
		}
	}
	return suite.Cases, nil
}

// FromFlags builds a single request from command-line input. Steps are
// given as one flag value each, in order.
func FromFlags(title, url string, steps []string, mode string) (types.GenerationRequest, error) {
	req := types.GenerationRequest{
		Title: title,
		URL:   url,
		Steps: steps,
		Mode:  types.GenerationMode(mode),
	}
	if req.Title == "" {
		req.Title = "generated test"
	}
	if err := validate(req, 0); err != nil {
		return types.GenerationRequest{}, err
	}
	return req, nil
}

func validate(req types.GenerationRequest, index int) error {
	if strings.TrimSpace(req.URL) == "" {
		return fmt.Errorf("case %d (%q): url is required", index+1, req.Title)
	}
	if len(req.Steps) == 0 {
		return fmt.Errorf("case %d (%q): at least one step is required", index+1, req.Title)
	}
	switch req.Mode {
	case "", types.ModeAuto, types.ModeStepByStep, types.ModeFast:
	default:
		return fmt.Errorf("case %d (%q): unknown mode %q", index+1, req.Title, req.Mode)
	}
	return nil
}
