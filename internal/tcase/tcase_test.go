package tcase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pilot/internal/types"
)

func writeSuite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileResolvesSuiteDefaults(t *testing.T) {
	path := writeSuite(t, `
url: https://example.com
mode: fast
cases:
  - title: login works
    steps:
      - fill the email field
      - click login
  - title: signup works
    url: https://example.com/signup
    mode: step-by-step
    steps:
      - click the signup link
`)

	cases, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)

	assert.Equal(t, "https://example.com", cases[0].URL)
	assert.Equal(t, types.ModeFast, cases[0].Mode)
	assert.Len(t, cases[0].Steps, 2)

	// Per-case settings win over suite defaults.
	assert.Equal(t, "https://example.com/signup", cases[1].URL)
	assert.Equal(t, types.ModeStepByStep, cases[1].Mode)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no cases", "url: https://example.com\n", "has no cases"},
		{"missing url", "cases:\n  - title: t\n    steps: [a]\n", "url is required"},
		{"no steps", "url: u\ncases:\n  - title: t\n", "at least one step"},
		{"bad mode", "url: u\ncases:\n  - title: t\n    mode: turbo\n    steps: [a]\n", "unknown mode"},
		{"not yaml", ": : :\n", "parse suite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeSuite(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read suite")
}

func TestFromFlags(t *testing.T) {
	req, err := FromFlags("login works", "https://example.com", []string{"click login"}, "auto")
	require.NoError(t, err)
	assert.Equal(t, "login works", req.Title)
	assert.Equal(t, types.ModeAuto, req.Mode)

	req, err = FromFlags("", "https://example.com", []string{"click login"}, "")
	require.NoError(t, err)
	assert.Equal(t, "generated test", req.Title)

	_, err = FromFlags("t", "", []string{"click"}, "")
	assert.ErrorContains(t, err, "url is required")

	_, err = FromFlags("t", "https://example.com", nil, "")
	assert.ErrorContains(t, err, "at least one step")
}
