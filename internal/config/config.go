// Package config loads and validates pilot configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pilot configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configures the decision and synthesis oracles.
	LLM LLMConfig `yaml:"llm"`

	// Browser configures the page driver.
	Browser BrowserConfig `yaml:"browser"`

	// Cache configures the decision cache backend.
	Cache CacheConfig `yaml:"cache"`

	// Execution configures the orchestrator and repair loop.
	Execution ExecutionConfig `yaml:"execution"`

	// Runner configures artifact compile+run.
	Runner RunnerConfig `yaml:"runner"`

	// Logging configures categorized debug logging.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the oracle clients.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// TimeoutDuration parses the configured timeout, defaulting to 120s.
func (c LLMConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 120 * time.Second
}

// BrowserConfig configures the rod page driver.
type BrowserConfig struct {
	Headless            bool   `yaml:"headless"`
	DebuggerURL         string `yaml:"debugger_url"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`

	// DOM snapshot pruning. The pruned snapshot feeds the decision oracle
	// and the fingerprint; the full snapshot is reserved for repairs.
	SkipStyles      bool `yaml:"skip_styles"`
	SkipScripts     bool `yaml:"skip_scripts"`
	InteractiveOnly bool `yaml:"interactive_only"`
	MaxTextLength   int  `yaml:"max_text_length"`
}

// NavigationTimeout returns the navigation timeout, defaulting to 30s.
func (c BrowserConfig) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// CacheConfig selects and configures the decision cache backend.
type CacheConfig struct {
	Backend    string      `yaml:"backend"` // memory, file, sqlite, redis
	FilePath   string      `yaml:"file_path"`
	SQLitePath string      `yaml:"sqlite_path"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig configures the networked cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ExecutionConfig configures the orchestrator.
type ExecutionConfig struct {
	Concurrency       int    `yaml:"concurrency"`
	MaxRepairAttempts int    `yaml:"max_repair_attempts"`
	FailFast          bool   `yaml:"fail_fast"`
	CaseTimeout       string `yaml:"case_timeout"`
	OutputDir         string `yaml:"output_dir"`
}

// CaseTimeoutDuration parses the per-test-case timeout, defaulting to 10m.
func (c ExecutionConfig) CaseTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.CaseTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Minute
}

// RunnerConfig configures artifact verification.
type RunnerConfig struct {
	Command    []string `yaml:"command"`
	FileName   string   `yaml:"file_name"`
	ScratchDir string   `yaml:"scratch_dir"`
	Timeout    string   `yaml:"timeout"`
}

// TimeoutDuration parses the runner timeout, defaulting to 5m.
func (c RunnerConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Minute
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Dir        string          `yaml:"dir"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "pilot",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "120s",
		},

		Browser: BrowserConfig{
			Headless:            true,
			ViewportWidth:       1280,
			ViewportHeight:      720,
			NavigationTimeoutMs: 30000,
			SkipStyles:          true,
			SkipScripts:         true,
			InteractiveOnly:     false,
			MaxTextLength:       256,
		},

		Cache: CacheConfig{
			Backend:    "file",
			FilePath:   "cache/step_cache.json",
			SQLitePath: "cache/step_cache.db",
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},

		Execution: ExecutionConfig{
			Concurrency:       1,
			MaxRepairAttempts: 3,
			FailFast:          false,
			CaseTimeout:       "10m",
			OutputDir:         "generated",
		},

		Runner: RunnerConfig{
			Command:    []string{"go", "test", "-run", "TestGenerated", "."},
			FileName:   "generated_test.go",
			ScratchDir: "",
			Timeout:    "5m",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
			Dir:       "logs",
		},
	}
}

// Load reads configuration from path (optional), then applies environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment environments inject secrets and
// topology without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PILOT_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PILOT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("PILOT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PILOT_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := os.Getenv("PILOT_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("PILOT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Execution.Concurrency = n
		}
	}
}

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.Execution.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Execution.Concurrency)
	}
	if c.Execution.MaxRepairAttempts < 1 {
		return fmt.Errorf("max_repair_attempts must be >= 1, got %d", c.Execution.MaxRepairAttempts)
	}
	return nil
}
