// Package config loads the runtime configuration from JSON with environment
// overrides, and watches the file for live reloads.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChamsBouzaiene/omni/internal/llm"
)

// CacheConfig controls the router's response cache.
type CacheConfig struct {
	Enabled  bool `json:"enabled"`
	Capacity int  `json:"capacity,omitempty"`
}

// MemoryConfig bounds the conversation log.
type MemoryConfig struct {
	MaxMessages      int `json:"max_messages,omitempty"`
	SummaryThreshold int `json:"summary_threshold,omitempty"`
}

// UsageConfig controls token accounting.
type UsageConfig struct {
	Enabled  bool   `json:"enabled"`
	FilePath string `json:"file_path,omitempty"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// SandboxConfig configures command execution isolation.
type SandboxConfig struct {
	Enabled     bool   `json:"enabled"`
	Image       string `json:"image,omitempty"`
	MemoryLimit string `json:"memory_limit,omitempty"` // human size, e.g. "512m"
	TimeoutSec  int    `json:"timeout_sec,omitempty"`
}

// KnowledgeConfig configures the lesson store.
type KnowledgeConfig struct {
	Enabled bool   `json:"enabled"`
	Dir     string `json:"dir,omitempty"`
}

// Config is the full runtime configuration.
type Config struct {
	MaxSteps     int             `json:"max_steps,omitempty"`
	Primary      llm.Provider    `json:"primary"`
	Backups      []llm.Provider  `json:"backups,omitempty"`
	EnabledTools []string        `json:"enabled_tools,omitempty"`
	Workspace    string          `json:"workspace,omitempty"`
	Cache        CacheConfig     `json:"cache"`
	Memory       MemoryConfig    `json:"memory"`
	Usage        UsageConfig     `json:"usage"`
	Search       SearchConfig    `json:"search"`
	Sandbox      SandboxConfig   `json:"sandbox"`
	Knowledge    KnowledgeConfig `json:"knowledge"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		MaxSteps:  30,
		Workspace: "workspace",
		Cache:     CacheConfig{Enabled: true, Capacity: 64},
		Usage:     UsageConfig{Enabled: true, FilePath: "usage.json"},
		Knowledge: KnowledgeConfig{Enabled: true, Dir: "knowledge"},
	}
}

// Load reads the configuration at path and applies environment overrides.
// A missing file yields the defaults (the primary model must then come from
// OMNI_MODEL); a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults plus env only.
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets from the environment so keys stay out of the
// config file. Provider keys are matched by kind.
func applyEnv(cfg *Config) {
	fillKey := func(p *llm.Provider) {
		if p.APIKey != "" {
			return
		}
		switch p.Kind {
		case "anthropic":
			p.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			p.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	fillKey(&cfg.Primary)
	for i := range cfg.Backups {
		fillKey(&cfg.Backups[i])
	}

	if cfg.Primary.Model == "" {
		cfg.Primary.Model = os.Getenv("OMNI_MODEL")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SEARCH_API_KEY")
	}
	if ws := os.Getenv("OMNI_WORKSPACE"); ws != "" {
		cfg.Workspace = ws
	}
}

func (c *Config) validate() error {
	if c.Primary.Model == "" {
		return fmt.Errorf("primary provider model is required")
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 30
	}
	if c.Workspace != "" {
		abs, err := filepath.Abs(c.Workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace path: %w", err)
		}
		c.Workspace = abs
	}
	return nil
}

// Providers returns the primary followed by the backups.
func (c *Config) Providers() []llm.Provider {
	return append([]llm.Provider{c.Primary}, c.Backups...)
}
