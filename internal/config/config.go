// Package config loads the runtime configuration: defaults, then a TOML
// file, then environment overrides (env wins).
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Runtime    RuntimeConfig    `toml:"runtime"`
	Compaction CompactionConfig `toml:"compaction"`
	Store      StoreConfig      `toml:"store"`
	Observer   ObserverConfig   `toml:"observer"`
	Sandbox    SandboxConfig    `toml:"sandbox"`
}

type LLMConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

type RuntimeConfig struct {
	WorkspacePath string `toml:"workspace_path"`
	TasksRoot     string `toml:"tasks_root"`
	TraceDir      string `toml:"trace_dir"`
}

type CompactionConfig struct {
	ContextWindow int     `toml:"context_window"`
	TriggerRatio  float64 `toml:"trigger_ratio"`
	PreserveRatio float64 `toml:"preserve_ratio"`
	CharsPerToken int     `toml:"chars_per_token"`
}

type StoreConfig struct {
	SQLitePath  string `toml:"sqlite_path"`
	PostgresURL string `toml:"postgres_url"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

type SandboxConfig struct {
	Enabled bool   `toml:"enabled"`
	Image   string `toml:"image"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	workspace := filepath.Join(home, "picoagent-workspace")
	return Config{
		LLM: LLMConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4.1-mini"},
		Runtime: RuntimeConfig{
			WorkspacePath: workspace,
			TasksRoot:     filepath.Join(workspace, "tasks"),
			TraceDir:      filepath.Join(workspace, "traces"),
		},
		Store: StoreConfig{SQLitePath: filepath.Join(workspace, "picoagent.db")},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "picoagent.toml"
	}
	if _, err := os.Stat(path); err == nil {
		_, _ = toml.DecodeFile(path, &cfg)
	}

	if v := os.Getenv("PICOAGENT_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("PICOAGENT_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("PICOAGENT_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("PICOAGENT_WORKSPACE"); v != "" {
		cfg.Runtime.WorkspacePath = v
		cfg.Runtime.TasksRoot = filepath.Join(v, "tasks")
		cfg.Runtime.TraceDir = filepath.Join(v, "traces")
		cfg.Store.SQLitePath = filepath.Join(v, "picoagent.db")
	}
	return cfg
}
