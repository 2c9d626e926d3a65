package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Port     int            `yaml:"port"`
	AI       AIConfig       `yaml:"ai,omitempty"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sessions SessionsConfig `yaml:"sessions,omitempty"`
	History  HistoryConfig  `yaml:"history,omitempty"`
}

// AIConfig selects and configures the chat backend used for form revisions.
// Provider is one of: "openai", "deepseek", "gemini", "ollama", "claude",
// "rules".
type AIConfig struct {
	Provider string `yaml:"provider,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

type SessionsConfig struct {
	// IdleTTLMinutes controls how long an untouched session keeps its form
	// before the sweeper discards it. Zero means the default (120).
	IdleTTLMinutes int `yaml:"idle_ttl_minutes,omitempty"`
}

type HistoryConfig struct {
	// Disabled turns off the revision audit log entirely.
	Disabled      bool   `yaml:"disabled,omitempty"`
	Path          string `yaml:"path,omitempty"`
	RetentionDays int    `yaml:"retention_days,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Port: 8586,
		AI: AIConfig{
			Provider: "ollama",
			Model:    "deepseek-r1:8b",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Sessions: SessionsConfig{
			IdleTTLMinutes: 120,
		},
		History: HistoryConfig{
			Path:          filepath.Join(ConfigDir(), "history.db"),
			RetentionDays: 30,
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".formforge")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".formforge.yaml")
}

func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets credentials come from the environment so they never have to
// live in the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FORMFORGE_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv("FORMFORGE_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("FORMFORGE_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("FORMFORGE_MODEL"); v != "" {
		c.AI.Model = v
	}
}

func (c *Config) Save() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
