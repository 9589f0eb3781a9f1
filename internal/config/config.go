package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// configDir is the configuration directory path
	// Can be set via SetConfigDir before loading config
	configDir     string
	configDirInit bool
)

// SetConfigDir sets a custom configuration directory
// Must be called before any config loading functions
func SetConfigDir(dir string) {
	configDir = dir
	configDirInit = true
}

// GetConfigDir returns the configuration directory
// Priority: 1. Manually set via SetConfigDir, 2. ~/.duet
func GetConfigDir() string {
	if !configDirInit {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			configDir = filepath.Join(homeDir, ".duet")
		}
		configDirInit = true
	}
	return configDir
}

// Config application configuration structure
type Config struct {
	Model Model `yaml:"model"`
	Agent Agent `yaml:"agent"`
	Log   Log   `yaml:"log"`
	CLI   CLI   `yaml:"cli"`
}

// Model LLM provider configuration
type Model struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	MaxRetries  int     `yaml:"max_retries"`
}

// Agent conversation loop configuration
type Agent struct {
	MaxToolRounds      int  `yaml:"max_tool_rounds"`
	ToolTimeoutSeconds int  `yaml:"tool_timeout_seconds"`
	ConcurrentTools    bool `yaml:"concurrent_tools"`
	EnableLoopGuard    bool `yaml:"enable_loop_guard"`
	LoopWindow         int  `yaml:"loop_window"`
}

// Log file logging configuration
type Log struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	MaxDays int    `yaml:"max_days"`
}

// CLI interactive shell configuration
type CLI struct {
	HistoryFile string `yaml:"history_file"`
	Color       bool   `yaml:"color"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	dir := GetConfigDir()
	return &Config{
		Model: Model{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-20250514",
			APIKey:      "",
			Temperature: 0.7,
			MaxTokens:   4096,
			MaxRetries:  2,
		},
		Agent: Agent{
			MaxToolRounds:      50,
			ToolTimeoutSeconds: 30,
			ConcurrentTools:    false,
			EnableLoopGuard:    true,
			LoopWindow:         10,
		},
		Log: Log{
			Dir:     filepath.Join(dir, "logs"),
			Level:   "info",
			MaxDays: 7,
		},
		CLI: CLI{
			HistoryFile: filepath.Join(dir, "history"),
			Color:       true,
		},
	}
}

// ConfigPath returns the configuration file path
func ConfigPath() (string, error) {
	dir := GetConfigDir()
	if dir == "" {
		return "", fmt.Errorf("failed to determine config directory")
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from file and merges API keys from the
// environment. A missing config file is not an error: defaults are saved
// and returned.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.mergeEnvKeys()
		if err := Save(cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Use default values as base so partial files stay valid.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.mergeEnvKeys()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeEnvKeys fills Model.APIKey from the environment when the file left
// it empty. The variable consulted depends on the provider.
func (c *Config) mergeEnvKeys() {
	if c.Model.APIKey != "" {
		return
	}
	switch strings.ToLower(c.Model.Provider) {
	case "anthropic":
		c.Model.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Save saves configuration to file
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	content := "# Duet Configuration File\n\n" + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	provider := strings.ToLower(strings.TrimSpace(c.Model.Provider))
	if provider != "anthropic" && provider != "openai" {
		return fmt.Errorf("config error: model.provider must be anthropic or openai, got %q", c.Model.Provider)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("config error: model.model cannot be empty")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("config error: model.temperature must be between 0 and 2")
	}
	if c.Model.MaxTokens <= 0 {
		return fmt.Errorf("config error: model.max_tokens must be greater than 0")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("config error: model.max_retries cannot be negative")
	}

	if c.Agent.MaxToolRounds <= 0 {
		return fmt.Errorf("config error: agent.max_tool_rounds must be greater than 0")
	}
	if c.Agent.ToolTimeoutSeconds <= 0 {
		return fmt.Errorf("config error: agent.tool_timeout_seconds must be greater than 0")
	}
	if c.Agent.EnableLoopGuard && c.Agent.LoopWindow < 2 {
		return fmt.Errorf("config error: agent.loop_window must be at least 2")
	}

	if c.Log.Dir == "" {
		return fmt.Errorf("config error: log.dir cannot be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config error: log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}

	return nil
}

// IsAPIKeyConfigured checks if API key is configured
func (c *Config) IsAPIKeyConfigured() bool {
	return c.Model.APIKey != ""
}

// String returns string representation of config (hides sensitive info)
func (c *Config) String() string {
	return fmt.Sprintf(`Duet Configuration:
  Model:
    Provider: %s
    Model: %s
    API Key: %s
    Temperature: %.1f
    Max Tokens: %d
    Max Retries: %d
  Agent:
    Max Tool Rounds: %d
    Tool Timeout Seconds: %d
    Concurrent Tools: %v
    Loop Guard: %v (window %d)
  Log:
    Dir: %s
    Level: %s
    Max Days: %d
  CLI:
    History File: %s
    Color: %v`,
		c.Model.Provider,
		c.Model.Model,
		redactAPIKey(c.Model.APIKey),
		c.Model.Temperature,
		c.Model.MaxTokens,
		c.Model.MaxRetries,
		c.Agent.MaxToolRounds,
		c.Agent.ToolTimeoutSeconds,
		c.Agent.ConcurrentTools,
		c.Agent.EnableLoopGuard,
		c.Agent.LoopWindow,
		c.Log.Dir,
		c.Log.Level,
		c.Log.MaxDays,
		c.CLI.HistoryFile,
		c.CLI.Color,
	)
}

func redactAPIKey(value string) string {
	if value == "" {
		return "(not configured)"
	}
	if len(value) > 8 {
		return value[:8] + "..."
	}
	return "***"
}
