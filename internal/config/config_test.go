package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setTestConfigDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "duet")
	SetConfigDir(dir)
	t.Cleanup(func() {
		configDir = ""
		configDirInit = false
	})
	return dir
}

func TestDefaultConfig(t *testing.T) {
	setTestConfigDir(t)
	cfg := DefaultConfig()

	if cfg.Model.Provider != "anthropic" {
		t.Errorf("Expected provider to be anthropic, got %s", cfg.Model.Provider)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("Expected MaxTokens 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Agent.MaxToolRounds != 50 {
		t.Errorf("Expected MaxToolRounds 50, got %d", cfg.Agent.MaxToolRounds)
	}
	if !cfg.Agent.EnableLoopGuard {
		t.Error("Expected loop guard to be enabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Log.Level)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Model.Provider = "cohere" }, true},
		{"empty model", func(c *Config) { c.Model.Model = "" }, true},
		{"temperature out of range", func(c *Config) { c.Model.Temperature = 3.0 }, true},
		{"zero max tokens", func(c *Config) { c.Model.MaxTokens = 0 }, true},
		{"negative retries", func(c *Config) { c.Model.MaxRetries = -1 }, true},
		{"zero tool rounds", func(c *Config) { c.Agent.MaxToolRounds = 0 }, true},
		{"zero tool timeout", func(c *Config) { c.Agent.ToolTimeoutSeconds = 0 }, true},
		{"loop window too small", func(c *Config) { c.Agent.LoopWindow = 1 }, true},
		{"loop window ignored when guard off", func(c *Config) {
			c.Agent.EnableLoopGuard = false
			c.Agent.LoopWindow = 0
		}, false},
		{"empty log dir", func(c *Config) { c.Log.Dir = "" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
	}

	setTestConfigDir(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := setTestConfigDir(t)

	cfg := DefaultConfig()
	cfg.Model.APIKey = "test-api-key"
	cfg.Agent.MaxToolRounds = 25

	if err := Save(cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file was not written: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Model.APIKey != "test-api-key" {
		t.Errorf("Expected APIKey test-api-key, got %s", loaded.Model.APIKey)
	}
	if loaded.Agent.MaxToolRounds != 25 {
		t.Errorf("Expected MaxToolRounds 25, got %d", loaded.Agent.MaxToolRounds)
	}
}

func TestLoadCreatesDefaultConfig(t *testing.T) {
	dir := setTestConfigDir(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Model.Provider != "anthropic" {
		t.Errorf("Expected default provider, got %s", cfg.Model.Provider)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Error("Load should have written a default config file")
	}
}

func TestLoadMergesPartialFile(t *testing.T) {
	dir := setTestConfigDir(t)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	partial := "model:\n  model: claude-opus-4-20250514\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Model.Model != "claude-opus-4-20250514" {
		t.Errorf("File value should win, got %s", cfg.Model.Model)
	}
	if cfg.Agent.MaxToolRounds != 50 {
		t.Errorf("Defaults should fill unset fields, got %d", cfg.Agent.MaxToolRounds)
	}
}

func TestMergeEnvKeys(t *testing.T) {
	setTestConfigDir(t)
	t.Setenv("ANTHROPIC_API_KEY", "env-anthropic-key")
	t.Setenv("OPENAI_API_KEY", "env-openai-key")

	cfg := DefaultConfig()
	cfg.mergeEnvKeys()
	if cfg.Model.APIKey != "env-anthropic-key" {
		t.Errorf("Expected anthropic env key, got %s", cfg.Model.APIKey)
	}

	cfg = DefaultConfig()
	cfg.Model.Provider = "openai"
	cfg.mergeEnvKeys()
	if cfg.Model.APIKey != "env-openai-key" {
		t.Errorf("Expected openai env key, got %s", cfg.Model.APIKey)
	}

	cfg = DefaultConfig()
	cfg.Model.APIKey = "explicit"
	cfg.mergeEnvKeys()
	if cfg.Model.APIKey != "explicit" {
		t.Errorf("Explicit key should win over env, got %s", cfg.Model.APIKey)
	}
}

func TestStringRedactsAPIKey(t *testing.T) {
	setTestConfigDir(t)
	cfg := DefaultConfig()
	cfg.Model.APIKey = "sk-secret-value-1234567890"

	s := cfg.String()
	if strings.Contains(s, "secret-value") {
		t.Error("String() must not leak the full API key")
	}
	if !strings.Contains(s, "sk-secre...") {
		t.Errorf("Expected redacted prefix in output:\n%s", s)
	}
}
