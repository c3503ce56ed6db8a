package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKey != "" {
		t.Error("default API key must be empty")
	}
	if cfg.MaxFileBytes() != 50<<20 || cfg.Listen != ":8090" || cfg.Theme != "custom_blue" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Database() != filepath.Join("data", "structura.db") {
		t.Errorf("db = %s", cfg.Database())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "structura.yaml", `
listen: ":9000"
theme: dark_green
ai:
  model: my/model
  timeout: 30s
  max_retries: 1
worker:
  concurrency: 4
`)
	cfg, err := Load(path, noEnvFile(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" || cfg.Theme != "dark_green" || cfg.AI.Model != "my/model" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AI.Timeout != 30*time.Second || cfg.AI.MaxRetries != 1 || cfg.Worker.Concurrency != 4 {
		t.Errorf("ai = %+v, worker = %+v", cfg.AI, cfg.Worker)
	}
	if cfg.AI.BaseURL != "https://openrouter.ai/api/v1" || cfg.AI.MaxTokens != 4000 {
		t.Errorf("unset fields lost their defaults: %+v", cfg.AI)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "structura.yaml", "listen: \":9000\"\nai:\n  api_key: from-file\n")
	t.Setenv("OPENROUTER_API_KEY", "from-env")
	t.Setenv("STRUCTURA_LISTEN", ":7000")
	t.Setenv("STRUCTURA_MAX_FILE_MB", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path, noEnvFile(t))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.APIKey != "from-env" || cfg.Listen != ":7000" || cfg.MaxFileMB != 10 || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	t.Setenv("STRUCTURA_MODEL", "")
	env := writeFile(t, ".env", "STRUCTURA_MODEL=dotenv/model\nSTRUCTURA_THEME=light_blue\n")
	t.Setenv("STRUCTURA_THEME", "dark_gray")
	os.Unsetenv("STRUCTURA_MODEL")

	cfg, err := Load("", env)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.Model != "dotenv/model" {
		t.Errorf("model = %q", cfg.AI.Model)
	}
	if cfg.Theme != "dark_gray" {
		t.Errorf("process env should win over .env, theme = %q", cfg.Theme)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t)); err == nil {
		t.Error("expected error for a missing config file")
	}
	bad := writeFile(t, "bad.yaml", "listen: [")
	if _, err := Load(bad, noEnvFile(t)); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"size", func(c *Config) { c.MaxFileMB = 0 }, "max_file_mb"},
		{"theme", func(c *Config) { c.Theme = "../x y" }, "theme"},
		{"level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"auth", func(c *Config) { c.AuthHash = "admin:plain" }, "auth_hash"},
		{"base url", func(c *Config) { c.AI.BaseURL = "ftp://x" }, "base_url"},
		{"temperature", func(c *Config) { c.AI.Temperature = 3 }, "temperature"},
		{"tokens", func(c *Config) { c.AI.MaxTokens = 0 }, "max_tokens"},
		{"workers", func(c *Config) { c.Worker.Concurrency = 0 }, "concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var b strings.Builder
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	log := cfg.NewLogger(&b)
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	if strings.Contains(b.String(), "hidden") || !strings.Contains(b.String(), `"msg":"shown"`) {
		t.Errorf("output = %s", b.String())
	}
}
