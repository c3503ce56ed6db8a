// Package config loads structura settings from a YAML file, a .env file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/structura/horosafe"
)

// Config holds the full structura configuration.
type Config struct {
	Listen           string       `yaml:"listen"`
	DataDir          string       `yaml:"data_dir"`
	DBPath           string       `yaml:"db_path"` // default <data_dir>/structura.db
	MaxFileMB        int          `yaml:"max_file_mb"`
	Theme            string       `yaml:"theme"`
	ThemesDir        string       `yaml:"themes_dir"` // extra *.yaml themes, optional
	AuthHash         string       `yaml:"auth_hash"`  // "user:$2a$..." enables basic auth
	LogLevel         string       `yaml:"log_level"`
	UploadsPerMinute int          `yaml:"uploads_per_minute"` // per IP, 0 disables
	AI               AIConfig     `yaml:"ai"`
	OCR              OCRConfig    `yaml:"ocr"`
	Worker           WorkerConfig `yaml:"worker"`
}

// AIConfig configures the chat-completions provider.
type AIConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int64         `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// OCRConfig configures the tesseract binary.
type OCRConfig struct {
	Binary string `yaml:"binary"`
	Lang   string `yaml:"lang"`
}

// WorkerConfig configures background processing.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// DefaultConfig returns sane defaults. The API key is always empty.
func DefaultConfig() *Config {
	return &Config{
		Listen:           ":8090",
		DataDir:          "data",
		MaxFileMB:        50,
		Theme:            "custom_blue",
		LogLevel:         "info",
		UploadsPerMinute: 20,
		AI: AIConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			Model:        "deepseek/deepseek-r1-0528-qwen3-8b:free",
			Temperature:  0.1,
			MaxTokens:    4000,
			Timeout:      60 * time.Second,
			MaxRetries:   3,
			RetryBackoff: time.Second,
		},
		OCR:    OCRConfig{Binary: "tesseract"},
		Worker: WorkerConfig{Concurrency: 2},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then variables from envFiles (".env" when none is
// given; missing files are skipped), then the process environment. The
// result is validated.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"OPENROUTER_API_KEY":  &c.AI.APIKey,
		"OPENROUTER_BASE_URL": &c.AI.BaseURL,
		"STRUCTURA_MODEL":     &c.AI.Model,
		"STRUCTURA_LISTEN":    &c.Listen,
		"STRUCTURA_DATA_DIR":  &c.DataDir,
		"STRUCTURA_THEME":     &c.Theme,
		"STRUCTURA_AUTH_HASH": &c.AuthHash,
		"LOG_LEVEL":           &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("STRUCTURA_MAX_FILE_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("STRUCTURA_MAX_FILE_MB: %w", err)
		}
		c.MaxFileMB = n
	}
	return nil
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if err := horosafe.ValidateIdentifier(c.Theme); err != nil {
		return fmt.Errorf("theme: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.UploadsPerMinute < 0 {
		return fmt.Errorf("uploads_per_minute must be >= 0")
	}
	if c.AuthHash != "" {
		user, hash, ok := strings.Cut(c.AuthHash, ":")
		if !ok || user == "" || !strings.HasPrefix(hash, "$2") {
			return fmt.Errorf("auth_hash must be user:<bcrypt hash>")
		}
	}
	u, err := url.Parse(c.AI.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ai.base_url %q must be an http(s) URL", c.AI.BaseURL)
	}
	if c.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ai.temperature must be within [0, 2]")
	}
	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("ai.max_tokens must be > 0")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be > 0")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must be >= 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	return nil
}

// MaxFileBytes returns the upload limit in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) << 20 }

// Database returns the SQLite path.
func (c *Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "structura.db")
}

// UploadDir is where uploaded files are spooled.
func (c *Config) UploadDir() string { return filepath.Join(c.DataDir, "uploads") }

// ExportDir is where exports are written.
func (c *Config) ExportDir() string { return filepath.Join(c.DataDir, "exports") }

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("log_level %q: use debug, info, warn or error", s)
	}
	return l, nil
}

// NewLogger returns a JSON logger at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
