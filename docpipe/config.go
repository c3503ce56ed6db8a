package docpipe

import "log/slog"

// DefaultMaxFileSize is the upload ceiling (50 MiB).
const DefaultMaxFileSize = 50 << 20

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the largest file Validate accepts (default 50 MiB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Root confines paths received over connectivity and MCP. Empty
	// leaves them unrestricted.
	Root string `json:"root" yaml:"root"`

	// OCR reads text from images. Defaults to the tesseract binary.
	OCR OCR `json:"-" yaml:"-"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.OCR == nil {
		c.OCR = NewTesseract()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
