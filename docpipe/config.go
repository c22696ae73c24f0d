package docpipe

import (
	"log/slog"
	"time"
)

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// TempDir is where conversion intermediates are written (default: OS temp).
	TempDir string `json:"temp_dir" yaml:"temp_dir"`

	// ConvertTimeout bounds each external conversion attempt (default: 2 min).
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout"`

	// AggressiveClean enables the stricter quality-filter mode for binary
	// scans. Off by default: it can drop legitimate numeric content.
	AggressiveClean bool `json:"aggressive_clean" yaml:"aggressive_clean"`

	// Converters overrides the external conversion chain. Nil means the
	// platform defaults (Excel COM on Windows, then soffice).
	Converters []Converter `json:"-" yaml:"-"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.ConvertTimeout <= 0 {
		c.ConvertTimeout = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
