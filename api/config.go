package api

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full HTTP service configuration.
type Config struct {
	Listen          string        `yaml:"listen"`
	JournalDB       string        `yaml:"journal_db"`
	TempDir         string        `yaml:"temp_dir"`
	MaxFileMB       int           `yaml:"max_file_mb"`
	ConvertTimeout  time.Duration `yaml:"convert_timeout"`
	AggressiveClean bool          `yaml:"aggressive_clean"`
	Auth            AuthConfig    `yaml:"auth"`
}

// AuthConfig enables HTTP basic auth on the API routes. The password is
// stored as a bcrypt hash; plaintext never lands in the config file.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:         ":8084",
		JournalDB:      "docsift.db",
		MaxFileMB:      100,
		ConvertTimeout: 2 * time.Minute,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.JournalDB == "" {
		return fmt.Errorf("journal_db is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.ConvertTimeout <= 0 {
		return fmt.Errorf("convert_timeout must be > 0")
	}
	if c.Auth.Enabled {
		if c.Auth.Username == "" {
			return fmt.Errorf("auth.username is required when auth is enabled")
		}
		if c.Auth.PasswordHash == "" {
			return fmt.Errorf("auth.password_hash is required when auth is enabled")
		}
	}
	return nil
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }
