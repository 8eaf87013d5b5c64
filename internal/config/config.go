// Package config loads the client settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the client settings
type Config struct {
	// ServerURL is the API base URL including the /api prefix
	ServerURL string `mapstructure:"server_url"`
	// RequestTimeout bounds every HTTP call
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// DataDir holds the sqlite file; empty means the XDG data directory
	DataDir string `mapstructure:"data_dir"`
	// LogFile receives the debug log; empty disables logging
	LogFile string `mapstructure:"log_file"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		ServerURL:      "http://localhost:5000/api",
		RequestTimeout: 15 * time.Second,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/taskflow/config.yaml
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "taskflow", "config.yaml")
}

// Load reads path (DefaultPath when empty) over the defaults. A missing file
// is not an error. TASKFLOW_* environment variables override the file.
func Load(path string) (*Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("server_url", def.ServerURL)
	v.SetDefault("request_timeout", def.RequestTimeout)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log_file", def.LogFile)

	v.SetEnvPrefix("TASKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

// Validate rejects settings the client cannot run with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("server_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	return nil
}
