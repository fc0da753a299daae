package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// EnsureDirectories ensures all required directories exist
func (c *Config) EnsureDirectories() error {
	var dirs []string

	if c.Storage.Backend == BackendSQLite {
		dirs = append(dirs, filepath.Dir(c.Storage.SQLite.Path))
	}
	if c.Logging.IsFileOutput() {
		dirs = append(dirs, filepath.Dir(c.Logging.OutputPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.HTTPPort))
}

// IsFileOutput reports whether logs go to a file rather than a standard stream
func (c *LoggingConfig) IsFileOutput() bool {
	switch c.OutputPath {
	case "", "stdout", "stderr":
		return false
	default:
		return true
	}
}
