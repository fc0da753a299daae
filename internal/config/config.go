package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Regression RegressionConfig `mapstructure:"regression"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host      string `mapstructure:"host"`       // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort  int    `mapstructure:"http_port"`  // HTTP server port
	StaticDir string `mapstructure:"static_dir"` // Optional directory served at /
	BodyLimit int    `mapstructure:"body_limit"` // Max request body in bytes (imports)
}

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendEtcd   = "etcd"
	BackendRedis  = "redis"
)

// StorageConfig selects and configures the dataset store
type StorageConfig struct {
	Backend  string       `mapstructure:"backend"`   // memory (default), sqlite, etcd, redis
	SeedFile string       `mapstructure:"seed_file"` // YAML datasets loaded into an empty store
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
	Etcd     EtcdConfig   `mapstructure:"etcd"`
	Redis    RedisConfig  `mapstructure:"redis"`
}

// SQLiteConfig represents the embedded database settings
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// EtcdConfig represents etcd configuration
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Prefix      string        `mapstructure:"prefix"` // Key prefix (default: /plotfit)
}

// RedisConfig represents the redis store settings
type RedisConfig struct {
	URL       string `mapstructure:"url"` // host:port or redis:// URL
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"` // default: plotfit
}

// QueueConfig represents message queue configuration for change events
type QueueConfig struct {
	Type     string `mapstructure:"type"`     // Queue type: none (default), memory, nats, redis, kafka
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`       // Redis database number (default: 0)
	RedisStream   string `mapstructure:"redis_stream"`   // Redis stream prefix (default: "plotfit")
	RedisGroup    string `mapstructure:"redis_group"`    // Redis consumer group (default: "plotfit-group")
	RedisConsumer string `mapstructure:"redis_consumer"` // Redis consumer name (default: hostname)

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`  // Kafka broker addresses
	KafkaGroupID string   `mapstructure:"kafka_group_id"` // Kafka consumer group ID
}

// RegressionConfig bounds fitting work
type RegressionConfig struct {
	MaxSamples int `mapstructure:"max_samples"` // Largest dataset accepted by a fit
	CacheSize  int `mapstructure:"cache_size"`  // Cached results; 0 disables the cache
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc

	// File rotation, only used when OutputPath is a file
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Regression.Validate(); err != nil {
		return fmt.Errorf("regression config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}

	return nil
}

// Validate validates storage configuration
func (c *StorageConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite backend")
		}
	case BackendEtcd:
		if len(c.Etcd.Endpoints) == 0 {
			return fmt.Errorf("etcd.endpoints is required for the etcd backend")
		}
		if c.Etcd.DialTimeout <= 0 {
			return fmt.Errorf("etcd.dial_timeout must be positive")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported backend: %q (want memory, sqlite, etcd or redis)", c.Backend)
	}

	return nil
}

// Validate validates queue configuration
func (c *QueueConfig) Validate() error {
	switch c.Type {
	case "", "none", "memory":
	case "nats", "redis":
		if c.URL == "" {
			return fmt.Errorf("queue.url is required for %s", c.Type)
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 && c.URL == "" {
			return fmt.Errorf("queue.kafka_brokers or queue.url is required for kafka")
		}
	default:
		return fmt.Errorf("unsupported queue type: %q", c.Type)
	}
	return nil
}

// Validate validates regression limits
func (c *RegressionConfig) Validate() error {
	if c.MaxSamples < 2 {
		return fmt.Errorf("regression.max_samples must be at least 2")
	}

	if c.CacheSize < 0 {
		return fmt.Errorf("regression.cache_size cannot be negative")
	}

	return nil
}

// MinAPIKeyLength is the shortest API key the auth middleware accepts
const MinAPIKeyLength = 32

// Validate validates auth configuration. With auth enabled every key must be
// usable, otherwise clients would be locked out without notice.
func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required when auth is enabled")
	}
	for i, key := range c.APIKeys {
		if len(strings.TrimSpace(key)) < MinAPIKeyLength {
			return fmt.Errorf("auth.api_keys[%d] must be at least %d characters", i, MinAPIKeyLength)
		}
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logging rotation settings cannot be negative")
	}

	return nil
}
