package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return parseConfig(v)
}

// LoadWithWatcher loads configuration and keeps watching the config file.
// onChange receives every successfully re-parsed configuration; invalid edits
// are passed to onError and otherwise ignored.
func LoadWithWatcher(configPath string, onChange func(*Config), onError func(error)) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := parseConfig(v)
	if err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() == "" {
		// Nothing to watch when running on defaults
		return cfg, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		updated, err := parseConfig(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(updated)
		}
	})
	v.WatchConfig()

	return cfg, nil
}

func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")            // Current directory
		v.AddConfigPath("./configs")    // Project configs directory
		v.AddConfigPath("./config")     // Alternative config directory
		v.AddConfigPath("/etc/plotfit") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides (PLOTFIT_SERVER_HTTP_PORT, ...)
	v.SetEnvPrefix("PLOTFIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.static_dir", d.Server.StaticDir)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)

	// Storage defaults
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.seed_file", d.Storage.SeedFile)
	v.SetDefault("storage.sqlite.path", d.Storage.SQLite.Path)
	v.SetDefault("storage.etcd.endpoints", d.Storage.Etcd.Endpoints)
	v.SetDefault("storage.etcd.dial_timeout", "5s")
	v.SetDefault("storage.etcd.prefix", d.Storage.Etcd.Prefix)
	v.SetDefault("storage.redis.url", d.Storage.Redis.URL)
	v.SetDefault("storage.redis.db", d.Storage.Redis.DB)
	v.SetDefault("storage.redis.key_prefix", d.Storage.Redis.KeyPrefix)

	// Queue defaults
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)
	v.SetDefault("queue.redis_group", d.Queue.RedisGroup)
	v.SetDefault("queue.kafka_group_id", d.Queue.KafkaGroupID)

	// Regression defaults
	v.SetDefault("regression.max_samples", d.Regression.MaxSamples)
	v.SetDefault("regression.cache_size", d.Regression.CacheSize)

	// Auth defaults
	v.SetDefault("auth.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "0.0.0.0",
			HTTPPort:  5000,
			BodyLimit: 16 * 1024 * 1024,
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			SQLite: SQLiteConfig{
				Path: "./data/plotfit.db",
			},
			Etcd: EtcdConfig{
				Endpoints:   []string{"http://localhost:2379"},
				DialTimeout: 5 * time.Second,
				Prefix:      "/plotfit",
			},
			Redis: RedisConfig{
				URL:       "localhost:6379",
				KeyPrefix: "plotfit",
			},
		},
		Queue: QueueConfig{
			Type:         "none",
			URL:          "nats://localhost:4222",
			RedisStream:  "plotfit",
			RedisGroup:   "plotfit-group",
			KafkaGroupID: "plotfit-api",
		},
		Regression: RegressionConfig{
			MaxSamples: 1_000_000,
			CacheSize:  256,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			TimeFormat: time.RFC3339,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
