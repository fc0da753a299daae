package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plotfit/plotfit/internal/config"
)

// New creates the Store selected by cfg.Backend
func New(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil

	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
			}
		}
		return NewSQLiteStore(cfg.SQLite.Path)

	case config.BackendEtcd:
		return NewEtcdStore(cfg.Etcd)

	case config.BackendRedis:
		return NewRedisStore(cfg.Redis)

	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: memory, sqlite, etcd, redis)", cfg.Backend)
	}
}
