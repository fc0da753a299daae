package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/plotfit/plotfit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) Store {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "plotfit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, newTestSQLiteStore)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateDataset(ctx, &Dataset{Name: "kept", Date: "2024-01-02"}))
	_, err = s.AddPoint(ctx, "kept", 1.5, 2.5)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ds, err := s.GetDataset(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", ds.Date)

	points, err := s.ListPoints(ctx, "kept")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 1.5, points[0].X)
}

func TestNew(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		s, err := New(config.StorageConfig{Backend: config.BackendMemory})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, s)
	})

	t.Run("sqlite creates directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "data.db")
		s, err := New(config.StorageConfig{
			Backend: config.BackendSQLite,
			SQLite:  config.SQLiteConfig{Path: path},
		})
		require.NoError(t, err)
		defer func() { _ = s.Close() }()
		assert.IsType(t, &SQLiteStore{}, s)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(config.StorageConfig{Backend: "cassandra"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported storage backend")
	})
}
