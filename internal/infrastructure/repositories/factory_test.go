package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"sprinta/internal/infrastructure/repositories/file"
	"sprinta/internal/infrastructure/repositories/memory"
	"sprinta/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFactory_Memory(t *testing.T) {
	cfg := config.DefaultConfig()
	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "memory", f.Driver())
	assert.IsType(t, &memory.MemoryNotificationRepository{}, f.NotificationRepository())
	assert.Nil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))

	w, err := f.NewFileWatcher(cfg)
	assert.NoError(t, err)
	assert.Nil(t, w)
}

func TestFactory_RedisFallsBackToMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Storage.Driver = "redis"

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "memory", f.Driver())
	assert.Nil(t, f.RedisClient())
}

func TestFactory_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = mr.Addr()
	cfg.Storage.Driver = "redis"

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "redis", f.Driver())
	require.NotNil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(context.Background()))

	mr.SetError("server down")
	assert.Error(t, f.HealthCheck(context.Background()))
}

func TestFactory_File(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "file"
	cfg.Storage.File.Dir = filepath.Join(t.TempDir(), "data")

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.IsType(t, &file.FileNotificationRepository{}, f.NotificationRepository())
	w, err := f.NewFileWatcher(cfg)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.NoError(t, w.Close())
}

func TestFactory_SQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.SQL.DSN = filepath.Join(t.TempDir(), "sprinta.db")

	f, err := NewRepositoryFactory(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "sqlite", f.Driver())
	assert.NoError(t, f.HealthCheck(context.Background()))
}
