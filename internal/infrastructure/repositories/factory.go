package repositories

import (
	"context"
	"fmt"
	"os"

	"sprinta/internal/core/ports"
	"sprinta/internal/infrastructure/repositories/file"
	"sprinta/internal/infrastructure/repositories/memory"
	redisrepo "sprinta/internal/infrastructure/repositories/redis"
	"sprinta/internal/infrastructure/repositories/sqldb"
	"sprinta/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryFactory opens the configured storage driver. A Redis driver that
// cannot connect falls back to memory.
type RepositoryFactory struct {
	driver      string
	redisClient *redis.Client
	db          *gorm.DB
	logger      *zap.SugaredLogger

	notifications ports.NotificationRepository
	preferences   ports.PreferenceRepository

	fileDir           string
	fileNotifications *file.FileNotificationRepository
	filePreferences   *file.FilePreferenceRepository
}

func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		driver: cfg.Storage.Driver,
		logger: logger,
	}

	// Redis also backs the cluster bus, so connect whenever it is enabled.
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis",
				"address", cfg.Redis.Address,
				"error", err,
			)
		} else {
			factory.redisClient = client
		}
	}

	switch cfg.Storage.Driver {
	case "redis":
		if factory.redisClient == nil {
			logger.Warn("Redis unavailable, falling back to memory repositories")
			factory.driver = "memory"
			factory.useMemory()
			break
		}
		factory.notifications = redisrepo.NewRedisNotificationRepository(factory.redisClient)
		factory.preferences = redisrepo.NewRedisPreferenceRepository(factory.redisClient)

	case "file":
		if err := os.MkdirAll(cfg.Storage.File.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		notifications, err := file.NewFileNotificationRepository(cfg.Storage.File.Dir, logger)
		if err != nil {
			return nil, err
		}
		preferences, err := file.NewFilePreferenceRepository(cfg.Storage.File.Dir, logger)
		if err != nil {
			return nil, err
		}
		factory.fileDir = cfg.Storage.File.Dir
		factory.fileNotifications = notifications
		factory.filePreferences = preferences
		factory.notifications = notifications
		factory.preferences = preferences

	case "postgres", "sqlite":
		db, err := sqldb.Open(cfg.Storage.Driver, cfg.Storage.SQL.DSN, cfg.Storage.SQL.AutoMigrate, logger)
		if err != nil {
			return nil, err
		}
		factory.db = db
		factory.notifications = sqldb.NewSQLNotificationRepository(db)
		factory.preferences = sqldb.NewSQLPreferenceRepository(db)

	default:
		factory.useMemory()
	}

	logger.Infow("using notification storage", "driver", factory.driver)
	return factory, nil
}

func (f *RepositoryFactory) useMemory() {
	f.notifications = memory.NewMemoryNotificationRepository()
	f.preferences = memory.NewMemoryPreferenceRepository()
}

func (f *RepositoryFactory) Driver() string {
	return f.driver
}

func (f *RepositoryFactory) NotificationRepository() ports.NotificationRepository {
	return f.notifications
}

func (f *RepositoryFactory) PreferenceRepository() ports.PreferenceRepository {
	return f.preferences
}

// RedisClient returns the shared client, or nil when Redis is not in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// NewFileWatcher returns a watcher over the JSON data files, or nil when the
// file driver is not in use.
func (f *RepositoryFactory) NewFileWatcher(cfg *config.Config) (*file.Watcher, error) {
	if f.fileNotifications == nil || !cfg.Storage.File.Watch {
		return nil, nil
	}
	return file.NewWatcher(f.fileDir, cfg.Storage.File.WatchDebounce, f.logger,
		f.fileNotifications, f.filePreferences)
}

func (f *RepositoryFactory) Close() error {
	var firstErr error
	if f.redisClient != nil {
		if err := redisrepo.CloseRedisClient(f.redisClient); err != nil {
			firstErr = err
		}
	}
	if f.db != nil {
		if err := sqldb.Close(f.db); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HealthCheck pings the backing store.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	switch {
	case f.driver == "redis" && f.redisClient != nil:
		return f.redisClient.Ping(ctx).Err()
	case f.db != nil:
		sqlDB, err := f.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return nil
}
