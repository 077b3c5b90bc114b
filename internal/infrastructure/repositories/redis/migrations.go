package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sprinta/pkg/distributed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = keyPrefix + "schema:version"
	migrationLockKey     = keyPrefix + "lock:migrations"
	currentSchemaVersion = 2
)

// Migration represents a key schema migration
type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
	Down    func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations. Instances starting together take a
// shared lock so each migration runs once.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	return distributed.WithLock(ctx, client, migrationLockKey, 30*time.Second, time.Minute, func(ctx context.Context) error {
		return migrate(ctx, client, logger)
	})
}

func migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations() {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}

		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations() []Migration {
	return []Migration{
		{
			// Rebuild the global index from the per-user indexes.
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				iter := client.Scan(ctx, 0, keyPrefix+"user:*:notifications", 100).Iterator()
				for iter.Next(ctx) {
					entries, err := client.ZRangeWithScores(ctx, iter.Val(), 0, -1).Result()
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						continue
					}
					if err := client.ZAdd(ctx, globalIndexKey, entries...).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return nil
			},
		},
		{
			// Seed the id counter from the highest indexed notification so ids
			// keep increasing after a restore from a dump without the counter.
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				top, err := client.ZRevRangeWithScores(ctx, globalIndexKey, 0, 0).Result()
				if err != nil {
					return err
				}
				var maxID int64
				if len(top) > 0 {
					if member, ok := top[0].Member.(string); ok {
						maxID, _ = strconv.ParseInt(member, 10, 64)
					}
				}
				return client.SetNX(ctx, lastIDKey, maxID, 0).Err()
			},
			Down: func(ctx context.Context, client *redis.Client) error {
				return client.Del(ctx, lastIDKey).Err()
			},
		},
	}
}
