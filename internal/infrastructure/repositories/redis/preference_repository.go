package redis

import (
	"context"
	"fmt"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

type RedisPreferenceRepository struct {
	client *redis.Client
}

func NewRedisPreferenceRepository(client *redis.Client) ports.PreferenceRepository {
	return &RedisPreferenceRepository{client: client}
}

func (r *RedisPreferenceRepository) Get(ctx context.Context, userID domain.UserID) (_ domain.Preferences, _ bool, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "select", preferencesCollection)
	defer tracing.EndOperation(span, &err)

	fields, err := r.client.HGetAll(ctx, preferencesKey(userID)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get preferences from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	prefs := make(domain.Preferences, len(fields))
	for category, v := range fields {
		prefs[domain.Category(category)] = v == "1"
	}
	return prefs, true, nil
}

// Save replaces the stored preferences of the user.
func (r *RedisPreferenceRepository) Save(ctx context.Context, prefs *domain.UserPreferences) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "upsert", preferencesCollection)
	defer tracing.EndOperation(span, &err)

	key := preferencesKey(prefs.UserID)
	fields := make(map[string]interface{}, len(prefs.Preferences))
	for category, enabled := range prefs.Preferences {
		fields[string(category)] = encodeBool(enabled)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(fields) > 0 {
			pipe.HSet(ctx, key, fields)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save preferences to Redis: %w", err)
	}
	return nil
}
