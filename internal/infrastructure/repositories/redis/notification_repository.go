package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/tracing"

	"github.com/redis/go-redis/v9"
)

// nextIDScript hands out millisecond ids that never repeat across instances.
var nextIDScript = redis.NewScript(`
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
local id = tonumber(ARGV[1])
if id <= last then
	id = last + 1
end
redis.call('SET', KEYS[1], id)
return id
`)

type RedisNotificationRepository struct {
	client *redis.Client
}

func NewRedisNotificationRepository(client *redis.Client) ports.NotificationRepository {
	return &RedisNotificationRepository{client: client}
}

func (r *RedisNotificationRepository) Create(ctx context.Context, n *domain.Notification) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "insert", notificationsCollection)
	defer tracing.EndOperation(span, &err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	id, err := nextIDScript.Run(ctx, r.client, []string{lastIDKey}, now.UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("failed to allocate notification id: %w", err)
	}
	n.ID = domain.NotificationID(id)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}

	fields, err := toHash(n)
	if err != nil {
		return err
	}

	member := redis.Z{Score: float64(n.CreatedAt.UnixMilli()), Member: strconv.FormatInt(id, 10)}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, notificationKey(n.ID), fields)
		pipe.ZAdd(ctx, userIndexKey(n.UserID), member)
		pipe.ZAdd(ctx, globalIndexKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification in Redis: %w", err)
	}
	return nil
}

func (r *RedisNotificationRepository) GetByID(ctx context.Context, id domain.NotificationID) (_ *domain.Notification, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "select", notificationsCollection)
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	fields, err := r.client.HGetAll(ctx, notificationKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotificationNotFound
	}
	return fromHash(fields)
}

func (r *RedisNotificationRepository) List(ctx context.Context, filter domain.NotificationFilter) (_ []*domain.Notification, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "select", notificationsCollection)
	defer tracing.EndOperation(span, &err)

	index := globalIndexKey
	if filter.UserID != "" {
		index = userIndexKey(filter.UserID)
	}

	members, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notification index: %w", err)
	}

	list, err := r.load(ctx, members)
	if err != nil {
		return nil, err
	}
	return filter.Apply(list), nil
}

func (r *RedisNotificationRepository) SetRead(ctx context.Context, id domain.NotificationID, read bool) (_ *domain.Notification, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "update", notificationsCollection)
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	key := notificationKey(id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check notification: %w", err)
	}
	if exists == 0 {
		return nil, domain.ErrNotificationNotFound
	}
	if err := r.client.HSet(ctx, key, "read", encodeBool(read)).Err(); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *RedisNotificationRepository) MarkAllRead(ctx context.Context, userID domain.UserID) (_ int, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "update", notificationsCollection)
	defer tracing.EndOperation(span, &err)

	members, err := r.client.ZRange(ctx, userIndexKey(userID), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read notification index: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	reads := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		reads[i] = pipe.HGet(ctx, keyPrefix+"notification:"+m, "read")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, fmt.Errorf("failed to read notification state: %w", err)
	}

	marked := 0
	pipe = r.client.Pipeline()
	for i, m := range members {
		if v, err := reads[i].Result(); err == nil && v == "0" {
			pipe.HSet(ctx, keyPrefix+"notification:"+m, "read", "1")
			marked++
		}
	}
	if marked == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return marked, nil
}

func (r *RedisNotificationRepository) Delete(ctx context.Context, id domain.NotificationID) (err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "delete", notificationsCollection)
	defer tracing.EndOperation(span, &err, domain.ErrNotificationNotFound)

	key := notificationKey(id)
	userID, err := r.client.HGet(ctx, key, "userId").Result()
	if err == redis.Nil {
		return domain.ErrNotificationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get notification from Redis: %w", err)
	}

	member := strconv.FormatInt(int64(id), 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, userIndexKey(domain.UserID(userID)), member)
		pipe.ZRem(ctx, globalIndexKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *RedisNotificationRepository) DeleteAllForUser(ctx context.Context, userID domain.UserID) (_ int, err error) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, "redis", "delete", notificationsCollection)
	defer tracing.EndOperation(span, &err)

	index := userIndexKey(userID)
	members, err := r.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read notification index: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, len(members))
	zmembers := make([]interface{}, len(members))
	for i, m := range members {
		keys[i] = keyPrefix + "notification:" + m
		zmembers[i] = m
	}

	var deleted *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, globalIndexKey, zmembers...)
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete notifications: %w", err)
	}
	return int(deleted.Val()), nil
}

func (r *RedisNotificationRepository) load(ctx context.Context, members []string) ([]*domain.Notification, error) {
	if len(members) == 0 {
		return []*domain.Notification{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, keyPrefix+"notification:"+m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}

	list := make([]*domain.Notification, 0, len(members))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// index entry without a record, left behind by a concurrent delete
			continue
		}
		n, err := fromHash(fields)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, nil
}

func toHash(n *domain.Notification) (map[string]interface{}, error) {
	metadata := ""
	if len(n.Metadata) > 0 {
		data, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(data)
	}
	return map[string]interface{}{
		"id":        int64(n.ID),
		"userId":    string(n.UserID),
		"type":      string(n.Type),
		"title":     n.Title,
		"message":   n.Message,
		"metadata":  metadata,
		"read":      encodeBool(n.Read),
		"createdAt": n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func fromHash(fields map[string]string) (*domain.Notification, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid notification id %q: %w", fields["id"], err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt for notification %d: %w", id, err)
	}

	n := &domain.Notification{
		ID:        domain.NotificationID(id),
		UserID:    domain.UserID(fields["userId"]),
		Type:      domain.NotificationType(fields["type"]),
		Title:     fields["title"],
		Message:   fields["message"],
		Read:      fields["read"] == "1",
		CreatedAt: createdAt,
	}
	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &n.Metadata); err != nil {
			return nil, fmt.Errorf("invalid metadata for notification %d: %w", id, err)
		}
	}
	return n, nil
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
