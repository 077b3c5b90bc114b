package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"sprinta/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InstanceInfo is the last report of one instance.
type InstanceInfo struct {
	InstanceID string `json:"instanceId"`
	Clients    int    `json:"clients"`
	Users      int    `json:"users"`
	SeenAt     int64  `json:"seenAt"`
}

// Presence keeps a TTL-bounded list of live instances in Redis. Each
// instance reports its connection counts; reports older than ttl are
// treated as gone and pruned on read.
type Presence struct {
	client     *redis.Client
	instanceID string
	ttl        time.Duration
	infoKey    string
	seenKey    string
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewPresence(client *redis.Client, prefix, instanceID string, ttl time.Duration, logger *zap.SugaredLogger) *Presence {
	return &Presence{
		client:     client,
		instanceID: instanceID,
		ttl:        ttl,
		infoKey:    prefix + ":instances",
		seenKey:    prefix + ":instances:seen",
		logger:     logger,
		now:        time.Now,
	}
}

func (p *Presence) Announce(ctx context.Context, clients, users int) error {
	now := p.now()
	data, err := json.Marshal(InstanceInfo{
		InstanceID: p.instanceID,
		Clients:    clients,
		Users:      users,
		SeenAt:     now.UnixMilli(),
	})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.infoKey, p.instanceID, data)
	pipe.ZAdd(ctx, p.seenKey, redis.Z{Score: float64(now.UnixMilli()), Member: p.instanceID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("announce instance: %w", err)
	}
	return nil
}

func (p *Presence) Leave(ctx context.Context) error {
	pipe := p.client.TxPipeline()
	pipe.HDel(ctx, p.infoKey, p.instanceID)
	pipe.ZRem(ctx, p.seenKey, p.instanceID)
	_, err := pipe.Exec(ctx)
	return err
}

// Instances returns live instances ordered by id.
func (p *Presence) Instances(ctx context.Context) ([]InstanceInfo, error) {
	cutoff := p.now().Add(-p.ttl).UnixMilli()

	stale, err := p.client.ZRangeByScore(ctx, p.seenKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list stale instances: %w", err)
	}
	if len(stale) > 0 {
		members := make([]interface{}, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		pipe := p.client.TxPipeline()
		pipe.ZRem(ctx, p.seenKey, members...)
		pipe.HDel(ctx, p.infoKey, stale...)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("prune stale instances: %w", err)
		}
	}

	raw, err := p.client.HGetAll(ctx, p.infoKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}
	out := make([]InstanceInfo, 0, len(raw))
	for id, data := range raw {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			p.logger.Warnw("Skipping malformed instance record",
				"instance_id", id,
				"error", err,
			)
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out, nil
}

// Run announces the tracker's counts every interval and leaves on exit.
func (p *Presence) Run(ctx context.Context, tracker ports.ConnectionTracker, interval time.Duration) {
	announce := func() {
		stats := tracker.Stats()
		if err := p.Announce(ctx, stats.TotalClients, stats.TotalUsers); err != nil && ctx.Err() == nil {
			p.logger.Warnw("Failed to announce instance",
				"instance_id", p.instanceID,
				"error", err,
			)
		}
	}

	announce()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = p.Leave(leaveCtx)
			cancel()
			return
		case <-ticker.C:
			announce()
		}
	}
}
