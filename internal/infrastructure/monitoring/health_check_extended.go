package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, interval, timeout)
}

// AddStorageCheck pings the configured notification store.
func (h *HealthChecker) AddStorageCheck(driver string, ping func(ctx context.Context) error, interval, timeout time.Duration) {
	h.AddCheck("storage", func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", driver, err)
		}
		return nil
	}, interval, timeout)
}

// AddClusterCheck reports the cluster bus state; running reports whether
// the subscription loop is alive.
func (h *HealthChecker) AddClusterCheck(running func() bool, interval, timeout time.Duration) {
	h.AddCheck("cluster", func(ctx context.Context) error {
		if !running() {
			return fmt.Errorf("event bus not subscribed")
		}
		return nil
	}, interval, timeout)
}

// IsReady reports whether every check passes right now.
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
