package distributed

import (
	"context"
	"errors"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/internal/infrastructure/realtime"
	"sprinta/pkg/circuitbreaker"
	"sprinta/pkg/retry"
	"sprinta/pkg/tracing"
	"sprinta/pkg/utils"

	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// ClusterMetrics receives one sample per cluster message.
type ClusterMetrics interface {
	ClusterMessage(direction, outcome string)
}

type nopClusterMetrics struct{}

func (nopClusterMetrics) ClusterMessage(string, string) {}

// ClusterDispatcher delivers to local channels and then relays the event to
// the other instances. Publishing is best effort: a failure is logged and
// never changes the local result.
type ClusterDispatcher struct {
	local   *realtime.Dispatcher
	bus     *EventBus
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	metrics ClusterMetrics
	logger  *zap.SugaredLogger
}

var _ ports.Dispatcher = (*ClusterDispatcher)(nil)

func NewClusterDispatcher(local *realtime.Dispatcher, bus *EventBus, metrics ClusterMetrics, logger *zap.SugaredLogger) *ClusterDispatcher {
	if metrics == nil {
		metrics = nopClusterMetrics{}
	}
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("Cluster publish breaker changed state",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return &ClusterDispatcher{
		local:   local,
		bus:     bus,
		breaker: breaker,
		retry:   retry.DefaultConfig(),
		metrics: metrics,
		logger:  logger,
	}
}

func (d *ClusterDispatcher) DispatchToUser(ctx context.Context, userID domain.UserID, n *domain.Notification) int {
	return d.DispatchEvent(ctx, userID, domain.EventNotification, n)
}

func (d *ClusterDispatcher) DispatchUnreadCount(ctx context.Context, userID domain.UserID, count int) int {
	return d.DispatchEvent(ctx, userID, domain.EventUnreadCount, domain.UnreadCountPayload{Count: count})
}

// DispatchEvent returns the number of local channels reached.
func (d *ClusterDispatcher) DispatchEvent(ctx context.Context, userID domain.UserID, name domain.EventName, payload interface{}) int {
	ev, err := realtime.Encode(name, payload)
	if err != nil {
		d.logger.Errorw("Failed to encode event",
			"user_id", userID,
			"event", name,
			"error", err,
		)
		return 0
	}

	delivered := d.local.Deliver(ctx, userID, ev)
	d.publish(ctx, userID, ev)
	return delivered
}

func (d *ClusterDispatcher) publish(ctx context.Context, userID domain.UserID, ev realtime.Event) {
	// The originating request may finish before the relay does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ctx, span := tracing.TraceClusterPublish(ctx, string(ev.Name), d.bus.InstanceID())
	defer span.End()

	err := d.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, d.retry, func(ctx context.Context) error {
			return d.bus.Publish(ctx, &Message{
				Type:    ev.Name,
				UserID:  userID,
				Payload: ev.Data,
			})
		})
	})

	switch {
	case err == nil:
		d.metrics.ClusterMessage("out", "published")
	case errors.Is(err, circuitbreaker.ErrOpen):
		d.metrics.ClusterMessage("out", "rejected")
		d.logger.Debugw("Cluster publish skipped, breaker open",
			"user_id", userID,
			"event", ev.Name,
		)
	default:
		tracing.RecordError(ctx, err)
		d.metrics.ClusterMessage("out", "failed")
		d.logger.Warnw("Cluster publish failed",
			"user_id", userID,
			"event", ev.Name,
			"error", err,
		)
	}
}

// Run relays events published by other instances to local channels until
// ctx ends.
func (d *ClusterDispatcher) Run(ctx context.Context) error {
	return d.bus.Run(ctx, d.handleRemote)
}

func (d *ClusterDispatcher) handleRemote(ctx context.Context, msg *Message) {
	if msg.UserID == "" || msg.Type == "" || len(msg.Payload) == 0 {
		d.metrics.ClusterMessage("in", "invalid")
		return
	}
	delivered := d.local.Deliver(ctx, msg.UserID, realtime.Event{Name: msg.Type, Data: msg.Payload})
	if delivered > 0 {
		d.metrics.ClusterMessage("in", "delivered")
		d.logger.Debugw("Relayed event delivered",
			"event", msg.Type,
			"user_id", msg.UserID,
			"from", msg.InstanceID,
			"lag", time.Since(utils.FromMillis(msg.Timestamp)),
		)
	} else {
		d.metrics.ClusterMessage("in", "ignored")
	}
}

func (d *ClusterDispatcher) Bus() *EventBus { return d.bus }

func (d *ClusterDispatcher) BreakerState() circuitbreaker.State { return d.breaker.State() }
