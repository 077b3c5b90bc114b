package realtime

import (
	"context"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/pkg/logger"
	"sprinta/pkg/tracing"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Dispatcher delivers events to the local channels of a user.
type Dispatcher struct {
	registry *Registry
	log      *logger.ContextLogger
	observer Observer
}

func NewDispatcher(registry *Registry, log *zap.SugaredLogger, observer Observer) *Dispatcher {
	if observer == nil {
		observer = NopObserver()
	}
	return &Dispatcher{
		registry: registry,
		log:      logger.NewContextLogger(log),
		observer: observer,
	}
}

// DispatchToUser sends a notification event to every live channel of userID
// and returns how many accepted it. Users with no channels are skipped.
func (d *Dispatcher) DispatchToUser(ctx context.Context, userID domain.UserID, n *domain.Notification) int {
	return d.DispatchEvent(ctx, userID, domain.EventNotification, n)
}

func (d *Dispatcher) DispatchUnreadCount(ctx context.Context, userID domain.UserID, count int) int {
	return d.DispatchEvent(ctx, userID, domain.EventUnreadCount, domain.UnreadCountPayload{Count: count})
}

func (d *Dispatcher) DispatchEvent(ctx context.Context, userID domain.UserID, name domain.EventName, payload interface{}) int {
	ev, err := Encode(name, payload)
	if err != nil {
		d.log.For(ctx).Errorw("Failed to encode event",
			"user_id", userID,
			"event", name,
			"error", err,
		)
		return 0
	}
	return d.Deliver(ctx, userID, ev)
}

// Deliver writes an already encoded event. Channels whose write fails are
// removed from the registry; the remaining channels still receive the event.
func (d *Dispatcher) Deliver(ctx context.Context, userID domain.UserID, ev Event) int {
	start := time.Now()
	defer func() {
		d.observer.DispatchDuration(ev.Name, time.Since(start))
	}()

	channels := d.registry.ClientsForUser(userID)
	if len(channels) == 0 {
		d.observer.EventDropped(ev.Name)
		d.log.For(ctx).Debugw("No connected clients for user",
			"user_id", userID,
			"event", ev.Name,
		)
		return 0
	}

	_, span := tracing.TraceDispatch(ctx, string(ev.Name), string(userID))
	defer span.End()

	delivered, failed := 0, 0
	for _, ch := range channels {
		if err := ch.Send(ev); err != nil {
			failed++
			d.log.For(ctx).Warnw("Failed to send event to client",
				"user_id", userID,
				"client_id", ch.ID(),
				"event", ev.Name,
				"error", err,
			)
			d.registry.RemoveClientByRef(ch)
			continue
		}
		delivered++
	}

	span.SetAttributes(
		tracing.DeliveredKey.Int(delivered),
		tracing.FailedKey.Int(failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, "partial delivery")
		d.observer.EventFailed(ev.Name, failed)
	}
	d.observer.EventDelivered(ev.Name, delivered)

	d.log.For(ctx).Debugw("Dispatched event",
		"user_id", userID,
		"event", ev.Name,
		"delivered", delivered,
		"failed", failed,
	)
	return delivered
}

// SendHeartbeat sends a heartbeat to every channel of userID.
func (d *Dispatcher) SendHeartbeat(userID domain.UserID) int {
	return d.DispatchEvent(context.Background(), userID, domain.EventHeartbeat,
		domain.HeartbeatPayload{Timestamp: domain.NowTimestamp()})
}

// BroadcastHeartbeat sends a heartbeat to every connected user.
func (d *Dispatcher) BroadcastHeartbeat() int {
	total := 0
	for _, userID := range d.registry.Users() {
		total += d.SendHeartbeat(userID)
	}
	return total
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
