package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"sprinta/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrAlreadySubscribed = errors.New("event bus already subscribed")

// Message is the envelope exchanged between instances. Type carries the
// stream event name and Payload its encoded data.
type Message struct {
	Type       domain.EventName `json:"type"`
	InstanceID string           `json:"instance_id"`
	Timestamp  int64            `json:"timestamp"`
	UserID     domain.UserID    `json:"user_id"`
	Payload    json.RawMessage  `json:"payload"`
}

// EventBus publishes stream events on a Redis channel shared by every
// instance and hands those published by other instances to a handler.
type EventBus struct {
	client     *redis.Client
	channel    string
	instanceID string
	logger     *zap.SugaredLogger

	subscribed atomic.Bool
	running    atomic.Bool
	ready      chan struct{}
}

func NewEventBus(client *redis.Client, channel, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

func (eb *EventBus) InstanceID() string { return eb.instanceID }

// Publish stamps msg with this instance and the current time.
func (eb *EventBus) Publish(ctx context.Context, msg *Message) error {
	msg.InstanceID = eb.instanceID
	msg.Timestamp = domain.NowMillis()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("publish cluster message: %w", err)
	}
	return nil
}

// Run subscribes and blocks until ctx ends, calling handler for every
// message from another instance. It may be called once.
func (eb *EventBus) Run(ctx context.Context, handler func(ctx context.Context, msg *Message)) error {
	if !eb.subscribed.CompareAndSwap(false, true) {
		return ErrAlreadySubscribed
	}

	pubsub := eb.client.Subscribe(ctx, eb.channel)
	defer pubsub.Close()

	// Wait for the subscription confirmation so Ready means publishes from
	// now on will be seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", eb.channel, err)
	}
	eb.running.Store(true)
	defer eb.running.Store(false)
	close(eb.ready)

	eb.logger.Infow("Cluster event bus subscribed",
		"channel", eb.channel,
		"instance_id", eb.instanceID,
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				eb.logger.Warnw("Dropping malformed cluster message",
					"error", err,
					"size", len(raw.Payload),
				)
				continue
			}
			if msg.InstanceID == eb.instanceID {
				continue
			}
			handler(ctx, &msg)
		}
	}
}

// Ready is closed once Run holds a confirmed subscription.
func (eb *EventBus) Ready() <-chan struct{} { return eb.ready }

// Running reports whether Run is currently subscribed.
func (eb *EventBus) Running() bool { return eb.running.Load() }

// WaitReady blocks until Ready or until timeout passes.
func (eb *EventBus) WaitReady(timeout time.Duration) bool {
	select {
	case <-eb.ready:
		return true
	case <-time.After(timeout):
		return false
	}
}
