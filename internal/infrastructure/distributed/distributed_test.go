package distributed

import (
	"context"
	"sync"
	"testing"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/infrastructure/realtime"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (s *recordingSink) WriteEvent(ev realtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) names() []domain.EventName {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventName, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Name
	}
	return out
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ClusterMessage(direction, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[direction+"/"+outcome]++
}

func (m *countingMetrics) get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

type node struct {
	registry   *realtime.Registry
	dispatcher *ClusterDispatcher
	metrics    *countingMetrics
}

func newNode(t *testing.T, ctx context.Context, client *redis.Client, instanceID string) *node {
	t.Helper()
	logger := zap.NewNop().Sugar()
	registry := realtime.NewRegistry(logger, nil)
	metrics := &countingMetrics{}
	bus := NewEventBus(client, "sprinta:test", instanceID, logger)
	d := NewClusterDispatcher(realtime.NewDispatcher(registry, logger, nil), bus, metrics, logger)

	go func() { _ = d.Run(ctx) }()
	require.True(t, bus.WaitReady(2*time.Second), "bus %s not ready", instanceID)
	return &node{registry: registry, dispatcher: d, metrics: metrics}
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClusterDispatcher_RelaysToOtherInstance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newRedis(t)

	a := newNode(t, ctx, client, "node-a")
	b := newNode(t, ctx, client, "node-b")

	localSink := &recordingSink{}
	remoteSink := &recordingSink{}
	a.registry.AddClient("u1", localSink)
	b.registry.AddClient("u1", remoteSink)

	delivered := a.dispatcher.DispatchToUser(ctx, "u1", &domain.Notification{ID: 1, UserID: "u1", Title: "hi"})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []domain.EventName{domain.EventNotification}, localSink.names())

	assert.Eventually(t, func() bool {
		return len(remoteSink.names()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.EventNotification, remoteSink.names()[0])

	// The publishing instance ignores its own message.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, localSink.names(), 1)
	assert.Equal(t, 1, a.metrics.get("out/published"))
	assert.Equal(t, 1, b.metrics.get("in/delivered"))
	assert.Equal(t, 0, a.metrics.get("in/delivered"))
}

func TestClusterDispatcher_PayloadSurvivesRelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newRedis(t)

	a := newNode(t, ctx, client, "node-a")
	b := newNode(t, ctx, client, "node-b")
	sink := &recordingSink{}
	b.registry.AddClient("u2", sink)

	assert.Equal(t, 0, a.dispatcher.DispatchUnreadCount(ctx, "u2", 7))

	require.Eventually(t, func() bool { return len(sink.names()) == 1 }, 2*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, domain.EventUnreadCount, sink.events[0].Name)
	assert.JSONEq(t, `{"count":7}`, string(sink.events[0].Data))
}

func TestClusterDispatcher_PublishFailureKeepsLocalDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()

	logger := zap.NewNop().Sugar()
	registry := realtime.NewRegistry(logger, nil)
	metrics := &countingMetrics{}
	d := NewClusterDispatcher(realtime.NewDispatcher(registry, logger, nil),
		NewEventBus(client, "sprinta:test", "solo", logger), metrics, logger)
	d.retry.InitialDelay = time.Millisecond
	d.retry.MaxDelay = time.Millisecond

	sink := &recordingSink{}
	registry.AddClient("u3", sink)
	mr.Close()

	assert.Equal(t, 1, d.DispatchUnreadCount(context.Background(), "u3", 1))
	assert.Len(t, sink.names(), 1)
	assert.Equal(t, 1, metrics.get("out/failed"))
}

func TestEventBus_RunOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := newRedis(t)

	bus := NewEventBus(client, "sprinta:test", "x", zap.NewNop().Sugar())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx, func(context.Context, *Message) {}) }()
	require.True(t, bus.WaitReady(2*time.Second))
	assert.True(t, bus.Running())

	assert.ErrorIs(t, bus.Run(ctx, func(context.Context, *Message) {}), ErrAlreadySubscribed)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.False(t, bus.Running())
}

func TestPresence_AnnounceAndPrune(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()
	logger := zap.NewNop().Sugar()

	clock := time.Unix(1_700_000_000, 0)
	a := NewPresence(client, "sprinta:cluster", "node-a", 30*time.Second, logger)
	b := NewPresence(client, "sprinta:cluster", "node-b", 30*time.Second, logger)
	a.now = func() time.Time { return clock }
	b.now = func() time.Time { return clock }

	require.NoError(t, a.Announce(ctx, 3, 2))
	require.NoError(t, b.Announce(ctx, 1, 1))

	list, err := a.Instances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "node-a", list[0].InstanceID)
	assert.Equal(t, 3, list[0].Clients)
	assert.Equal(t, 2, list[0].Users)

	clock = clock.Add(time.Minute)
	require.NoError(t, a.Announce(ctx, 0, 0))
	list, err = a.Instances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "node-a", list[0].InstanceID)

	require.NoError(t, a.Leave(ctx))
	list, err = a.Instances(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
