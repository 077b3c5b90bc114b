package realtime

import (
	"context"
	"testing"
	"time"

	"sprinta/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	delivered, failed, dropped int
	clients, users             int
}

func (o *countingObserver) ConnectionsChanged(clients, users int) {
	o.clients, o.users = clients, users
}
func (o *countingObserver) EventDelivered(_ domain.EventName, n int)         { o.delivered += n }
func (o *countingObserver) EventFailed(_ domain.EventName, n int)            { o.failed += n }
func (o *countingObserver) EventDropped(domain.EventName)                    { o.dropped++ }
func (o *countingObserver) DispatchDuration(domain.EventName, time.Duration) {}

func sampleNotification() *domain.Notification {
	return &domain.Notification{
		ID:        1,
		UserID:    "u1",
		Type:      domain.TypeNewFollower,
		Title:     "New follower",
		Message:   "Someone followed you",
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestDispatcher_NoChannels(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(testLogger(), obs)
	d := NewDispatcher(r, testLogger(), obs)

	other := &recordingSink{}
	r.AddClient("someone-else", other)

	assert.Equal(t, 0, d.DispatchToUser(context.Background(), "u1", sampleNotification()))
	assert.Zero(t, other.Writes())
	assert.Equal(t, 1, obs.dropped)
}

func TestDispatcher_DeliversToEveryChannel(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	d := NewDispatcher(r, testLogger(), nil)

	sinks := []*recordingSink{{}, {}, {}}
	for _, s := range sinks {
		r.AddClient("u1", s)
	}

	n := sampleNotification()
	assert.Equal(t, 3, d.DispatchToUser(context.Background(), "u1", n))

	for _, s := range sinks {
		events := s.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventNotification, events[0].Name)

		var got domain.Notification
		require.NoError(t, decode(events[0], &got))
		assert.Equal(t, *n, got)
	}
}

func TestDispatcher_FailedChannelIsRemoved(t *testing.T) {
	obs := &countingObserver{}
	r := NewRegistry(testLogger(), obs)
	d := NewDispatcher(r, testLogger(), obs)

	good1 := &recordingSink{}
	good2 := &recordingSink{}
	bad := &recordingSink{failAt: 1}
	r.AddClient("u1", good1)
	badCh := r.AddClient("u1", bad)
	r.AddClient("u1", good2)

	assert.Equal(t, 2, d.DispatchToUser(context.Background(), "u1", sampleNotification()))
	assert.Len(t, good1.Events(), 1)
	assert.Len(t, good2.Events(), 1)
	assert.True(t, badCh.Closed())
	assert.Len(t, r.ClientsForUser("u1"), 2)
	assert.Equal(t, 2, obs.delivered)
	assert.Equal(t, 1, obs.failed)
	assert.Equal(t, 2, obs.clients)

	// The failed channel no longer receives anything.
	assert.Equal(t, 2, d.DispatchUnreadCount(context.Background(), "u1", 5))
	assert.Equal(t, 1, bad.Writes())
}

func TestDispatcher_UnreadCountAndHeartbeat(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	d := NewDispatcher(r, testLogger(), nil)

	s1 := &recordingSink{}
	s2 := &recordingSink{}
	r.AddClient("u1", s1)
	r.AddClient("u2", s2)

	assert.Equal(t, 1, d.DispatchUnreadCount(context.Background(), "u1", 7))
	var count domain.UnreadCountPayload
	require.NoError(t, decode(s1.Events()[0], &count))
	assert.Equal(t, 7, count.Count)

	assert.Equal(t, 1, d.SendHeartbeat("u2"))
	assert.Equal(t, 2, d.BroadcastHeartbeat())
	assert.Equal(t, []domain.EventName{domain.EventUnreadCount, domain.EventHeartbeat}, s1.Names())
	assert.Equal(t, []domain.EventName{domain.EventHeartbeat, domain.EventHeartbeat}, s2.Names())

	var hb domain.HeartbeatPayload
	require.NoError(t, decode(s2.Events()[0], &hb))
	assertISOTimestamp(t, hb.Timestamp)
}

func TestDispatcher_EncodeFailure(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	d := NewDispatcher(r, testLogger(), nil)
	sink := &recordingSink{}
	r.AddClient("u1", sink)

	assert.Zero(t, d.DispatchEvent(context.Background(), "u1", "custom", func() {}))
	assert.Zero(t, sink.Writes())
}
