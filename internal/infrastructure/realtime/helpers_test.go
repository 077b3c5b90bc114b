package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sprinta/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBrokenPipe = errors.New("broken pipe")

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	failAt int // 1-based index of the write that fails; 0 never fails
	writes int
}

func (s *recordingSink) WriteEvent(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failAt > 0 && s.writes >= s.failAt {
		return errBrokenPipe
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *recordingSink) Names() []domain.EventName {
	var names []domain.EventName
	for _, ev := range s.Events() {
		names = append(names, ev.Name)
	}
	return names
}

func (s *recordingSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type staticCounter struct {
	count int
	err   error
}

func (c staticCounter) UnreadCount(_ context.Context, _ domain.UserID) (int, error) {
	return c.count, c.err
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func decode(ev Event, v interface{}) error {
	return json.Unmarshal(ev.Data, v)
}

// assertISOTimestamp checks the UTC millisecond layout browsers get from
// Date.prototype.toISOString.
func assertISOTimestamp(t *testing.T, ts string) {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err, "timestamp %q", ts)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
	assert.True(t, strings.HasSuffix(ts, "Z"), "timestamp %q is not UTC", ts)
	assert.Len(t, ts, len("2024-05-29T16:26:40.123Z"))
}
