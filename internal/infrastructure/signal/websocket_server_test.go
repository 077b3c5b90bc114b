package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/infrastructure/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedCounter int

func (f fixedCounter) UnreadCount(context.Context, domain.UserID) (int, error) { return int(f), nil }

type wsFixture struct {
	srv        *httptest.Server
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
}

func newWSFixture(t *testing.T, cfg Config) *wsFixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	registry := realtime.NewRegistry(log, realtime.NopObserver())
	stream := realtime.NewStreamServer(registry, fixedCounter(4), realtime.SessionConfig{HeartbeatInterval: time.Hour}, log)
	ws := NewWebSocketServer(stream, cfg, log)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ws.Serve(w, r, domain.UserID(r.URL.Query().Get("userId")))
	}))
	t.Cleanup(srv.Close)

	return &wsFixture{
		srv:        srv,
		registry:   registry,
		dispatcher: realtime.NewDispatcher(registry, log, realtime.NopObserver()),
	}
}

func (f *wsFixture) dial(t *testing.T, userID string, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketServer_SessionSequence(t *testing.T) {
	f := newWSFixture(t, DefaultConfig())
	conn := f.dial(t, "u1", nil)

	hello := readMessage(t, conn)
	assert.Equal(t, domain.EventConnected, hello.Event)
	var connected domain.ConnectedPayload
	require.NoError(t, json.Unmarshal(hello.Data, &connected))
	assert.Equal(t, domain.UserID("u1"), connected.UserID)
	assert.NotEmpty(t, connected.ClientID)

	count := readMessage(t, conn)
	assert.Equal(t, domain.EventUnreadCount, count.Event)
	assert.JSONEq(t, `{"count":4}`, string(count.Data))

	n := &domain.Notification{ID: 7, UserID: "u1", Type: domain.TypeNewFollower, Title: "t", Message: "m", CreatedAt: time.Now().UTC()}
	assert.Equal(t, 1, f.dispatcher.DispatchToUser(context.Background(), "u1", n))

	got := readMessage(t, conn)
	assert.Equal(t, domain.EventNotification, got.Event)
	var decoded domain.Notification
	require.NoError(t, json.Unmarshal(got.Data, &decoded))
	assert.Equal(t, n.ID, decoded.ID)
}

func TestWebSocketServer_ClientCloseRemovesChannel(t *testing.T) {
	f := newWSFixture(t, DefaultConfig())
	conn := f.dial(t, "u1", nil)
	readMessage(t, conn)
	require.Equal(t, 1, f.registry.Len())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return f.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.dispatcher.DispatchUnreadCount(context.Background(), "u1", 1))
}

func TestWebSocketServer_PingsKeepAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 60 * time.Millisecond
	f := newWSFixture(t, cfg)
	conn := f.dial(t, "u1", nil)

	pings := make(chan struct{}, 16)
	conn.SetPingHandler(func(data string) error {
		pings <- struct{}{}
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	// The default dialer only answers pings while something reads.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-pings:
		case <-time.After(time.Second):
			t.Fatal("expected server pings")
		}
	}
	assert.Equal(t, 1, f.registry.Len())
}

func TestWebSocketServer_SilentPeerIsDropped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 20 * time.Millisecond
	cfg.PongTimeout = 50 * time.Millisecond
	f := newWSFixture(t, cfg)

	conn := f.dial(t, "u1", nil)
	readMessage(t, conn)
	// Never read again, so pings go unanswered.

	assert.Eventually(t, func() bool { return f.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketServer_OriginCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.sprinta.example"}
	f := newWSFixture(t, cfg)
	u := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?userId=u1"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := f.dial(t, "u1", http.Header{"Origin": []string{"https://app.sprinta.example"}})
	assert.Equal(t, domain.EventConnected, readMessage(t, conn).Event)
}
