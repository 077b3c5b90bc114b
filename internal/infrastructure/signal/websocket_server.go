package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/infrastructure/realtime"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	Transport      = "websocket"
	maxInboundSize = 4096
)

type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// Message is the text frame sent for every event.
type Message struct {
	Event domain.EventName `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

// WebSocketServer runs the stream session over a WebSocket. Liveness uses
// protocol ping/pong: a peer that misses PongTimeout is disconnected.
type WebSocketServer struct {
	server   *realtime.StreamServer
	upgrader websocket.Upgrader
	cfg      Config
	logger   *zap.SugaredLogger
}

func NewWebSocketServer(server *realtime.StreamServer, cfg Config, logger *zap.SugaredLogger) *WebSocketServer {
	def := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	s := &WebSocketServer{server: server, cfg: cfg, logger: logger}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

type wsSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (s *wsSink) WriteEvent(ev realtime.Event) error {
	payload, err := json.Marshal(Message{Event: ev.Name, Data: ev.Data})
	if err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Serve upgrades the request and blocks until the session ends. The caller
// has already validated and authorised userID.
func (s *WebSocketServer) Serve(w http.ResponseWriter, r *http.Request, userID domain.UserID) error {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed",
			"user_id", userID,
			"error", err,
		)
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	var wg sync.WaitGroup
	wg.Add(2)

	// Reader: clients send nothing we act on, but reading is what processes
	// pongs and close frames.
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					s.logger.Debugw("WebSocket read ended",
						"user_id", userID,
						"error", err,
					)
				}
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deadline := time.Now().Add(s.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					s.logger.Debugw("WebSocket ping failed",
						"user_id", userID,
						"error", err,
					)
					cancel()
					return
				}
			}
		}
	}()

	serveErr := s.server.Serve(ctx, Transport, userID, &wsSink{conn: conn, writeTimeout: s.cfg.WriteTimeout})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	cancel()
	_ = conn.Close()
	wg.Wait()

	return serveErr
}
