package realtime

import (
	"context"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/pkg/logger"
	"sprinta/pkg/tracing"

	"go.uber.org/zap"
)

const DefaultHeartbeatInterval = 30 * time.Second

type SessionConfig struct {
	HeartbeatInterval time.Duration
	// RetryHint is sent once before the first event when the sink supports it.
	RetryHint time.Duration
}

type retryWriter interface {
	WriteRetry(d time.Duration) error
}

// StreamServer runs stream sessions: Connecting, then Streaming until the
// client goes away or a write fails, then Closed.
type StreamServer struct {
	registry *Registry
	counter  ports.UnreadCounter
	cfg      SessionConfig
	log      *logger.ContextLogger
}

func NewStreamServer(registry *Registry, counter ports.UnreadCounter, cfg SessionConfig, log *zap.SugaredLogger) *StreamServer {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &StreamServer{
		registry: registry,
		counter:  counter,
		cfg:      cfg,
		log:      logger.NewContextLogger(log),
	}
}

// Serve blocks for the lifetime of the session. It returns nil when the
// session ended because ctx was cancelled or the channel was closed by
// someone else, and the write error when a heartbeat could not be sent.
func (s *StreamServer) Serve(ctx context.Context, transport string, userID domain.UserID, sink Sink) error {
	if userID == "" {
		return domain.ErrMissingUserID
	}

	if s.cfg.RetryHint > 0 {
		if rw, ok := sink.(retryWriter); ok {
			if err := rw.WriteRetry(s.cfg.RetryHint); err != nil {
				return err
			}
		}
	}

	ch, err := s.registry.Connect(userID, sink, func(ch *Channel) error {
		ev, err := Encode(domain.EventConnected, domain.ConnectedPayload{
			ClientID:  ch.ID(),
			UserID:    userID,
			Timestamp: domain.NowTimestamp(),
		})
		if err != nil {
			return err
		}
		return ch.Send(ev)
	})
	if err != nil {
		s.log.For(ctx).Warnw("Failed to open stream",
			"user_id", userID,
			"transport", transport,
			"error", err,
		)
		return err
	}

	ctx = logger.WithClientID(ctx, string(ch.ID()))
	ctx, span := tracing.TraceStreamSession(ctx, transport, string(userID), string(ch.ID()))
	defer span.End()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		heartbeat.Stop()
		s.registry.RemoveClientByRef(ch)
	}()

	s.sendUnreadCount(ctx, ch)

	for {
		select {
		case <-ctx.Done():
			s.log.For(ctx).Debugw("Stream cancelled by client", "user_id", userID)
			return nil

		case <-ch.Done():
			s.log.For(ctx).Debugw("Stream channel closed", "user_id", userID)
			return nil

		case <-heartbeat.C:
			ev, err := Encode(domain.EventHeartbeat, domain.HeartbeatPayload{Timestamp: domain.NowTimestamp()})
			if err != nil {
				return err
			}
			if err := ch.Send(ev); err != nil {
				s.log.For(ctx).Debugw("Heartbeat failed, closing stream",
					"user_id", userID,
					"error", err,
				)
				tracing.RecordError(ctx, err)
				return err
			}
		}
	}
}

func (s *StreamServer) sendUnreadCount(ctx context.Context, ch *Channel) {
	if s.counter == nil {
		return
	}
	count, err := s.counter.UnreadCount(ctx, ch.UserID())
	if err != nil {
		s.log.For(ctx).Errorw("Failed to load unread count",
			"user_id", ch.UserID(),
			"error", err,
		)
		return
	}
	ev, err := Encode(domain.EventUnreadCount, domain.UnreadCountPayload{Count: count})
	if err != nil {
		return
	}
	if err := ch.Send(ev); err != nil {
		s.log.For(ctx).Debugw("Failed to send initial unread count",
			"user_id", ch.UserID(),
			"error", err,
		)
	}
}

func (s *StreamServer) Registry() *Registry {
	return s.registry
}
