package http

import (
	"net/http"
	"time"

	"sprinta/internal/core/ports"
	"sprinta/internal/core/services"
	"sprinta/internal/infrastructure/realtime"
	"sprinta/internal/infrastructure/signal"
	"sprinta/pkg/logger"
	"sprinta/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sseTransport = "sse"

// StreamHandler serves the live notification stream over SSE and, when a
// WebSocket server is configured, over WebSocket.
type StreamHandler struct {
	server       *realtime.StreamServer
	ws           *signal.WebSocketServer
	writeTimeout time.Duration
	metrics      StreamMetrics
	access       accessControl
	log          *logger.ContextLogger
}

// NewStreamHandler builds the handler. ws, auth and metrics may be nil.
func NewStreamHandler(
	server *realtime.StreamServer,
	ws *signal.WebSocketServer,
	auth services.AuthService,
	writeTimeout time.Duration,
	metrics StreamMetrics,
	log *zap.SugaredLogger,
) *StreamHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &StreamHandler{
		server:       server,
		ws:           ws,
		writeTimeout: writeTimeout,
		metrics:      metrics,
		access:       accessControl{auth: auth},
		log:          logger.NewContextLogger(log),
	}
}

var _ ports.StreamHTTPHandler = (*StreamHandler)(nil)

func setStreamCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// Preflight answers OPTIONS with 204 and no body.
func (h *StreamHandler) Preflight(c *gin.Context) {
	setStreamCORS(c.Writer.Header())
	c.Status(http.StatusNoContent)
}

func (h *StreamHandler) Stream(c *gin.Context) {
	userID, err := userIDParam(c.Query("userId"))
	if err != nil {
		setStreamCORS(c.Writer.Header())
		_ = c.Error(err)
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		setStreamCORS(c.Writer.Header())
		_ = c.Error(err)
		return
	}

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache, no-transform")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	setStreamCORS(hdr)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()

	opened := time.Now()
	h.metrics.StreamOpened(sseTransport)
	defer func() {
		d := time.Since(opened)
		h.metrics.StreamClosed(sseTransport, d)
		h.log.For(c.Request.Context()).Debugw("SSE stream closed",
			"user_id", userID,
			"duration", utils.FormatDuration(d),
		)
	}()

	sink := realtime.NewSSESink(c.Writer, h.writeTimeout)
	if err := h.server.Serve(c.Request.Context(), sseTransport, userID, sink); err != nil {
		h.log.For(c.Request.Context()).Debugw("SSE stream ended with error",
			"user_id", userID,
			"error", err,
		)
	}
}

// WebSocket upgrades the request. Errors after the upgrade cannot be
// rendered as JSON, so they are only logged.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	if h.ws == nil {
		c.Status(http.StatusNotFound)
		return
	}
	userID, err := userIDParam(c.Query("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.access.authorize(c, userID); err != nil {
		_ = c.Error(err)
		return
	}

	opened := time.Now()
	h.metrics.StreamOpened(signal.Transport)
	defer func() {
		h.metrics.StreamClosed(signal.Transport, time.Since(opened))
	}()

	if err := h.ws.Serve(c.Writer, c.Request, userID); err != nil {
		h.log.For(c.Request.Context()).Debugw("WebSocket stream ended with error",
			"user_id", userID,
			"error", err,
		)
	}
}
