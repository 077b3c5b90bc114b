package monitoring

import (
	"strconv"
	"time"

	"sprinta/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sprinta"

// PrometheusCollector exports stream, dispatch, producer and HTTP metrics.
// It implements realtime.Observer.
type PrometheusCollector struct {
	connectedClients prometheus.Gauge
	connectedUsers   prometheus.Gauge

	eventsDelivered  *prometheus.CounterVec
	eventsFailed     *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	notificationsCreated *prometheus.CounterVec
	notificationsSkipped *prometheus.CounterVec

	streamSessions *prometheus.CounterVec
	streamDuration *prometheus.HistogramVec

	clusterMessages *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewPrometheusCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry(); main passes prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	f := promauto.With(reg)
	return &PrometheusCollector{
		connectedClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Open stream channels on this instance",
		}),
		connectedUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Distinct users with at least one open channel",
		}),

		eventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Event frames written to a channel",
		}, []string{"event"}),
		eventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Event writes that failed and closed their channel",
		}, []string{"event"}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events addressed to users with no open channel",
		}, []string{"event"}),
		dispatchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time to fan one event out to a user's channels",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"event"}),

		notificationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_created_total",
			Help:      "Notifications persisted, by type",
		}, []string{"type"}),
		notificationsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_skipped_total",
			Help:      "Notifications dropped by user preferences, by type",
		}, []string{"type"}),

		streamSessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_sessions_total",
			Help:      "Stream sessions opened, by transport",
		}, []string{"transport"}),
		streamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_session_duration_seconds",
			Help:      "Lifetime of stream sessions",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 9),
		}, []string{"transport"}),

		clusterMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_messages_total",
			Help:      "Cluster bus traffic by direction and outcome",
		}, []string{"direction", "outcome"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "REST request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (p *PrometheusCollector) ConnectionsChanged(clients, users int) {
	p.connectedClients.Set(float64(clients))
	p.connectedUsers.Set(float64(users))
}

func (p *PrometheusCollector) EventDelivered(name domain.EventName, n int) {
	if n > 0 {
		p.eventsDelivered.WithLabelValues(string(name)).Add(float64(n))
	}
}

func (p *PrometheusCollector) EventFailed(name domain.EventName, n int) {
	if n > 0 {
		p.eventsFailed.WithLabelValues(string(name)).Add(float64(n))
	}
}

func (p *PrometheusCollector) EventDropped(name domain.EventName) {
	p.eventsDropped.WithLabelValues(string(name)).Inc()
}

func (p *PrometheusCollector) DispatchDuration(name domain.EventName, d time.Duration) {
	p.dispatchDuration.WithLabelValues(string(name)).Observe(d.Seconds())
}

func (p *PrometheusCollector) NotificationCreated(t domain.NotificationType) {
	p.notificationsCreated.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) NotificationSkipped(t domain.NotificationType) {
	p.notificationsSkipped.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) StreamOpened(transport string) {
	p.streamSessions.WithLabelValues(transport).Inc()
}

func (p *PrometheusCollector) StreamClosed(transport string, lifetime time.Duration) {
	p.streamDuration.WithLabelValues(transport).Observe(lifetime.Seconds())
}

// ClusterMessage counts bus traffic. direction is "out" or "in"; outcome is
// "ok", "error" or "skipped".
func (p *PrometheusCollector) ClusterMessage(direction, outcome string) {
	p.clusterMessages.WithLabelValues(direction, outcome).Inc()
}

// GinMiddleware records REST request metrics. Streams are excluded from the
// latency histogram since their duration is the session lifetime.
func (p *PrometheusCollector) GinMiddleware(skipRoutes ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipRoutes))
	for _, r := range skipRoutes {
		skip[r] = true
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		p.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		if !skip[route] {
			p.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		}
	}
}
