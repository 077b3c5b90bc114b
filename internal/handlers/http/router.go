package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sprinta/internal/core/services"
	"sprinta/internal/infrastructure/middleware"
	"sprinta/internal/infrastructure/monitoring"
	"sprinta/pkg/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const streamPath = "/api/notifications/stream"

// RouterDeps collects everything NewRouter mounts. Auth, Cluster, Health,
// Metrics and Gatherer are optional.
type RouterDeps struct {
	Config        *config.Config
	Notifications *NotificationHandler
	Streams       *StreamHandler
	Auth          services.AuthService
	Cluster       InstanceLister
	Health        *monitoring.HealthChecker
	Metrics       *monitoring.PrometheusCollector
	Gatherer      prometheus.Gatherer
	Logger        *zap.SugaredLogger
	StartedAt     time.Time
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(deps.Logger),
	)
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware(streamPath, streamPath+"/ws"))
	}
	// Preflights for unmatched OPTIONS routes only reach global middleware.
	router.Use(restCORS(cfg.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(deps.StartedAt).String(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		if deps.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": monitoring.StatusHealthy})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := deps.Health.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != monitoring.StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	if cfg.Monitoring.PrometheusEnabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	var authMW []gin.HandlerFunc
	if deps.Auth != nil {
		authMW = append(authMW, middleware.AuthMiddleware(deps.Auth))
	}

	// Streams set their own CORS headers and live outside the REST limiter.
	streams := router.Group(streamPath)
	streams.OPTIONS("", deps.Streams.Preflight)
	streams.Use(middleware.NewStreamLimitMiddleware(cfg))
	streams.Use(authMW...)
	streams.GET("", deps.Streams.Stream)
	if cfg.Stream.WebSocketEnabled {
		streams.GET("/ws", deps.Streams.WebSocket)
	}

	api := router.Group("/api")
	api.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	api.Use(authMW...)
	deps.Notifications.SetupRoutes(api)
	if deps.Auth != nil {
		NewAuthHandler(deps.Auth, cfg.Auth.AccessTokenTTL).SetupRoutes(api)
	}
	if deps.Cluster != nil {
		NewClusterHandler(deps.Cluster).SetupRoutes(api)
	}

	return router
}

// restCORS applies gin-contrib/cors to everything except the stream
// endpoints, which answer with their own fixed headers.
func restCORS(origins []string) gin.HandlerFunc {
	handler := cors.New(corsConfig(origins))
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, streamPath) {
			c.Next()
			return
		}
		handler(c)
	}
}

func corsConfig(origins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cc.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	cc.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cc
}
