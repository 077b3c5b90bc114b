package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sprinta/internal/core/domain"
	"sprinta/internal/core/ports"
	"sprinta/internal/core/services"
	httphandlers "sprinta/internal/handlers/http"
	"sprinta/internal/infrastructure/distributed"
	"sprinta/internal/infrastructure/monitoring"
	"sprinta/internal/infrastructure/realtime"
	"sprinta/internal/infrastructure/repositories"
	wsignal "sprinta/internal/infrastructure/signal"
	"sprinta/pkg/cache"
	"sprinta/pkg/config"
	"sprinta/pkg/logger"
	"sprinta/pkg/tracing"
	"sprinta/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const presenceInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notification API and stream server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	startedAt := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = utils.GenerateID("node")
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar().With("instance_id", cfg.Server.InstanceID)

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer func() {
		if err := repoFactory.Close(); err != nil {
			log.Errorw("Error closing storage", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewPrometheusCollector(reg)

	registry := realtime.NewRegistry(log, metrics)
	local := realtime.NewDispatcher(registry, log, metrics)

	health := monitoring.NewHealthChecker(log)
	interval, timeout := cfg.Monitoring.HealthInterval, cfg.Monitoring.HealthTimeout
	health.AddStorageCheck(repoFactory.Driver(), repoFactory.HealthCheck, interval, timeout)
	if client := repoFactory.RedisClient(); client != nil {
		health.AddRedisCheck(client, interval, timeout)
	}

	var dispatcher ports.Dispatcher = local
	var cluster *distributed.ClusterDispatcher
	var presence *distributed.Presence
	if cfg.Cluster.Enabled {
		client := repoFactory.RedisClient()
		if client == nil {
			return errors.New("cluster mode needs a reachable Redis")
		}
		bus := distributed.NewEventBus(client, cfg.Cluster.Channel, cfg.Server.InstanceID, log)
		cluster = distributed.NewClusterDispatcher(local, bus, metrics, log)
		presence = distributed.NewPresence(client, cfg.Cluster.Channel, cfg.Server.InstanceID, 3*presenceInterval, log)
		dispatcher = cluster
		health.AddClusterCheck(bus.Running, interval, timeout)
	}

	var prefCache *cache.Cache[domain.UserID, domain.Preferences]
	if cfg.Cache.PreferencesTTL > 0 {
		prefCache = cache.New[domain.UserID, domain.Preferences](cfg.Cache.PreferencesTTL)
		defer prefCache.Stop()
	}
	svc := services.NewNotificationService(
		repoFactory.NotificationRepository(),
		repoFactory.PreferenceRepository(),
		dispatcher,
		prefCache,
		log,
	)

	var auth services.AuthService
	if cfg.Auth.Enabled {
		auth = services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
		log.Infow("JWT auth enabled",
			"secret", utils.MaskSensitive(cfg.Auth.JWTSecret, 4),
			"token_ttl", cfg.Auth.AccessTokenTTL,
		)
	}

	streamServer := realtime.NewStreamServer(registry, svc, realtime.SessionConfig{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		RetryHint:         cfg.Stream.RetryHint,
	}, log)

	var ws *wsignal.WebSocketServer
	if cfg.Stream.WebSocketEnabled {
		wsCfg := wsignal.DefaultConfig()
		wsCfg.PingInterval = cfg.Stream.HeartbeatInterval
		wsCfg.PongTimeout = cfg.Stream.PongTimeout
		wsCfg.WriteTimeout = cfg.Stream.WriteTimeout
		wsCfg.AllowedOrigins = cfg.CORS.AllowedOrigins
		ws = wsignal.NewWebSocketServer(streamServer, wsCfg, log)
	}

	deps := httphandlers.RouterDeps{
		Config:        cfg,
		Notifications: httphandlers.NewNotificationHandler(svc, registry, auth, metrics),
		Streams:       httphandlers.NewStreamHandler(streamServer, ws, auth, cfg.Stream.WriteTimeout, metrics, log),
		Auth:          auth,
		Health:        health,
		Metrics:       metrics,
		Gatherer:      reg,
		Logger:        log,
		StartedAt:     startedAt,
	}
	if presence != nil {
		deps.Cluster = presence
	}
	router := httphandlers.NewRouter(deps)

	// Background workers stop with ctx.
	health.StartBackgroundChecks(ctx)
	if cluster != nil {
		go func() {
			if err := cluster.Run(ctx); err != nil {
				log.Errorw("Cluster event bus stopped", "error", err)
			}
		}()
		go presence.Run(ctx, registry, presenceInterval)
	}
	watcher, err := repoFactory.NewFileWatcher(cfg)
	if err != nil {
		log.Warnw("File watcher disabled", "error", err)
	}
	if watcher != nil {
		watcher.OnChange(func() {
			svc.InvalidatePreferences()
			pushed := svc.RefreshUnreadCounts(ctx, registry.Users())
			log.Infow("Data files changed, unread counts refreshed", "users", pushed)
		})
		go watcher.Run(ctx)
		defer watcher.Close()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting notification server",
			"address", cfg.Server.Address,
			"storage", repoFactory.Driver(),
			"cluster", cfg.Cluster.Enabled,
			"auth", cfg.Auth.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	return shutdown(srv, registry, tp, cfg.Server.ShutdownTimeout, log)
}

// shutdown closes live streams first; Shutdown would otherwise wait for
// them until the timeout.
func shutdown(srv *http.Server, registry *realtime.Registry, tp *tracing.TracerProvider, timeout time.Duration, log *zap.SugaredLogger) error {
	closed := registry.CloseAll()
	log.Infow("Closed live streams", "count", closed)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("Graceful shutdown failed, forcing close", "error", err)
		_ = srv.Close()
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Warnw("Tracer shutdown failed", "error", err)
	}

	log.Info("Notification server stopped")
	return nil
}
