package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetpulse/internal/core/domain"
	"fleetpulse/internal/core/ports"
	"fleetpulse/internal/core/services"
	httphandlers "fleetpulse/internal/handlers/http"
	"fleetpulse/internal/infrastructure/distributed"
	"fleetpulse/internal/infrastructure/middleware"
	"fleetpulse/internal/infrastructure/monitoring"
	"fleetpulse/internal/infrastructure/notify"
	"fleetpulse/internal/infrastructure/realtime"
	"fleetpulse/internal/infrastructure/reliability"
	repositories "fleetpulse/internal/infrastructure/repositories"
	"fleetpulse/internal/infrastructure/tokenstore"
	"fleetpulse/pkg/circuitbreaker"
	"fleetpulse/pkg/config"
	pkgdistributed "fleetpulse/pkg/distributed"
	"fleetpulse/pkg/logger"
	"fleetpulse/pkg/retry"
	"fleetpulse/pkg/tracing"
	"fleetpulse/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env feeds the FLEETPULSE_* overrides applied by config.Load
	envErr := godotenv.Load()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	cfg, cfgPath, err := config.LoadFirst(configPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if envErr != nil {
		log.Debugw("no .env file loaded, using process environment", "error", envErr)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "fleetpulse",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("tracing disabled", "error", err)
		tp = &tracing.TracerProvider{}
	}

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	redisClient := repoFactory.RedisClient()

	locationRepo := repoFactory.CreateLocationRepository()

	var tokens ports.TokenStore = tokenstore.NewFileTokenStore(cfg.Auth.TokenFile, cfg.Auth.TokenKey)
	if cfg.Auth.TokenSource == "redis" {
		if redisClient != nil {
			tokens = tokenstore.NewRedisTokenStore(redisClient, cfg.Auth.TokenKey)
		} else {
			log.Warnw("redis token source unavailable, reading token from file", "file", cfg.Auth.TokenFile)
		}
	}
	tokens = tokenstore.NewExpiryGuard(tokens, log)

	registry := prometheus.NewRegistry()
	collector := monitoring.NewPrometheusCollector(registry)

	manager := realtime.NewManager(realtime.Config{
		URL:                  cfg.Realtime.SocketURL,
		ReconnectInterval:    cfg.Realtime.ReconnectInterval,
		ReconnectMaxInterval: cfg.Realtime.ReconnectMaxInterval,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		HeartbeatInterval:    cfg.Realtime.HeartbeatInterval,
		HeartbeatStaleAfter:  cfg.Realtime.HeartbeatStaleAfter,
		StatsInterval:        cfg.Realtime.StatsInterval,
		DialTimeout:          cfg.Realtime.DialTimeout,
		WriteTimeout:         cfg.Realtime.WriteTimeout,
		LogEvents:            cfg.Realtime.LogEvents,
	}, tokens, log, realtime.WithMetrics(collector))

	alertOpts := []services.AlertOption{services.WithAlertMetrics(collector)}
	var bus *distributed.EventBus
	if cfg.Notifications.PublishChannel != "" && redisClient != nil {
		bus = distributed.NewEventBus(redisClient, utils.GenerateID("console"), cfg.Notifications.PublishChannel, log)
		publisher := reliability.NewAlertPublisher(bus, retry.DefaultConfig(), circuitbreaker.DefaultConfig(), log)
		alertOpts = append(alertOpts, services.WithAlertPublisher(publisher))
	}

	alerts := services.NewAlertService(services.AlertConfig{
		MaxRetained:          cfg.Alerts.MaxRetained,
		MaxVisible:           cfg.Alerts.MaxVisible,
		NotificationsEnabled: cfg.Notifications.Enabled,
		SoundEnabled:         cfg.Notifications.SoundEnabled,
		SoundDir:             cfg.Notifications.SoundDir,
		AutoDismiss:          cfg.Notifications.AutoDismiss,
		DedupeWindow:         cfg.Notifications.DedupeWindow,
		Icon:                 cfg.Notifications.Icon,
		Badge:                cfg.Notifications.Badge,
	}, manager,
		notify.NewLogNotifier(cfg.Notifications.Enabled, log),
		notify.NewCommandSoundPlayer(cfg.Notifications.SoundCommand, log),
		log, alertOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	perm := alerts.RequestPermission(ctx)
	log.Infow("notification permission", "permission", string(perm))

	aggregator := services.NewAggregatorService(locationRepo, cfg.Locations.StaleAfter, log)
	dashboard := services.NewDashboardService(aggregator, alerts, func() string { return manager.State().SocketID })
	health := services.NewHealthService(manager, aggregator, alerts)
	subscriptions := services.NewSubscriptionService(manager, cfg.Realtime.Channels, cfg.Realtime.Filters, log)
	activity := services.NewActivityService(manager, cfg.Activity.MinInterval, log)

	manager.OnConnect(subscriptions.Resubscribe)
	manager.OnEvent(dashboard.HandleEvent)
	prune := func(ctx context.Context, now time.Time) error {
		_, err := aggregator.PruneLocations(ctx, now)
		return err
	}
	if cfg.Locations.Store == "redis" && redisClient != nil {
		// consoles sharing the redis store prune it once per round
		locks := pkgdistributed.NewLockManager(redisClient, "fleetpulse:locks:")
		prune = func(ctx context.Context, now time.Time) error {
			_, err := locks.RunExclusive(ctx, "prune-locations", cfg.Realtime.StatsInterval, func(ctx context.Context) error {
				_, err := aggregator.PruneLocations(ctx, now)
				return err
			})
			return err
		}
	}

	manager.OnTick(func(now time.Time) {
		if err := prune(ctx, now); err != nil {
			log.Warnw("failed to prune driver locations", "error", err)
		}
		if n, err := locationRepo.Count(ctx); err == nil {
			collector.LocationsTracked(n)
		}
	})

	checker := monitoring.NewHealthChecker()
	checker.AddTransportCheck(manager)
	checker.AddLocationStoreCheck(locationRepo, 2*time.Second)
	if redisClient != nil {
		checker.AddRedisCheck(redisClient, 2*time.Second)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestLoggingMiddleware(logger.NewContextLogger(zapLogger)))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	router.Use(middleware.ErrorHandlerMiddleware(log))

	deps := httphandlers.DashboardDeps{
		Aggregator:    aggregator,
		Alerts:        alerts,
		Health:        health,
		Subscriptions: subscriptions,
		Activity:      activity,
		Connection:    manager,
		Checker:       checker,
	}
	if cfg.Monitoring.PrometheusEnabled {
		deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		log.Info("Prometheus metrics enabled")
	}
	httphandlers.NewDashboardHandler(deps).SetupRoutes(router)

	go manager.Run(ctx)
	go alerts.RunPublisher(ctx)

	if bus != nil {
		go func() {
			err := bus.Subscribe(ctx, func(ev *distributed.Event) error {
				var alert domain.RealtimeAlert
				if err := json.Unmarshal(ev.Payload, &alert); err != nil {
					return err
				}
				log.Infow("alert raised on peer console",
					"instance_id", ev.InstanceID,
					"alert_id", alert.ID,
					"priority", string(alert.Priority),
				)
				return nil
			})
			if err != nil && ctx.Err() == nil {
				log.Warnw("alert fan-out subscription ended", "error", err)
			}
		}()
	}

	if cfg.Realtime.AutoConnect {
		if err := manager.Connect(ctx); err != nil {
			log.Warnw("initial realtime connect failed", "url", cfg.Realtime.SocketURL, "error", err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting FleetPulse dashboard on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down FleetPulse dashboard...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	cancel()
	manager.Disconnect()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer provider", "error", err)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("FleetPulse dashboard stopped")
}
