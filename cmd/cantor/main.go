package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/cantor/pkg/api"
	"github.com/platinummonkey/cantor/pkg/async"
	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/config"
	"github.com/platinummonkey/cantor/pkg/maintenance"
	"github.com/platinummonkey/cantor/pkg/middleware"
	"github.com/platinummonkey/cantor/pkg/observability"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("cantor exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer shutdown.Shutdown()

	providers, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return fmt.Errorf("init OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return fmt.Errorf("create OpenTelemetry instruments: %w", err)
		}
		metrics.SetOTel(otelMetrics)
	}

	store, err := sqlstore.Open(ctx, cfg.SQLStore())
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error {
		return store.Close()
	})
	logger.WithField("driver", store.Driver()).Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		shutdown.Register("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}

	runner := async.NewRunner(logger, 0)
	shutdown.Register("background tasks", runner.Close)

	svc, err := auth.NewService(store, cfg.AuthCore(),
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
		auth.WithAuditLogger(auth.NewAuditLogger(logger)),
		auth.WithResetNotifier(auth.AsyncNotifier{
			Next:   auth.LogNotifier{Logger: logger},
			Runner: runner,
		}),
	)
	if err != nil {
		return err
	}

	created, err := svc.Seed(ctx, cfg.SeedAccounts()...)
	if err != nil {
		return err
	}
	if created > 0 {
		logger.WithField("accounts", created).Info("Seeded initial accounts")
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limiter = middleware.NewDistributedRateLimiter(redisClient, cfg.RateLimiter(), "cantor:ratelimit")
		} else {
			local := middleware.NewRateLimiter(cfg.RateLimiter())
			local.StartCleanup(ctx)
			limiter = local
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Maintenance.Enabled {
		janitor, err := maintenance.New(maintenance.Config{Schedule: cfg.Maintenance.Schedule},
			[]maintenance.Target{
				{Table: "sessions", Purger: svc.Sessions},
				{Table: "password_reset_tokens", Purger: svc.ResetTokens},
			},
			maintenance.WithMetrics(metrics),
			maintenance.WithLogger(logger),
			maintenance.WithStats(store.DB()),
		)
		if err != nil {
			return err
		}
		if err := janitor.Start(gctx); err != nil {
			return err
		}
		shutdown.Register("janitor", janitor.Stop)
	}

	server := api.NewServer(api.Options{
		Service:        svc,
		Logger:         logger,
		Metrics:        metrics,
		Limiter:        limiter,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustProxy:     cfg.Server.TrustProxy,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	ops := api.OpsRoutes{Health: observability.NewHealthChecker(store.DB(), redisClient, cfg.Observability.OTelServiceVersion)}
	if cfg.Observability.MetricsEnabled {
		ops.Registry = registry
	}

	httpCfg := api.HTTPConfig{
		Addr:         cfg.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if addr := cfg.MetricsAddr(); addr != "" {
		opsCfg := httpCfg
		opsCfg.Addr = addr
		opsServer := api.NewHTTPServer(opsCfg, api.NewOpsRouter(ops))
		g.Go(func() error {
			return api.Serve(gctx, opsServer, cfg.Server.ShutdownTimeout, logger)
		})
	} else {
		server.RegisterRoutes(ops)
	}

	apiServer := api.NewHTTPServer(httpCfg, server)
	g.Go(func() error {
		return api.Serve(gctx, apiServer, cfg.Server.ShutdownTimeout, logger)
	})

	logger.WithField("addr", cfg.Addr()).Info("Cantor auth service started")
	if err := g.Wait(); err != nil {
		return err
	}
	return shutdown.Shutdown()
}
