// Package main is the entry point for the evidence console server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/demonfiddler/evidence-engine-sub001/internal/catalog"
	"github.com/demonfiddler/evidence-engine-sub001/internal/config"
	"github.com/demonfiddler/evidence-engine-sub001/internal/graphql"
	"github.com/demonfiddler/evidence-engine-sub001/internal/observability"
	"github.com/demonfiddler/evidence-engine-sub001/internal/session"
	"github.com/demonfiddler/evidence-engine-sub001/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "evidence-console", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	client := graphql.NewClient(cfg.GraphQL, logger, metrics)

	backend, storeCheck, closeStore, err := buildSessionBackend(ctx, cfg.Session, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}

	sessions := transport.NewManager(backend, catalog.New(client), cfg.Pages, cfg.Session.Idle, logger, metrics)

	router := transport.NewRouter(transport.Dependencies{
		Config:   cfg,
		Sessions: sessions,
		Readiness: observability.ReadinessChecks{
			Backend:      client,
			SessionStore: storeCheck,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if cfg.Session.Idle > 0 {
		go sessions.Run(bgCtx, cfg.Session.SweepInterval)
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("graphql_endpoint", cfg.GraphQL.Endpoint),
		zap.String("session_store", cfg.Session.Store),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()

	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Error("session store close error", zap.Error(err))
		}
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildSessionBackend creates the session backend named by the config. The
// memory backend has no readiness check and nothing to close.
func buildSessionBackend(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (session.Backend, observability.HealthChecker, func() error, error) {
	switch cfg.Store {
	case config.SessionStoreMemory, "":
		logger.Info("using in-memory session store")
		return session.NewMemoryBackend(cfg.TTL), nil, nil, nil
	case config.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, nil, fmt.Errorf("session store: ping %s: %w", cfg.Redis.Addr, err)
		}
		check := observability.HealthCheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("using redis session store", zap.String("addr", cfg.Redis.Addr))
		return session.NewRedisBackend(rdb, cfg.TTL), check, rdb.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported session store: %q", cfg.Store)
	}
}
