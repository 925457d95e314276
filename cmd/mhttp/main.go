// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main runs the mhttp echo service with metrics, health checks,
// admission rate limiting and optional TLS.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/absmach/mhttp"
	"github.com/absmach/mhttp/examples/echo"
	"github.com/absmach/mhttp/pkg/breaker"
	"github.com/absmach/mhttp/pkg/health"
	"github.com/absmach/mhttp/pkg/metrics"
	"github.com/absmach/mhttp/pkg/pool"
	"github.com/absmach/mhttp/pkg/ratelimit"
	"github.com/absmach/mhttp/pkg/server/tcp"
	"github.com/absmach/mhttp/pkg/tlsengine"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const maxGoroutines = 50000

func main() {
	// .env file is optional
	_ = godotenv.Load()

	cfg, err := mhttp.LoadConfig(env.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	m := metrics.New("mhttp", nil)

	tlsCtx, err := cfg.TLSContext()
	if err != nil {
		logger.Error("Failed to load TLS material", slog.String("error", err.Error()))
		os.Exit(1)
	}

	executor := tlsengine.NewExecutor(cfg.ExecutorQueue, logger)
	assemblers := pool.New(pool.Config{
		MaxIdle:     cfg.PoolMaxIdle,
		MaxActive:   cfg.PoolMaxActive,
		WaitTimeout: 5 * time.Second,
		Metrics:     m,
	})
	defer assemblers.Close()

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Capacity:   cfg.RateLimitCapacity,
		RefillRate: cfg.RateLimitRefill,
	})
	defer limiter.Close()

	checker := health.NewChecker(10 * time.Second)
	checker.Register("goroutines", func(context.Context) error {
		if n := runtime.NumGoroutine(); n > maxGoroutines {
			return fmt.Errorf("too many goroutines: %d > %d", n, maxGoroutines)
		}
		return nil
	})
	checker.Register("assembler_pool", func(context.Context) error {
		idle, active := assemblers.Stats()
		logger.Debug("Assembler pool stats", slog.Int("idle", idle), slog.Int("active", active))
		if cfg.PoolMaxActive > 0 && active >= cfg.PoolMaxActive {
			return fmt.Errorf("assembler pool exhausted: %d active", active)
		}
		return nil
	})

	cb := breaker.New(breaker.Config{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
		OnStateChange: func(from, to breaker.State) {
			logger.Warn("Circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	checker.Register("handler_breaker", func(context.Context) error {
		if st := cb.State(); st != breaker.StateClosed {
			return fmt.Errorf("circuit breaker is %s", st)
		}
		return nil
	})

	mux, err := echo.New(logger).Mux(checker)
	if err != nil {
		logger.Error("Failed to register routes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := tcp.New(tcp.Config{
		Address:         cfg.Address(),
		TLS:             tlsCtx,
		Executor:        executor,
		Pool:            assemblers,
		Limiter:         limiter,
		ReadBufferSize:  cfg.ReadBufferSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         m,
		Logger:          logger,
	}, breaker.NewGuard(mux, cb))

	g.Go(func() error {
		logger.Info("Starting mhttp",
			slog.String("address", cfg.Address()),
			slog.Bool("tls", cfg.TLSEnabled()))
		return srv.Listen(ctx)
	})

	g.Go(func() error {
		return startMetricsServer(ctx, cfg.MetricsPort, logger)
	})

	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, logger)
	})

	err = g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if serr := executor.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("Executor shutdown", slog.String("error", serr.Error()))
	}

	if err != nil {
		logger.Error(fmt.Sprintf("mhttp service terminated with error: %s", err))
		os.Exit(1)
	}
	logger.Info("mhttp service stopped")
}

// setupLogger creates a structured logger with the specified level and format.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// startMetricsServer serves Prometheus metrics until ctx is done.
func startMetricsServer(ctx context.Context, port string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	addr := net.JoinHostPort("", port)
	logger.Info("Starting metrics server", slog.String("address", addr))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// StopSignalHandler cancels ctx on SIGINT or SIGTERM.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
