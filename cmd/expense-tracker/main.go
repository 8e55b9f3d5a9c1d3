package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expense-tracker/internal/backend"
	"expense-tracker/internal/cli"
	apphttp "expense-tracker/internal/http"
	"expense-tracker/internal/log"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot, nil)
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.NewFactory(logger).CreateBackend(initCtx, backendCfg)
	cancelInit()
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, apphttp.Options{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Idempotency:    res.Idempotency,
		IdempotencyTTL: cfg.IdempotencyTTL,
		WriteRateLimit: cfg.WriteRateLimit,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.Info("Starting expense tracker server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"idempotency_enabled", res.Idempotency != nil,
			"events_enabled", res.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", "suspicious_requests", srv.SuspiciousRequests())
}
