package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expense-tracker/internal/backend"
	"expense-tracker/internal/cli"
	"expense-tracker/internal/config"
	"expense-tracker/internal/log"
	"expense-tracker/internal/sheets"
	gsheet "expense-tracker/internal/sheets/google"
	"expense-tracker/internal/worker"
)

// errNoBroker stops the worker when no AMQP connection could be made.
var errNoBroker = errors.New("AMQP broker is unreachable, the worker cannot consume events")

// mirrorFunc builds the Sheets mirror; swapped in tests.
type mirrorFunc func(ctx context.Context, cfg *config.Config) (sheets.TransactionMirror, error)

func newGoogleMirror(ctx context.Context, cfg *config.Config) (sheets.TransactionMirror, error) {
	return gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
}

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(boot, (*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting expense-worker")

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := run(ctx, cfg, logger, backend.NewFactory(logger), newGoogleMirror); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

// run wires the backend and the mirror and consumes until ctx is done.
// Backend resources are released on every return path.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger, factory backend.Factory, newMirror mirrorFunc) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend configuration: %w", err)
	}
	// The worker only reads; it has no use for idempotency keys.
	backendCfg.RedisAddr = ""

	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to release backend resources", log.FieldError, err)
		}
	}()

	if res.Events == nil {
		return errNoBroker
	}

	mirror, err := newMirror(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	syncWorker := worker.NewSyncWorker(res.Repository, mirror)

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup reconcile...")
	if err := syncWorker.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return res.Events.ConsumeTransactionEvents(gctx, syncWorker.HandleEvent)
	})
	g.Go(func() error {
		return syncWorker.ScheduleReconcile(gctx, cfg.SyncSchedule)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
