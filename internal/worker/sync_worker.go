package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"expense-tracker/internal/amqp"
	"expense-tracker/internal/core"
	"expense-tracker/internal/sheets"
	"expense-tracker/internal/storage"
)

// SyncWorker mirrors transactions from the store to Google Sheets
type SyncWorker struct {
	repo   storage.Repository
	mirror sheets.TransactionMirror
}

func NewSyncWorker(repo storage.Repository, mirror sheets.TransactionMirror) *SyncWorker {
	return &SyncWorker{repo: repo, mirror: mirror}
}

// HandleEvent copies the current state of the announced transaction to the mirror.
// The row is read from the store so replays and out-of-order events converge.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	tx, err := w.repo.Get(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction from event not found, skipping",
			"id", msg.ID,
			"event", msg.Event)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.mirror.Upsert(ctx, tx); err != nil {
		return fmt.Errorf("upsert transaction to sheets: %w", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", tx.ID,
		"event", msg.Event,
		"type", tx.Type,
		"amount", tx.Amount)
	return nil
}

// Reconcile rewrites the mirror from the full store, oldest first.
// It recovers from lost events and from rows edited by hand in the sheet.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	start := time.Now()

	txs, err := w.repo.ListRange(ctx, core.DateRange{})
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, txs); err != nil {
		return fmt.Errorf("replace sheet contents: %w", err)
	}

	slog.InfoContext(ctx, "Reconcile completed",
		"rows", len(txs),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// ScheduleReconcile runs Reconcile on the cron schedule until ctx is done.
// An empty schedule disables it. Overlapping runs are skipped.
func (w *SyncWorker) ScheduleReconcile(ctx context.Context, schedule string) error {
	if schedule == "" {
		slog.InfoContext(ctx, "Scheduled reconcile disabled")
		<-ctx.Done()
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		if err := w.Reconcile(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled reconcile failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse sync schedule %q: %w", schedule, err)
	}

	c.Start()
	slog.InfoContext(ctx, "Scheduled reconcile started", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
