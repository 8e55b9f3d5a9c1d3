package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expense-tracker/internal/core"
	"expense-tracker/internal/storage"
)

// EventPublisher announces committed writes. Implemented by amqp.Client.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event string, id int64) error
}

// TransactionService orchestrates transaction operations across the store and AMQP
type TransactionService struct {
	repo   storage.Repository
	events EventPublisher
	now    func() time.Time
}

// NewTransactionService wires the service. events may be nil when no broker is configured.
func NewTransactionService(repo storage.Repository, events EventPublisher) *TransactionService {
	return &TransactionService{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

// Create validates the input, stamps created_at when absent and persists it.
func (s *TransactionService) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if in.CreatedAt == nil {
		now := s.now().UTC()
		in.CreatedAt = &now
	}

	tx, err := s.repo.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, core.EventTransactionCreated, tx.ID)
	return tx, nil
}

// List returns one page of transactions, most recent first.
func (s *TransactionService) List(ctx context.Context, page core.Page) ([]core.Transaction, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}
	txs, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Update replaces type, amount and description of an existing transaction.
// created_at changes only when the input carries one.
func (s *TransactionService) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.publish(ctx, core.EventTransactionUpdated, tx.ID)
	return tx, nil
}

func (s *TransactionService) Balance(ctx context.Context) (float64, error) {
	totals, err := s.Totals(ctx)
	if err != nil {
		return 0, err
	}
	return totals.Balance(), nil
}

func (s *TransactionService) Totals(ctx context.Context) (core.Totals, error) {
	totals, err := s.repo.Totals(ctx, core.DateRange{})
	if err != nil {
		return core.Totals{}, fmt.Errorf("compute totals: %w", err)
	}
	return totals, nil
}

func (s *TransactionService) UniqueDescriptions(ctx context.Context) ([]string, error) {
	descs, err := s.repo.UniqueDescriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("unique descriptions: %w", err)
	}
	if descs == nil {
		descs = []string{}
	}
	return descs, nil
}

// FrequentDescriptions returns descriptions used at least min times, most frequent first.
func (s *TransactionService) FrequentDescriptions(ctx context.Context, min int) ([]core.DescriptionCount, error) {
	if min < 1 {
		verr := &core.ValidationError{}
		verr.Add(core.SourceQuery, "min", core.KindGreaterEqual, "ensure this value is greater than or equal to 1")
		return nil, verr
	}

	counts, err := s.repo.DescriptionCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count descriptions: %w", err)
	}

	out := []core.DescriptionCount{}
	for _, c := range counts {
		if c.Count >= min {
			out = append(out, c)
		}
	}
	return out, nil
}

// Statement lists the range oldest first with a running balance. The opening
// balance covers everything recorded before the range starts.
func (s *TransactionService) Statement(ctx context.Context, rng core.DateRange) (core.Statement, error) {
	var opening float64
	if rng.From != nil {
		before := rng.From.Add(-time.Nanosecond)
		totals, err := s.repo.Totals(ctx, core.DateRange{To: &before})
		if err != nil {
			return core.Statement{}, fmt.Errorf("opening balance: %w", err)
		}
		opening = totals.Balance()
	}

	txs, err := s.repo.ListRange(ctx, rng)
	if err != nil {
		return core.Statement{}, fmt.Errorf("list statement rows: %w", err)
	}
	return core.BuildStatement(opening, txs), nil
}

// Ping reports whether the store is reachable.
func (s *TransactionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *TransactionService) publish(ctx context.Context, event string, id int64) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", "event", event, "id", id)
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, event, id); err != nil {
		// The row is already committed; the reconcile job catches up later.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", event,
			"id", id,
			"error", err)
	}
}

// Close closes the underlying store.
func (s *TransactionService) Close() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Close(); err != nil {
		return fmt.Errorf("close transaction service: %w", err)
	}
	return nil
}
