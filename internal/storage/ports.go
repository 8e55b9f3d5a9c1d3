package storage

import (
	"context"

	"expense-tracker/internal/core"
)

// Repository owns every read and write of persisted transactions.
// Each method is a single store round-trip.
type Repository interface {
	Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context, page core.Page) ([]core.Transaction, error)
	// ListRange returns transactions oldest first.
	ListRange(ctx context.Context, r core.DateRange) ([]core.Transaction, error)
	// Update replaces type, amount and description. CreatedAt is replaced only when set.
	Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error)
	Totals(ctx context.Context, r core.DateRange) (core.Totals, error)
	UniqueDescriptions(ctx context.Context) ([]string, error)
	DescriptionCounts(ctx context.Context) ([]core.DescriptionCount, error)
	Ping(ctx context.Context) error
	Close() error
}
