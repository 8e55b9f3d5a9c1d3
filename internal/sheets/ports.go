package sheets

import (
	"context"

	"expense-tracker/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionMirror keeps an external copy of the transactions table.
	TransactionMirror interface {
		// Upsert writes tx to the row carrying its id, appending when absent.
		Upsert(ctx context.Context, tx core.Transaction) error
		// ReplaceAll rewrites the whole mirror with txs, in order.
		ReplaceAll(ctx context.Context, txs []core.Transaction) error
	}
)
