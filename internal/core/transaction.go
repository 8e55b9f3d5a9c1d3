package core

import (
	"errors"
	"math"
	"time"
)

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

type (
	// TransactionType says whether a transaction raises or lowers the balance.
	TransactionType string

	// Transaction is a persisted credit or debit.
	Transaction struct {
		ID          int64           `json:"id"`
		Type        TransactionType `json:"type"`
		Amount      float64         `json:"amount"`
		Description *string         `json:"description"`
		CreatedAt   time.Time       `json:"created_at"`
	}

	// TransactionInput is the replaceable part of a transaction, used for both
	// create and update. A nil CreatedAt means "now" on create and "keep" on update.
	TransactionInput struct {
		Type        TransactionType
		Amount      float64
		Description *string
		CreatedAt   *time.Time
	}

	// Page selects a window of the most-recent-first listing.
	Page struct {
		Skip  int
		Limit int
	}

	// Totals holds the per-type sums over all transactions.
	Totals struct {
		Credit float64 `json:"credit"`
		Debit  float64 `json:"debit"`
	}

	// DescriptionCount is a description and how many transactions carry it.
	DescriptionCount struct {
		Description string `json:"description"`
		Count       int    `json:"count"`
	}
)

const (
	DefaultLimit = 100
)

// ErrNotFound is returned when a transaction id does not exist.
var ErrNotFound = errors.New("transaction not found")

// DefaultPage returns skip=0, limit=100.
func DefaultPage() Page {
	return Page{Skip: 0, Limit: DefaultLimit}
}

// IsValid reports whether t is credit or debit.
func (t TransactionType) IsValid() bool {
	switch t {
	case Credit, Debit:
		return true
	default:
		return false
	}
}

func (t TransactionType) String() string {
	return string(t)
}

// Balance is credits minus debits.
func (t Totals) Balance() float64 {
	return t.Credit - t.Debit
}

// Add folds a single transaction into the totals.
func (t *Totals) Add(tx Transaction) {
	switch tx.Type {
	case Credit:
		t.Credit += tx.Amount
	case Debit:
		t.Debit += tx.Amount
	}
}

// Validate checks the invariants the store relies on.
func (in TransactionInput) Validate() error {
	verr := &ValidationError{}
	if !in.Type.IsValid() {
		verr.Add(SourceBody, "type", KindEnum, "value is not a valid enumeration member; permitted: 'credit', 'debit'")
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		verr.Add(SourceBody, "amount", KindFloat, "value is not a valid float")
	}
	return verr.OrNil()
}

// Normalize moves the timestamp to UTC so stored values sort lexically.
func (in TransactionInput) Normalize() TransactionInput {
	if in.CreatedAt != nil {
		ts := in.CreatedAt.UTC()
		in.CreatedAt = &ts
	}
	return in
}

// Validate checks the page window.
func (p Page) Validate() error {
	verr := &ValidationError{}
	if p.Skip < 0 {
		verr.Add(SourceQuery, "skip", KindGreaterEqual, "ensure this value is greater than or equal to 0")
	}
	if p.Limit < 1 {
		verr.Add(SourceQuery, "limit", KindGreaterEqual, "ensure this value is greater than or equal to 1")
	}
	return verr.OrNil()
}

// DescriptionValue returns the description or "" when absent.
func (t Transaction) DescriptionValue() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}
