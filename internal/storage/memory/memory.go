package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"expense-tracker/internal/core"
	"expense-tracker/internal/storage"
)

// Store keeps transactions in process memory. Used for tests and for
// DATA_BACKEND=memory; nothing survives a restart.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Transaction
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) Create(_ context.Context, in core.TransactionInput) (core.Transaction, error) {
	if in.CreatedAt == nil {
		return core.Transaction{}, errors.New("create transaction: created_at is required")
	}
	in = in.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := core.Transaction{
		ID:          s.nextID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: cloneString(in.Description),
		CreatedAt:   *in.CreatedAt,
	}
	s.nextID++
	s.items = append(s.items, tx)
	return copyTx(tx), nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return copyTx(s.items[i]), nil
}

// List returns newest first, ties broken by the higher id.
func (s *Store) List(_ context.Context, page core.Page) ([]core.Transaction, error) {
	s.mu.Lock()
	sorted := s.snapshot()
	s.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})

	out := []core.Transaction{}
	if page.Skip >= len(sorted) {
		return out, nil
	}
	end := len(sorted)
	if page.Limit >= 0 && page.Skip+page.Limit < end {
		end = page.Skip + page.Limit
	}
	return append(out, sorted[page.Skip:end]...), nil
}

func (s *Store) ListRange(_ context.Context, r core.DateRange) ([]core.Transaction, error) {
	s.mu.Lock()
	all := s.snapshot()
	s.mu.Unlock()

	out := []core.Transaction{}
	for _, tx := range all {
		if r.Contains(tx.CreatedAt) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) Update(_ context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	tx := &s.items[i]
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Description = cloneString(in.Description)
	if in.CreatedAt != nil {
		tx.CreatedAt = *in.CreatedAt
	}
	return copyTx(*tx), nil
}

func (s *Store) Totals(_ context.Context, r core.DateRange) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var totals core.Totals
	for _, tx := range s.items {
		if r.Contains(tx.CreatedAt) {
			totals.Add(tx)
		}
	}
	return totals, nil
}

func (s *Store) UniqueDescriptions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, tx := range s.items {
		if tx.Description == nil {
			continue
		}
		if _, ok := seen[*tx.Description]; ok {
			continue
		}
		seen[*tx.Description] = struct{}{}
		out = append(out, *tx.Description)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) DescriptionCounts(_ context.Context) ([]core.DescriptionCount, error) {
	s.mu.Lock()
	counts := map[string]int{}
	for _, tx := range s.items {
		if tx.Description != nil {
			counts[*tx.Description]++
		}
	}
	s.mu.Unlock()

	out := make([]core.DescriptionCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, core.DescriptionCount{Description: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Description < out[j].Description
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// snapshot copies the items; callers must hold mu.
func (s *Store) snapshot() []core.Transaction {
	out := make([]core.Transaction, len(s.items))
	for i, tx := range s.items {
		out[i] = copyTx(tx)
	}
	return out
}

func copyTx(tx core.Transaction) core.Transaction {
	tx.Description = cloneString(tx.Description)
	return tx
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
