package core

import (
	"time"
)

// DateRange bounds a query by created_at, both ends inclusive. Nil means open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// MonthRange returns the range covering the whole calendar month, in UTC.
func MonthRange(year int, month time.Month) DateRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return DateRange{From: &from, To: &to}
}

// DaysRange returns the range from the start of the first day to the end of the last.
func DaysRange(first, last time.Time) DateRange {
	from := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return DateRange{From: &from, To: &end}
}

// StatementLine is one transaction with the balance after applying it.
type StatementLine struct {
	Transaction
	Balance float64 `json:"balance"`
}

// Statement lists transactions oldest first with a running balance.
type Statement struct {
	OpeningBalance float64         `json:"opening_balance"`
	Lines          []StatementLine `json:"lines"`
	Totals         Totals          `json:"totals"`
	ClosingBalance float64         `json:"closing_balance"`
}

// BuildStatement folds ascending transactions into a statement.
func BuildStatement(opening float64, txs []Transaction) Statement {
	st := Statement{
		OpeningBalance: opening,
		Lines:          make([]StatementLine, 0, len(txs)),
	}
	running := opening
	for _, tx := range txs {
		switch tx.Type {
		case Credit:
			running += tx.Amount
		case Debit:
			running -= tx.Amount
		}
		st.Totals.Add(tx)
		st.Lines = append(st.Lines, StatementLine{Transaction: tx, Balance: running})
	}
	st.ClosingBalance = running
	return st
}
