package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"expense-tracker/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "sheet",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected file error, got %v", err)
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}
	if err := c.Upsert(context.Background(), core.Transaction{ID: 1}); err == nil {
		t.Fatal("expected error without service")
	}
	if err := c.ReplaceAll(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestTransactionRow(t *testing.T) {
	desc := "Groceries"
	tx := core.Transaction{
		ID:          12,
		Type:        core.Debit,
		Amount:      45.3,
		Description: &desc,
		CreatedAt:   time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
	}

	row := transactionRow(tx)
	want := []any{int64(12), "2025-02-03 04:05:06", "debit", 45.3, "Groceries"}
	if len(row) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, row[i], want[i])
		}
	}

	tx.Description = nil
	if got := transactionRow(tx)[4]; got != "" {
		t.Errorf("missing description should be empty, got %v", got)
	}
}

func TestBuildRowsStartsWithHeader(t *testing.T) {
	rows := buildRows([]core.Transaction{{ID: 1}, {ID: 2}})
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[2][0] != int64(2) {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{{"ID"}, {"1"}, {}, {" 17 "}, {float64(23)}}

	tests := []struct {
		id   int64
		want int
	}{
		{1, 2},
		{17, 4},
		{23, 5},
		{99, 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%d) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestA1Range(t *testing.T) {
	tests := []struct {
		sheet, cells, want string
	}{
		{"Transactions", "A:A", "'Transactions'!A:A"},
		{"2025 Money", "A1", "'2025 Money'!A1"},
		{"Bob's", "A:E", "'Bob''s'!A:E"},
	}
	for _, tt := range tests {
		if got := a1Range(tt.sheet, tt.cells); got != tt.want {
			t.Errorf("a1Range(%q, %q) = %q, want %q", tt.sheet, tt.cells, got, tt.want)
		}
	}
}
