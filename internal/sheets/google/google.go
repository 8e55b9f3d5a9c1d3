package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"expense-tracker/internal/core"
	ports "expense-tracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the first row of the mirror sheet.
var Header = []any{"ID", "Date", "Type", "Amount", "Description"}

const dateLayout = "2006-01-02 15:04:05"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.TransactionMirror = (*Client)(nil)

// Options configures the Sheets client. One of CredentialsJSON or
// CredentialsFile must be set; GOOGLE_APPLICATION_CREDENTIALS is the fallback.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}

	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, inlineJSON, file string) (*gsheet.Service, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling returns an HTTP client with pooled keep-alive connections and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Upsert finds the row whose column A holds tx.ID and overwrites it, or appends a new row.
func (c *Client) Upsert(ctx context.Context, tx core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := a1Range(c.sheetName, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read ids from %s: %w", c.sheetName, err)
	}

	if len(resp.Values) == 0 {
		if err := c.writeRows(ctx, "A1", [][]any{Header}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := findRow(resp.Values, tx.ID)
	if row > 0 {
		if err := c.writeRows(ctx, fmt.Sprintf("A%d:E%d", row, row), [][]any{transactionRow(tx)}); err != nil {
			return fmt.Errorf("update row %d: %w", row, err)
		}
		slog.DebugContext(ctx, "Updated transaction row", "id", tx.ID, "row", row)
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(tx)}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1Range(c.sheetName, "A:E"), vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	slog.DebugContext(ctx, "Appended transaction row", "id", tx.ID)
	return nil
}

// ReplaceAll clears the sheet and writes the header followed by txs.
func (c *Client) ReplaceAll(ctx context.Context, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1Range(c.sheetName, "A:E"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", c.sheetName, err)
	}

	if err := c.writeRows(ctx, "A1", buildRows(txs)); err != nil {
		return fmt.Errorf("rewrite %s: %w", c.sheetName, err)
	}
	return nil
}

func (c *Client) writeRows(ctx context.Context, cells string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1Range(c.sheetName, cells), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func buildRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, Header)
	for _, tx := range txs {
		rows = append(rows, transactionRow(tx))
	}
	return rows
}

func transactionRow(tx core.Transaction) []any {
	return []any{tx.ID, tx.CreatedAt.UTC().Format(dateLayout), string(tx.Type), tx.Amount, tx.DescriptionValue()}
}

// findRow returns the 1-based sheet row whose first cell equals id, or 0.
func findRow(values [][]any, id int64) int {
	want := fmt.Sprint(id)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

// a1Range quotes the sheet name so names with spaces or punctuation resolve.
func a1Range(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
