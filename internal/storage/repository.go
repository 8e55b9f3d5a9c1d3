package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"expense-tracker/internal/core"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and database/sql driver.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

const transactionColumns = "id, type, amount, description, created_at"

type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Repository = (*SQLRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database file and migrates it.
func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, sqliteDSN(dbPath))
}

// NewPostgresRepository connects to databaseURL and migrates it.
func NewPostgresRepository(databaseURL string) (*SQLRepository, error) {
	return open(Postgres, databaseURL)
}

func sqliteDSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
}

func open(dialect Dialect, dsn string) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: dialect}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts a row. CreatedAt must already be filled by the caller.
func (r *SQLRepository) Create(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if in.CreatedAt == nil {
		return core.Transaction{}, errors.New("create transaction: created_at is required")
	}
	in = in.Normalize()

	query := r.rebind(`INSERT INTO transactions (type, amount, description, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING ` + transactionColumns)

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		string(in.Type), in.Amount, nullableString(in.Description), *in.CreatedAt))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount)

	return tx, nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (core.Transaction, error) {
	query := r.rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`)
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *SQLRepository) List(ctx context.Context, page core.Page) ([]core.Transaction, error) {
	query := r.rebind(`SELECT ` + transactionColumns + ` FROM transactions
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`)

	rows, err := r.db.QueryContext(ctx, query, page.Limit, page.Skip)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *SQLRepository) ListRange(ctx context.Context, rng core.DateRange) ([]core.Transaction, error) {
	where, args := rangeFilter(rng)
	query := r.rebind(`SELECT ` + transactionColumns + ` FROM transactions` + where + `
		ORDER BY created_at ASC, id ASC`)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions in range: %w", err)
	}
	return collectTransactions(rows)
}

func (r *SQLRepository) Update(ctx context.Context, id int64, in core.TransactionInput) (core.Transaction, error) {
	in = in.Normalize()

	var createdAt any
	if in.CreatedAt != nil {
		createdAt = *in.CreatedAt
	}

	query := r.rebind(`UPDATE transactions
		SET type = ?, amount = ?, description = ?, created_at = COALESCE(?, created_at)
		WHERE id = ?
		RETURNING ` + transactionColumns)

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query,
		string(in.Type), in.Amount, nullableString(in.Description), createdAt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	slog.DebugContext(ctx, "Transaction updated", "id", tx.ID)
	return tx, nil
}

func (r *SQLRepository) Totals(ctx context.Context, rng core.DateRange) (core.Totals, error) {
	where, args := rangeFilter(rng)
	query := r.rebind(`SELECT
			COALESCE(SUM(CASE WHEN type = 'credit' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'debit' THEN amount ELSE 0 END), 0)
		FROM transactions` + where)

	var totals core.Totals
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&totals.Credit, &totals.Debit); err != nil {
		return core.Totals{}, fmt.Errorf("sum transactions: %w", err)
	}
	return totals, nil
}

func (r *SQLRepository) UniqueDescriptions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT description FROM transactions
		WHERE description IS NOT NULL
		ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("list descriptions: %w", err)
	}
	defer rows.Close()

	descriptions := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan description: %w", err)
		}
		descriptions = append(descriptions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate descriptions: %w", err)
	}
	return descriptions, nil
}

func (r *SQLRepository) DescriptionCounts(ctx context.Context) ([]core.DescriptionCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT description, COUNT(*) AS n FROM transactions
		WHERE description IS NOT NULL
		GROUP BY description
		ORDER BY n DESC, description ASC`)
	if err != nil {
		return nil, fmt.Errorf("count descriptions: %w", err)
	}
	defer rows.Close()

	counts := []core.DescriptionCount{}
	for rows.Next() {
		var c core.DescriptionCount
		if err := rows.Scan(&c.Description, &c.Count); err != nil {
			return nil, fmt.Errorf("scan description count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate description counts: %w", err)
	}
	return counts, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func rangeFilter(rng core.DateRange) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if rng.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, rng.From.UTC())
	}
	if rng.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, rng.To.UTC())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		typ       sql.NullString
		desc      sql.NullString
		createdAt nullTime
	)
	if err := s.Scan(&tx.ID, &typ, &tx.Amount, &desc, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ.String)
	if desc.Valid {
		d := desc.String
		tx.Description = &d
	}
	if createdAt.Valid {
		tx.CreatedAt = createdAt.Time.UTC()
	}
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// nullTime scans timestamps whatever representation the driver hands back:
// SQLite returns text for expression columns, older rows may lack a zone.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (n *nullTime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case int64:
		n.Time, n.Valid = time.Unix(v, 0).UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", value)
	}
}

func (n *nullTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}
