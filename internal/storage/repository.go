// Package storage persists expenses in SQLite and implements the query
// ports, including installment distribution.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gastos/internal/core"
	"gastos/internal/query"

	_ "modernc.org/sqlite"
)

var (
	// ErrUnavailable marks failures talking to the database, as opposed to
	// empty results.
	ErrUnavailable = errors.New("expense store unavailable")
	ErrNotFound    = errors.New("expense not found")
)

// tsLayout is the storage format of expense timestamps. The wall clock is
// stored as-is; zone interpretation happens at the write boundaries, so the
// stored date is the one expenses are attributed by.
const tsLayout = "2006-01-02 15:04:05"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers. Used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

// distributedCTE fans every expense into one row per installment. Slice n of
// an N-installment expense lands one calendar month after slice n-1, except
// that the successor of a slice dated between the cycle-policy change and the
// first day of the first new cycle lands on that first day, keeping the time
// of day. That keeps successive slices in consecutive invoice months across
// the policy change. The first slice carries the division remainder so the
// slices sum to the original amount.
const distributedCTE = `
WITH RECURSIVE distributed AS (
    SELECT id,
           expense_ts AS slice_ts,
           description,
           amount_cents,
           method, tag, category, parsed,
           CASE WHEN installments > 1 THEN installments ELSE 1 END AS total,
           1 AS n,
           CASE WHEN installments > 1
                THEN amount_cents / installments + amount_cents % installments
                ELSE amount_cents
           END AS slice_cents
    FROM expenses
    UNION ALL
    SELECT id,
           CASE WHEN date(slice_ts) >= '2025-10-04'
                 AND date(slice_ts) < '2025-11-17'
                THEN datetime('2025-11-17 ' || time(slice_ts))
                ELSE datetime(slice_ts, '+1 month')
           END,
           description, amount_cents, method, tag, category, parsed,
           total,
           n + 1,
           amount_cents / total
    FROM distributed
    WHERE n < total
)`

// buildWhere renders the filter as a WHERE clause over distributed rows.
func buildWhere(f query.Filter) (string, []any) {
	conds := []string{"date(slice_ts) >= ?", "date(slice_ts) <= ?"}
	args := []any{f.Start.Format("2006-01-02"), f.End.Format("2006-01-02")}

	addIn := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		ph := strings.Repeat("?,", len(values))
		conds = append(conds, fmt.Sprintf("%s IN (%s)", col, ph[:len(ph)-1]))
		for _, v := range values {
			args = append(args, v)
		}
	}
	addIn("category", asStrings(f.Categories))
	addIn("tag", asStrings(f.Tags))
	addIn("method", asStrings(f.Methods))

	if f.Search != "" {
		conds = append(conds, "instr(lower(description), lower(?)) > 0")
		args = append(args, f.Search)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func asStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// Expenses implements query.Store. Rows are installment-distributed, newest
// first; multi-installment descriptions carry an "(n/N)" suffix.
func (r *SQLiteRepository) Expenses(ctx context.Context, f query.Filter) ([]core.Expense, error) {
	where, args := buildWhere(f)
	q := distributedCTE + `
SELECT id, slice_ts,
       CASE WHEN total > 1
            THEN printf('%s (%d/%d)', description, n, total)
            ELSE description
       END,
       slice_cents, method, tag, category, total, n, parsed
FROM distributed
` + where + `
ORDER BY slice_ts DESC, id DESC, n DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e        core.Expense
			ts       string
			total, n int
		)
		if err := rows.Scan(&e.ID, &ts, &e.Description, &e.Amount.Cents,
			&e.Method, &e.Tag, &e.Category, &total, &n, &e.Parsed); err != nil {
			return nil, unavailable("scan expense", err)
		}
		e.Timestamp, err = time.ParseInLocation(tsLayout, ts, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		if total > 1 {
			e.Installments = total
			e.InstallmentNumber = n
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate expenses", err)
	}
	return out, nil
}

// Totals implements query.Store.
func (r *SQLiteRepository) Totals(ctx context.Context, f query.Filter) (query.Totals, error) {
	where, args := buildWhere(f)
	q := distributedCTE + `
SELECT COALESCE(SUM(slice_cents), 0), COUNT(*)
FROM distributed
` + where

	var t query.Totals
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&t.Cents, &t.Count); err != nil {
		return query.Totals{}, unavailable("aggregate expenses", err)
	}
	return t, nil
}

// Breakdown implements query.Store. Grouping happens in SQL over the
// distributed rows, descending by total.
func (r *SQLiteRepository) Breakdown(ctx context.Context, f query.Filter, dim query.Dimension) ([]query.Bucket, error) {
	col := "category"
	if dim == query.ByTag {
		col = "tag"
	}
	where, args := buildWhere(f)
	q := distributedCTE + fmt.Sprintf(`
SELECT %s, SUM(slice_cents), COUNT(*)
FROM distributed
%s
GROUP BY %s
ORDER BY SUM(slice_cents) DESC`, col, where, col)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("breakdown expenses", err)
	}
	defer rows.Close()

	var out []query.Bucket
	for rows.Next() {
		var b query.Bucket
		if err := rows.Scan(&b.Value, &b.Cents, &b.Count); err != nil {
			return nil, unavailable("scan breakdown", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate breakdown", err)
	}
	return out, nil
}

// Bounds implements query.Store over the raw records, not the distributed
// rows.
func (r *SQLiteRepository) Bounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	var min, max sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(expense_ts), MAX(expense_ts) FROM expenses`).Scan(&min, &max)
	if err != nil {
		return time.Time{}, time.Time{}, false, unavailable("date bounds", err)
	}
	if !min.Valid || !max.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	lo, err := time.ParseInLocation(tsLayout, min.String, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse min timestamp: %w", err)
	}
	hi, err := time.ParseInLocation(tsLayout, max.String, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("parse max timestamp: %w", err)
	}
	return lo, hi, true, nil
}

// Dates implements query.Store: distinct calendar dates after installment
// distribution, ascending.
func (r *SQLiteRepository) Dates(ctx context.Context) ([]time.Time, error) {
	q := distributedCTE + `
SELECT DISTINCT date(slice_ts) FROM distributed ORDER BY 1`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, unavailable("list dates", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, unavailable("scan date", err)
		}
		d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", s, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate dates", err)
	}
	return out, nil
}

// Insert persists a validated expense and returns it with the assigned ID.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx, `
INSERT INTO expenses (expense_ts, amount_cents, description, method, tag, category, installments, parsed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.Format(tsLayout), e.Amount.Cents, e.Description,
		string(e.Method), string(e.Tag), string(e.Category), e.Installments, e.Parsed)
	if err != nil {
		return core.Expense{}, unavailable("insert expense", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, unavailable("read insert id", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "expense saved",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return e, nil
}

// Get returns one raw expense record by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, expense_ts, amount_cents, description, method, tag, category, installments, parsed
FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	return e, nil
}

// DeleteLast removes the most recently inserted expense and returns it.
// This is the undo operation; there is no targeted delete.
func (r *SQLiteRepository) DeleteLast(ctx context.Context) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, unavailable("begin delete", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
SELECT id, expense_ts, amount_cents, description, method, tag, category, installments, parsed
FROM expenses ORDER BY id DESC LIMIT 1`)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, unavailable("find last expense", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, e.ID); err != nil {
		return core.Expense{}, unavailable("delete expense", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, unavailable("commit delete", err)
	}

	slog.InfoContext(ctx, "expense deleted", "id", e.ID, "description", e.Description)
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e  core.Expense
		ts string
	)
	err := row.Scan(&e.ID, &ts, &e.Amount.Cents, &e.Description,
		&e.Method, &e.Tag, &e.Category, &e.Installments, &e.Parsed)
	if err != nil {
		return core.Expense{}, err
	}
	e.Timestamp, err = time.ParseInLocation(tsLayout, ts, time.UTC)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	return e, nil
}

// PendingSync returns raw records not yet mirrored, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, expense_ts, amount_cents, description, method, tag, category, installments, parsed
FROM expenses
WHERE synced = 0 AND sync_error = 0
ORDER BY id
LIMIT ?`, limit)
	if err != nil {
		return nil, unavailable("list pending sync", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, unavailable("scan pending sync", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate pending sync", err)
	}
	return out, nil
}

// MarkSynced records a successful mirror append.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return unavailable("mark synced", err)
	}
	return nil
}

// MarkSyncError parks a record so the catch-up pass stops retrying it.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return unavailable("mark sync error", err)
	}
	slog.WarnContext(ctx, "expense parked with sync error", "id", id)
	return nil
}
