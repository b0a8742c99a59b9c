package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/sim-inventory/inventory"
)

// timeLayout is fixed-width so lexical order is chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

// inListChunk bounds the number of bound parameters in one IN (...) list.
const inListChunk = 500

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo holds every query. It takes no locks: Store uses it over the pool,
// txStore over one open transaction.
type repo struct {
	q queryer
	d *dialect
}

var _ inventory.Store = (*repo)(nil)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// writeErr classifies a failed write. Constraint violations become
// inventory conflicts; anything else is wrapped as an infrastructure error.
func (r *repo) writeErr(entity, action string, err error) error {
	switch {
	case r.d.isUniqueViolation(err):
		return inventory.ConflictError(entity, "%s already exists", entity)
	case r.d.isForeignKeyViolation(err):
		return inventory.ConflictError(entity, "%s is referenced by other records", entity)
	}
	return fmt.Errorf("failed to %s %s: %w", action, entity, err)
}

func (r *repo) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// likeEscaper escapes LIKE wildcards with '!' so the same ESCAPE clause
// works in both dialects (MySQL treats a backslash literal specially).
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
