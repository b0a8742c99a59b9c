/*
Package sqlstore provides the database/sql implementation of the inventory
persistence ports.

PURPOSE:
  Implements inventory.Store, inventory.Tx and inventory.TxStore on top of
  SQLite (default, mattn/go-sqlite3) or MySQL (go-sql-driver/mysql). Only
  the schema and the constraint-error classification differ between the
  two; every query is shared.

KEY TABLES:
  sim_types:        Catalog of carrier products (name unique)
  customers:        Recipients of STOCK_OUT movements
  sim_cards:        Physical cards; status is a projection of the ledger
  sim_transactions: Stock movement ledger

INDEXES:
  - idx_sim_transactions_card_order: Status derivation and card history (hot path)
  - idx_sim_transactions_customer_type: Customer report and holdings
  - idx_sim_transactions_order: Global listing, dashboard windows

TIMESTAMPS:
  created_at is stored as fixed-width UTC text (see timeLayout) so that
  string comparison and ORDER BY match chronological order in both
  dialects, and SUBSTR(created_at, 1, 10) is the UTC day.

CONCURRENCY:
  Writers are serialized by a mutex around WithTx. SQLite runs in WAL mode
  so reads outside a transaction are not blocked; MySQL relies on InnoDB.

USAGE:
  store, err := sqlstore.NewSQLite("./simcard.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := inventory.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/store.go: Port definitions
  - dialect.go: Per-database schema and error classification
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/warp/sim-inventory/inventory"
)

// Store implements inventory.TxStore.
type Store struct {
	*repo
	db *sql.DB
	mu sync.Mutex
}

var _ inventory.TxStore = (*Store)(nil)

// New opens a store for the given driver (DriverSQLite or DriverMySQL) and
// migrates the schema. The DSN is passed to the driver unchanged.
func New(driver, dsn string) (*Store, error) {
	return open(driver, dsn, 0)
}

// NewSQLite opens a SQLite database file. Use ":memory:" for an in-memory
// database.
func NewSQLite(path string) (*Store, error) {
	maxConns := 0
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		maxConns = 1
	}
	return open(DriverSQLite, sqliteDSN(path), maxConns)
}

// NewMySQL opens a MySQL database, e.g. "user:pass@tcp(localhost:3306)/simcard".
func NewMySQL(dsn string) (*Store, error) {
	return open(DriverMySQL, dsn, 0)
}

func open(driver, dsn string, maxConns int) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	store := &Store{repo: &repo{q: db, d: d}, db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the driver name the store was opened with.
func (s *Store) Dialect() string {
	return s.d.name
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema. Statements run one at a time since
// neither driver accepts multi-statement Exec by default.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{repo: &repo{q: sqlTx, d: s.d}, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	*repo
	tx *sql.Tx
}

var savepointChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Savepoint runs fn inside a named savepoint of the open transaction.
func (ts *txStore) Savepoint(ctx context.Context, name string, fn func(inventory.Tx) error) error {
	name = "sp_" + savepointChars.ReplaceAllString(strings.TrimSpace(name), "_")

	if _, err := ts.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint %s: %w", name, err)
	}

	if err := fn(ts); err != nil {
		if _, rbErr := ts.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back savepoint %s: %w", name, rbErr))
		}
		// ROLLBACK TO leaves the savepoint on the stack in both dialects.
		if _, relErr := ts.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return errors.Join(err, fmt.Errorf("failed to release savepoint %s: %w", name, relErr))
		}
		return err
	}

	if _, err := ts.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint %s: %w", name, err)
	}
	return nil
}
