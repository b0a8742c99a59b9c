package sqlstore

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// dialect holds what differs between the supported databases. Queries
// themselves are portable: both drivers take "?" placeholders and both
// understand SAVEPOINT, SUBSTR and LIKE ... ESCAPE.
type dialect struct {
	name   string
	driver string
	schema []string

	isUniqueViolation     func(error) bool
	isForeignKeyViolation func(error) bool
}

var dialects = map[string]*dialect{
	DriverSQLite: sqliteDialect,
	DriverMySQL:  mysqlDialect,
}

// =============================================================================
// SQLITE
// =============================================================================

var sqliteDialect = &dialect{
	name:   DriverSQLite,
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sim_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			purchase_product TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sim_cards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			serial_number TEXT NOT NULL UNIQUE,
			imsi TEXT UNIQUE,
			status TEXT NOT NULL DEFAULT 'IN_STOCK',
			sim_type_id INTEGER REFERENCES sim_types(id)
		)`,
		`CREATE TABLE IF NOT EXISTS sim_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sim_card_id INTEGER NOT NULL REFERENCES sim_cards(id),
			customer_id INTEGER REFERENCES customers(id),
			type TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		// Status derivation and card history (hot path)
		`CREATE INDEX IF NOT EXISTS idx_sim_transactions_card_order
			ON sim_transactions(sim_card_id, created_at, id)`,
		// Customer report and holdings
		`CREATE INDEX IF NOT EXISTS idx_sim_transactions_customer_type
			ON sim_transactions(customer_id, type)`,
		// Global listing and dashboard windows
		`CREATE INDEX IF NOT EXISTS idx_sim_transactions_order
			ON sim_transactions(created_at, id)`,
		`CREATE INDEX IF NOT EXISTS idx_sim_cards_status
			ON sim_cards(status)`,
		`CREATE INDEX IF NOT EXISTS idx_customers_name
			ON customers(name)`,
	},
	isUniqueViolation: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
	isForeignKeyViolation: func(err error) bool {
		var se sqlite3.Error
		return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	},
}

// sqliteDSN adds the connection options every SQLite handle needs. Foreign
// keys are per-connection in SQLite, so they must be in the DSN rather than
// a one-off PRAGMA.
func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// =============================================================================
// MYSQL
// =============================================================================

const (
	mysqlDuplicateEntry      = 1062
	mysqlRowIsReferenced     = 1451
	mysqlNoReferencedRow     = 1452
	mysqlRowIsReferencedLong = 1217
)

var mysqlDialect = &dialect{
	name:   DriverMySQL,
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sim_types (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			purchase_product VARCHAR(255) NOT NULL DEFAULT '',
			UNIQUE KEY uq_sim_types_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS customers (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NULL,
			KEY idx_customers_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS sim_cards (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			serial_number VARCHAR(255) NOT NULL,
			imsi VARCHAR(64) NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'IN_STOCK',
			sim_type_id BIGINT NULL,
			UNIQUE KEY uq_sim_cards_serial (serial_number),
			UNIQUE KEY uq_sim_cards_imsi (imsi),
			KEY idx_sim_cards_status (status),
			CONSTRAINT fk_sim_cards_type FOREIGN KEY (sim_type_id) REFERENCES sim_types(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS sim_transactions (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			sim_card_id BIGINT NOT NULL,
			customer_id BIGINT NULL,
			type VARCHAR(16) NOT NULL,
			created_at CHAR(29) NOT NULL,
			KEY idx_sim_transactions_card_order (sim_card_id, created_at, id),
			KEY idx_sim_transactions_customer_type (customer_id, type),
			KEY idx_sim_transactions_order (created_at, id),
			CONSTRAINT fk_sim_transactions_card FOREIGN KEY (sim_card_id) REFERENCES sim_cards(id),
			CONSTRAINT fk_sim_transactions_customer FOREIGN KEY (customer_id) REFERENCES customers(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	isUniqueViolation: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
	isForeignKeyViolation: func(err error) bool {
		var me *mysql.MySQLError
		if !errors.As(err, &me) {
			return false
		}
		switch me.Number {
		case mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlRowIsReferencedLong:
			return true
		}
		return false
	},
}
