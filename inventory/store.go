/*
store.go - Persistence ports for the inventory core

PURPOSE:
  Repository-style query functions returning plain values. Relations are
  resolved by explicit joined queries (CardView, TransactionRecord), never
  by lazy dereferencing of a loaded row.

KEY INTERFACES:
  Store:   Reads and single-statement writes
  Tx:      Store bound to one open transaction, plus savepoints
  TxStore: Store that can open a transaction

ATOMICITY:
  Every mutation in this package runs inside TxStore.WithTx. The function
  receives a Tx; if it returns an error the whole unit is rolled back.
  Savepoint lets the importer roll back one row without losing the rest.

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the row does not exist. Callers
  translate that into NotFound with the entity name they care about.

IMPLEMENTATIONS:
  - store/sqlstore: SQLite and MySQL via database/sql
*/
package inventory

import (
	"context"
	"time"
)

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	SerialNumber string // substring match
	Type         TxType
	CardStatus   Status
	Page         int
	Limit        int
}

// Store is the read/write surface used by the services.
type Store interface {
	// Cards
	GetCard(ctx context.Context, id int64) (*SimCard, error)
	GetCardBySerial(ctx context.Context, serial string) (*SimCard, error)
	GetCardByIMSI(ctx context.Context, imsi string) (*SimCard, error)
	GetCardView(ctx context.Context, id int64) (*CardView, error)
	ListCardViews(ctx context.Context, offset, limit int) ([]CardView, error) // limit <= 0: all
	InsertCard(ctx context.Context, card SimCard) (int64, error)
	UpdateCard(ctx context.Context, card SimCard) error // serial, imsi, type; never status
	SetCardStatus(ctx context.Context, id int64, status Status) error
	DeleteCard(ctx context.Context, id int64) error
	CountCards(ctx context.Context, status Status) (int, error) // "" counts all
	CountCardsByType(ctx context.Context) ([]TypeCount, error)

	// Ledger
	GetTransaction(ctx context.Context, id int64) (*TransactionRecord, error)
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	DeleteTransactionsByCard(ctx context.Context, cardID int64) (int, error)
	TransactionsByCard(ctx context.Context, cardID int64) ([]Transaction, error)
	HistoryByCard(ctx context.Context, cardID int64) ([]TransactionRecord, error)
	StockOutsByCards(ctx context.Context, cardIDs []int64) ([]TransactionRecord, error)
	SearchTransactions(ctx context.Context, f TransactionFilter, offset, limit int) ([]TransactionRecord, int, error)
	CountTransactionsByCustomer(ctx context.Context, customerID int64, t TxType) (int, error)
	DailyCounts(ctx context.Context, from time.Time) ([]DailyCount, error)
	HoldingsByCustomer(ctx context.Context) ([]CustomerCount, error)

	// Catalog
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetCustomerByName(ctx context.Context, name string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	InsertCustomer(ctx context.Context, c Customer) (int64, error)
	UpdateCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
	CountCustomerTransactions(ctx context.Context, customerID int64) (int, error)

	GetSimType(ctx context.Context, id int64) (*SimType, error)
	GetSimTypeByName(ctx context.Context, name string) (*SimType, error)
	ListSimTypes(ctx context.Context) ([]SimType, error)
	InsertSimType(ctx context.Context, t SimType) (int64, error)
	UpdateSimType(ctx context.Context, t SimType) error
	DeleteSimType(ctx context.Context, id int64) error
	CountCardsOfType(ctx context.Context, typeID int64) (int, error)
}

// Tx is a Store bound to one open transaction.
type Tx interface {
	Store

	// Savepoint runs fn inside a nested savepoint. On error only fn's
	// writes are rolled back and the error is returned.
	Savepoint(ctx context.Context, name string, fn func(Tx) error) error
}

// TxStore opens transactions.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Tx) error) error
}
