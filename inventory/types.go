/*
Package inventory implements the SIM card inventory ledger.

PURPOSE:
  Tracks which SIM cards exist, whether each one sits in stock or has been
  issued to a customer, and the full history of stock movements. The
  ledger of SimTransactions is the source of truth; SimCard.Status is a
  cached projection of it.

CORE INVARIANT:
  For every card, after every committed mutation:

    card.Status == StatusFor(type of the transaction with max (CreatedAt, ID))

  or IN_STOCK when the card has no transactions. Only Rederive writes the
  status column, and every mutating path calls it inside the same store
  transaction that touched the ledger.

COMPONENTS:
  derive.go:    Pure status derivation over a card's history
  ledger.go:    Create/update/delete/list transactions, customer report
  reassign.go:  ChangeCustomer on the latest STOCK_OUT
  cards.go:     Card CRUD, card views, pagination, summary
  catalog.go:   Customers and SimTypes (incl. find-or-create for import)
  dashboard.go: Trailing-window movement overview
  store.go:     Persistence ports (Store, Tx, TxStore)

SEE ALSO:
  - inventory/importer: Bulk spreadsheet reconciliation
  - store/sqlstore: database/sql implementation of the ports
  - access: Permission table consulted before every operation
*/
package inventory

import (
	"strings"
	"time"
)

// =============================================================================
// ENUMS
// =============================================================================

// Status is the derived stock state of a SIM card.
type Status string

const (
	StatusInStock  Status = "IN_STOCK"
	StatusOutStock Status = "OUT_STOCK"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusInStock || s == StatusOutStock
}

// ParseStatus accepts a status case-insensitively, ignoring surrounding space.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", invalidf("invalid sim status %q", raw)
	}
	return s, nil
}

// TxType is the kind of stock movement recorded in the ledger.
type TxType string

const (
	TxStockIn  TxType = "STOCK_IN"
	TxStockOut TxType = "STOCK_OUT"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	return t == TxStockIn || t == TxStockOut
}

// ParseTxType accepts a transaction type case-insensitively.
func ParseTxType(raw string) (TxType, error) {
	t := TxType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", invalidf("invalid transaction type %q", raw)
	}
	return t, nil
}

// =============================================================================
// AGGREGATES
// =============================================================================

// SimCard is a physical card. Status is derived; see Rederive.
type SimCard struct {
	ID           int64
	SerialNumber string
	IMSI         *string
	Status       Status
	SimTypeID    *int64
}

// SimType is catalog data describing a card's carrier product.
type SimType struct {
	ID              int64
	Name            string
	PurchaseProduct string
}

// Customer receives cards through STOCK_OUT transactions.
type Customer struct {
	ID    int64
	Name  string
	Email *string
}

// Transaction is one ledger event.
type Transaction struct {
	ID         int64
	SimCardID  int64
	CustomerID *int64
	Type       TxType
	CreatedAt  time.Time
}

// TransactionRecord is a Transaction joined with its card and customer.
type TransactionRecord struct {
	Transaction
	SerialNumber string
	CardStatus   Status
	CustomerName *string
}

// CardView is a card with its type, the read-only customer name, and
// (for single-card reads) its transaction history.
type CardView struct {
	SimCard
	SimType      *SimType
	CustomerName *string
	Transactions []TransactionRecord
}

// =============================================================================
// REPORTS
// =============================================================================

// CustomerReport counts the movements attributed to one customer.
type CustomerReport struct {
	CustomerID int64
	StockIn    int
	StockOut   int
}

// TypeCount is a card count grouped by SimType name ("unknown" when untyped).
type TypeCount struct {
	Name  string
	Count int
}

// CustomerCount is the number of cards currently held by a customer.
type CustomerCount struct {
	ID    int64
	Name  string
	Count int
}

// DailyCount is a raw (day, type) movement count from the store.
type DailyCount struct {
	Day   string // YYYY-MM-DD, UTC
	Type  TxType
	Count int
}

func strPtr(s string) *string { return &s }
