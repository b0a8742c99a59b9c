/*
derive.go - Status derivation from a card's ledger history

ORDERING:
  Events are ordered by (CreatedAt, ID). ID breaks ties so that rows
  written in the same instant (bulk import, backdated receivedDate values
  that collide) still have exactly one "latest" event.

RULES:
  latest.Type == STOCK_IN  -> IN_STOCK
  latest.Type == STOCK_OUT -> OUT_STOCK
  no events                -> IN_STOCK

  These functions are pure. Persisting the result is Rederive's job and
  nothing else writes sim_cards.status.
*/
package inventory

import (
	"context"
	"fmt"
)

// Before reports whether a sorts strictly before b in ledger order.
func Before(a, b Transaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Latest returns the most recent transaction, or false when txs is empty.
func Latest(txs []Transaction) (Transaction, bool) {
	if len(txs) == 0 {
		return Transaction{}, false
	}
	latest := txs[0]
	for _, tx := range txs[1:] {
		if Before(latest, tx) {
			latest = tx
		}
	}
	return latest, true
}

// LatestOfType returns the most recent transaction of the given type.
func LatestOfType(txs []Transaction, t TxType) (Transaction, bool) {
	var (
		latest Transaction
		found  bool
	)
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		if !found || Before(latest, tx) {
			latest, found = tx, true
		}
	}
	return latest, found
}

// StatusFor maps a transaction type to the card status it implies.
func StatusFor(t TxType) Status {
	if t == TxStockOut {
		return StatusOutStock
	}
	return StatusInStock
}

// DeriveStatus computes a card's status from its full history.
func DeriveStatus(txs []Transaction) Status {
	latest, ok := Latest(txs)
	if !ok {
		return StatusInStock
	}
	return StatusFor(latest.Type)
}

// LatestStockOutCustomer returns the customer name on the most recent
// STOCK_OUT that has a customer. Only meaningful for OUT_STOCK cards.
func LatestStockOutCustomer(records []TransactionRecord) *string {
	var (
		latest TransactionRecord
		found  bool
	)
	for _, r := range records {
		if r.Type != TxStockOut || r.CustomerID == nil || r.CustomerName == nil {
			continue
		}
		if !found || Before(latest.Transaction, r.Transaction) {
			latest, found = r, true
		}
	}
	if !found {
		return nil
	}
	return strPtr(*latest.CustomerName)
}

// Rederive recomputes a card's status from its ledger and persists it. It
// must run on the same Store (transaction) that performed the mutation.
func Rederive(ctx context.Context, st Store, cardID int64) (Status, error) {
	history, err := st.TransactionsByCard(ctx, cardID)
	if err != nil {
		return "", fmt.Errorf("load history for card %d: %w", cardID, err)
	}
	status := DeriveStatus(history)
	if err := st.SetCardStatus(ctx, cardID, status); err != nil {
		return "", fmt.Errorf("set status for card %d: %w", cardID, err)
	}
	return status, nil
}
