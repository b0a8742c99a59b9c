package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/sim-inventory/inventory"
)

// =============================================================================
// LEDGER (sim_transactions)
// =============================================================================

const recordSelect = `
	SELECT t.id, t.sim_card_id, t.customer_id, t.type, t.created_at,
	       c.serial_number, c.status, cu.name
	FROM sim_transactions t
	JOIN sim_cards c ON c.id = t.sim_card_id
	LEFT JOIN customers cu ON cu.id = t.customer_id
`

const ledgerOrder = " ORDER BY t.created_at ASC, t.id ASC"

func (r *repo) GetTransaction(ctx context.Context, id int64) (*inventory.TransactionRecord, error) {
	records, err := r.queryRecords(ctx, recordSelect+" WHERE t.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (r *repo) InsertTransaction(ctx context.Context, tx inventory.Transaction) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO sim_transactions (sim_card_id, customer_id, type, created_at) VALUES (?, ?, ?, ?)",
		tx.SimCardID, tx.CustomerID, string(tx.Type), formatTime(tx.CreatedAt),
	)
	if err != nil {
		return 0, r.writeErr("transaction", "insert", err)
	}
	return res.LastInsertId()
}

// UpdateTransaction rewrites card, customer and type. CreatedAt is kept.
func (r *repo) UpdateTransaction(ctx context.Context, tx inventory.Transaction) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE sim_transactions SET sim_card_id = ?, customer_id = ?, type = ? WHERE id = ?",
		tx.SimCardID, tx.CustomerID, string(tx.Type), tx.ID,
	)
	if err != nil {
		return r.writeErr("transaction", "update", err)
	}
	return nil
}

func (r *repo) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM sim_transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (r *repo) DeleteTransactionsByCard(ctx context.Context, cardID int64) (int, error) {
	res, err := r.q.ExecContext(ctx, "DELETE FROM sim_transactions WHERE sim_card_id = ?", cardID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions for card %d: %w", cardID, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// TransactionsByCard returns a card's ledger in (created_at, id) order.
func (r *repo) TransactionsByCard(ctx context.Context, cardID int64) ([]inventory.Transaction, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, sim_card_id, customer_id, type, created_at
		FROM sim_transactions
		WHERE sim_card_id = ?
		ORDER BY created_at ASC, id ASC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []inventory.Transaction
	for rows.Next() {
		var (
			tx         inventory.Transaction
			customerID sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&tx.ID, &tx.SimCardID, &customerID, &tx.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.CustomerID = int64Ptr(customerID)
		if tx.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *repo) HistoryByCard(ctx context.Context, cardID int64) ([]inventory.TransactionRecord, error) {
	return r.queryRecords(ctx, recordSelect+" WHERE t.sim_card_id = ?"+ledgerOrder, cardID)
}

// StockOutsByCards returns the STOCK_OUT rows of the given cards with
// customer names joined, in ledger order.
func (r *repo) StockOutsByCards(ctx context.Context, cardIDs []int64) ([]inventory.TransactionRecord, error) {
	var out []inventory.TransactionRecord
	for start := 0; start < len(cardIDs); start += inListChunk {
		end := min(start+inListChunk, len(cardIDs))
		chunk := cardIDs[start:end]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, string(inventory.TxStockOut))
		for _, id := range chunk {
			args = append(args, id)
		}
		records, err := r.queryRecords(ctx,
			recordSelect+" WHERE t.type = ? AND t.sim_card_id IN ("+placeholders(len(chunk))+")"+ledgerOrder,
			args...)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// SearchTransactions returns one page of the filtered ledger and the total
// number of matching rows.
func (r *repo) SearchTransactions(ctx context.Context, f inventory.TransactionFilter, offset, limit int) ([]inventory.TransactionRecord, int, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.SerialNumber); s != "" {
		where = append(where, "c.serial_number LIKE ? ESCAPE '!'")
		args = append(args, containsPattern(s))
	}
	if f.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if f.CardStatus != "" {
		where = append(where, "c.status = ?")
		args = append(args, string(f.CardStatus))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	total, err := r.count(ctx, `
		SELECT COUNT(*)
		FROM sim_transactions t
		JOIN sim_cards c ON c.id = t.sim_card_id`+clause, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	records, err := r.queryRecords(ctx, recordSelect+clause+ledgerOrder+" LIMIT ? OFFSET ?", pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repo) CountTransactionsByCustomer(ctx context.Context, customerID int64, t inventory.TxType) (int, error) {
	return r.count(ctx,
		"SELECT COUNT(*) FROM sim_transactions WHERE customer_id = ? AND type = ?",
		customerID, string(t))
}

// DailyCounts groups movements on or after from by UTC day and type.
func (r *repo) DailyCounts(ctx context.Context, from time.Time) ([]inventory.DailyCount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT SUBSTR(created_at, 1, 10) AS day, type, COUNT(*)
		FROM sim_transactions
		WHERE created_at >= ?
		GROUP BY SUBSTR(created_at, 1, 10), type
		ORDER BY day ASC, type ASC
	`, formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to count daily transactions: %w", err)
	}
	defer rows.Close()

	var out []inventory.DailyCount
	for rows.Next() {
		var dc inventory.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Type, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// HoldingsByCustomer counts, per customer, the cards whose latest event is
// a STOCK_OUT to that customer. "Latest" uses the same (created_at, id)
// ordering as status derivation.
func (r *repo) HoldingsByCustomer(ctx context.Context) ([]inventory.CustomerCount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT cu.id, cu.name, COUNT(*) AS n
		FROM sim_transactions t
		JOIN customers cu ON cu.id = t.customer_id
		WHERE t.type = ?
		  AND NOT EXISTS (
			SELECT 1 FROM sim_transactions later
			WHERE later.sim_card_id = t.sim_card_id
			  AND (later.created_at > t.created_at
			       OR (later.created_at = t.created_at AND later.id > t.id))
		  )
		GROUP BY cu.id, cu.name
		ORDER BY n DESC, cu.id ASC
	`, string(inventory.TxStockOut))
	if err != nil {
		return nil, fmt.Errorf("failed to count customer holdings: %w", err)
	}
	defer rows.Close()

	var out []inventory.CustomerCount
	for rows.Next() {
		var cc inventory.CustomerCount
		if err := rows.Scan(&cc.ID, &cc.Name, &cc.Count); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

func (r *repo) queryRecords(ctx context.Context, query string, args ...any) ([]inventory.TransactionRecord, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var records []inventory.TransactionRecord
	for rows.Next() {
		var (
			rec          inventory.TransactionRecord
			customerID   sql.NullInt64
			createdAt    string
			customerName sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.SimCardID, &customerID, &rec.Type, &createdAt,
			&rec.SerialNumber, &rec.CardStatus, &customerName); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		rec.CustomerID = int64Ptr(customerID)
		rec.CustomerName = stringPtr(customerName)
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
