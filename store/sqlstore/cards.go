package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/sim-inventory/inventory"
)

// =============================================================================
// SIM CARDS
// =============================================================================

const cardColumns = `id, serial_number, imsi, status, sim_type_id`

const cardViewSelect = `
	SELECT c.id, c.serial_number, c.imsi, c.status, c.sim_type_id,
	       t.id, t.name, t.purchase_product
	FROM sim_cards c
	LEFT JOIN sim_types t ON t.id = c.sim_type_id
`

func (r *repo) GetCard(ctx context.Context, id int64) (*inventory.SimCard, error) {
	return r.getCard(ctx, "SELECT "+cardColumns+" FROM sim_cards WHERE id = ?", id)
}

func (r *repo) GetCardBySerial(ctx context.Context, serial string) (*inventory.SimCard, error) {
	return r.getCard(ctx, "SELECT "+cardColumns+" FROM sim_cards WHERE serial_number = ?", serial)
}

func (r *repo) GetCardByIMSI(ctx context.Context, imsi string) (*inventory.SimCard, error) {
	return r.getCard(ctx, "SELECT "+cardColumns+" FROM sim_cards WHERE imsi = ?", imsi)
}

func (r *repo) getCard(ctx context.Context, query string, args ...any) (*inventory.SimCard, error) {
	var (
		c      inventory.SimCard
		imsi   sql.NullString
		typeID sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, query, args...).
		Scan(&c.ID, &c.SerialNumber, &imsi, &c.Status, &typeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sim card: %w", err)
	}
	c.IMSI = stringPtr(imsi)
	c.SimTypeID = int64Ptr(typeID)
	return &c, nil
}

func (r *repo) GetCardView(ctx context.Context, id int64) (*inventory.CardView, error) {
	rows, err := r.q.QueryContext(ctx, cardViewSelect+" WHERE c.id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sim card: %w", err)
	}
	views, err := scanCardViews(rows)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, nil
	}
	return &views[0], nil
}

// ListCardViews returns cards ordered by id; limit <= 0 returns all.
func (r *repo) ListCardViews(ctx context.Context, offset, limit int) ([]inventory.CardView, error) {
	query := cardViewSelect + " ORDER BY c.id ASC"
	var args []any
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sim cards: %w", err)
	}
	return scanCardViews(rows)
}

func scanCardViews(rows *sql.Rows) ([]inventory.CardView, error) {
	defer rows.Close()

	var views []inventory.CardView
	for rows.Next() {
		var (
			v               inventory.CardView
			imsi            sql.NullString
			typeID, tID     sql.NullInt64
			tName, tProduct sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.SerialNumber, &imsi, &v.Status, &typeID,
			&tID, &tName, &tProduct); err != nil {
			return nil, fmt.Errorf("failed to scan sim card: %w", err)
		}
		v.IMSI = stringPtr(imsi)
		v.SimTypeID = int64Ptr(typeID)
		if tID.Valid {
			v.SimType = &inventory.SimType{ID: tID.Int64, Name: tName.String, PurchaseProduct: tProduct.String}
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *repo) InsertCard(ctx context.Context, c inventory.SimCard) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO sim_cards (serial_number, imsi, status, sim_type_id) VALUES (?, ?, ?, ?)",
		c.SerialNumber, c.IMSI, string(c.Status), c.SimTypeID,
	)
	if err != nil {
		return 0, r.writeErr("sim card", "insert", err)
	}
	return res.LastInsertId()
}

// UpdateCard writes identity fields and type. Status is left to SetCardStatus.
func (r *repo) UpdateCard(ctx context.Context, c inventory.SimCard) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE sim_cards SET serial_number = ?, imsi = ?, sim_type_id = ? WHERE id = ?",
		c.SerialNumber, c.IMSI, c.SimTypeID, c.ID,
	)
	if err != nil {
		return r.writeErr("sim card", "update", err)
	}
	return nil
}

func (r *repo) SetCardStatus(ctx context.Context, id int64, status inventory.Status) error {
	_, err := r.q.ExecContext(ctx, "UPDATE sim_cards SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set sim card status: %w", err)
	}
	return nil
}

func (r *repo) DeleteCard(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM sim_cards WHERE id = ?", id); err != nil {
		return r.writeErr("sim card", "delete", err)
	}
	return nil
}

// CountCards counts cards with the given status, or all cards when status
// is empty.
func (r *repo) CountCards(ctx context.Context, status inventory.Status) (int, error) {
	if status == "" {
		return r.count(ctx, "SELECT COUNT(*) FROM sim_cards")
	}
	return r.count(ctx, "SELECT COUNT(*) FROM sim_cards WHERE status = ?", string(status))
}

// CountCardsByType groups cards by type name; untyped cards count as "unknown".
func (r *repo) CountCardsByType(ctx context.Context) ([]inventory.TypeCount, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT COALESCE(t.name, 'unknown') AS type_name, COUNT(*) AS n
		FROM sim_cards c
		LEFT JOIN sim_types t ON t.id = c.sim_type_id
		GROUP BY COALESCE(t.name, 'unknown')
		ORDER BY n DESC, type_name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sim cards by type: %w", err)
	}
	defer rows.Close()

	var out []inventory.TypeCount
	for rows.Next() {
		var tc inventory.TypeCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *repo) CountCardsOfType(ctx context.Context, typeID int64) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM sim_cards WHERE sim_type_id = ?", typeID)
}
