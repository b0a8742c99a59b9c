package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/sim-inventory/inventory"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

func (r *repo) GetCustomer(ctx context.Context, id int64) (*inventory.Customer, error) {
	return r.getCustomer(ctx, "SELECT id, name, email FROM customers WHERE id = ?", id)
}

// GetCustomerByName matches the exact name; with duplicates the oldest wins.
func (r *repo) GetCustomerByName(ctx context.Context, name string) (*inventory.Customer, error) {
	return r.getCustomer(ctx,
		"SELECT id, name, email FROM customers WHERE name = ? ORDER BY id ASC LIMIT 1", name)
}

func (r *repo) getCustomer(ctx context.Context, query string, args ...any) (*inventory.Customer, error) {
	var (
		c     inventory.Customer
		email sql.NullString
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&c.ID, &c.Name, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	c.Email = stringPtr(email)
	return &c, nil
}

func (r *repo) ListCustomers(ctx context.Context) ([]inventory.Customer, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name, email FROM customers ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	var customers []inventory.Customer
	for rows.Next() {
		var (
			c     inventory.Customer
			email sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &email); err != nil {
			return nil, err
		}
		c.Email = stringPtr(email)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *repo) InsertCustomer(ctx context.Context, c inventory.Customer) (int64, error) {
	res, err := r.q.ExecContext(ctx, "INSERT INTO customers (name, email) VALUES (?, ?)", c.Name, c.Email)
	if err != nil {
		return 0, r.writeErr("customer", "insert", err)
	}
	return res.LastInsertId()
}

func (r *repo) UpdateCustomer(ctx context.Context, c inventory.Customer) error {
	_, err := r.q.ExecContext(ctx, "UPDATE customers SET name = ?, email = ? WHERE id = ?", c.Name, c.Email, c.ID)
	if err != nil {
		return r.writeErr("customer", "update", err)
	}
	return nil
}

func (r *repo) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id); err != nil {
		return r.writeErr("customer", "delete", err)
	}
	return nil
}

func (r *repo) CountCustomerTransactions(ctx context.Context, customerID int64) (int, error) {
	return r.count(ctx, "SELECT COUNT(*) FROM sim_transactions WHERE customer_id = ?", customerID)
}

// =============================================================================
// SIM TYPES
// =============================================================================

func (r *repo) GetSimType(ctx context.Context, id int64) (*inventory.SimType, error) {
	return r.getSimType(ctx, "SELECT id, name, purchase_product FROM sim_types WHERE id = ?", id)
}

func (r *repo) GetSimTypeByName(ctx context.Context, name string) (*inventory.SimType, error) {
	return r.getSimType(ctx, "SELECT id, name, purchase_product FROM sim_types WHERE name = ?", name)
}

func (r *repo) getSimType(ctx context.Context, query string, args ...any) (*inventory.SimType, error) {
	var t inventory.SimType
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Name, &t.PurchaseProduct)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sim type: %w", err)
	}
	return &t, nil
}

func (r *repo) ListSimTypes(ctx context.Context) ([]inventory.SimType, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT id, name, purchase_product FROM sim_types ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sim types: %w", err)
	}
	defer rows.Close()

	var types []inventory.SimType
	for rows.Next() {
		var t inventory.SimType
		if err := rows.Scan(&t.ID, &t.Name, &t.PurchaseProduct); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (r *repo) InsertSimType(ctx context.Context, t inventory.SimType) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO sim_types (name, purchase_product) VALUES (?, ?)", t.Name, t.PurchaseProduct)
	if err != nil {
		return 0, r.writeErr("sim type", "insert", err)
	}
	return res.LastInsertId()
}

func (r *repo) UpdateSimType(ctx context.Context, t inventory.SimType) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE sim_types SET name = ?, purchase_product = ? WHERE id = ?", t.Name, t.PurchaseProduct, t.ID)
	if err != nil {
		return r.writeErr("sim type", "update", err)
	}
	return nil
}

func (r *repo) DeleteSimType(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM sim_types WHERE id = ?", id); err != nil {
		return r.writeErr("sim type", "delete", err)
	}
	return nil
}
