package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

const orderColumns = "id, order_number, items, subtotal, discount, discount_type, tax, total, payment_method, payment_status, cashier_id, customer_name, customer_phone, notes, created_at, updated_at"

func scanOrder(scan func(dest ...interface{}) error) (models.Order, error) {
	var o models.Order
	var items string
	var createdAt, updatedAt int64
	err := scan(&o.ID, &o.OrderNumber, &items, &o.Subtotal, &o.Discount, &o.DiscountType,
		&o.Tax, &o.Total, &o.PaymentMethod, &o.PaymentStatus, &o.CashierID,
		&o.CustomerName, &o.CustomerPhone, &o.Notes, &createdAt, &updatedAt)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return o, err
	}
	o.CreatedAt = unixToTime(createdAt)
	o.UpdatedAt = unixToTime(updatedAt)
	return o, nil
}

func orderItemsJSON(o models.Order) (string, error) {
	items := o.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", errors.Wrap(errors.ErrValidation, "failed to encode order items", err)
	}
	return string(b), nil
}

// ListOrders returns every order.
func (c queries) ListOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at, id")
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list orders", err)
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan order", err)
		}
		out = append(out, o)
	}
	return out, rowsErr(rows)
}

// GetOrder returns a single order by id.
func (c queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", id)
	o, err := scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, notFound("order", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to get order", err)
	}
	return &o, nil
}

// AddOrder inserts an order.
func (c queries) AddOrder(ctx context.Context, o models.Order) error {
	items, err := orderItemsJSON(o)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		o.ID, o.OrderNumber, items, o.Subtotal, o.Discount, o.DiscountType, o.Tax, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.CashierID, o.CustomerName, o.CustomerPhone, o.Notes,
		o.CreatedAt.Unix(), o.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to add order", err)
	}
	return nil
}

// UpdateOrder replaces an existing order record.
func (c queries) UpdateOrder(ctx context.Context, o models.Order) error {
	items, err := orderItemsJSON(o)
	if err != nil {
		return err
	}
	res, err := c.q.ExecContext(ctx,
		`UPDATE orders SET order_number = ?, items = ?, subtotal = ?, discount = ?, discount_type = ?,
			tax = ?, total = ?, payment_method = ?, payment_status = ?, cashier_id = ?,
			customer_name = ?, customer_phone = ?, notes = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		o.OrderNumber, items, o.Subtotal, o.Discount, o.DiscountType, o.Tax, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.CashierID, o.CustomerName, o.CustomerPhone, o.Notes,
		o.CreatedAt.Unix(), o.UpdatedAt.Unix(), o.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update order", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("order", o.ID)
	}
	return nil
}

// UpsertOrder inserts or fully replaces an order.
func (c queries) UpsertOrder(ctx context.Context, o models.Order) error {
	items, err := orderItemsJSON(o)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET order_number = excluded.order_number, items = excluded.items,
			subtotal = excluded.subtotal, discount = excluded.discount,
			discount_type = excluded.discount_type, tax = excluded.tax, total = excluded.total,
			payment_method = excluded.payment_method, payment_status = excluded.payment_status,
			cashier_id = excluded.cashier_id, customer_name = excluded.customer_name,
			customer_phone = excluded.customer_phone, notes = excluded.notes,
			updated_at = excluded.updated_at`,
		o.ID, o.OrderNumber, items, o.Subtotal, o.Discount, o.DiscountType, o.Tax, o.Total,
		o.PaymentMethod, o.PaymentStatus, o.CashierID, o.CustomerName, o.CustomerPhone, o.Notes,
		o.CreatedAt.Unix(), o.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to upsert order", err)
	}
	return nil
}

// DeleteOrder removes an order by id (idempotent).
func (c queries) DeleteOrder(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete order", err)
	}
	return nil
}

// ClearOrders removes every order.
func (c queries) ClearOrders(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM orders"); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear orders", err)
	}
	return nil
}

// BulkInsertOrders inserts a batch of orders.
func (c queries) BulkInsertOrders(ctx context.Context, orders []models.Order) error {
	for _, o := range orders {
		if err := c.AddOrder(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// CountOrders returns the number of orders.
func (c queries) CountOrders(ctx context.Context) (int, error) {
	return c.count(ctx, "orders")
}
