package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

const inventoryColumns = "id, name, quantity, unit, cost_per_unit, threshold, category, expiry_date, supplier, created_at, updated_at"

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func scanInventoryItem(scan func(dest ...interface{}) error) (models.InventoryItem, error) {
	var it models.InventoryItem
	var expiry sql.NullInt64
	var createdAt, updatedAt int64
	err := scan(&it.ID, &it.Name, &it.Quantity, &it.Unit, &it.CostPerUnit, &it.Threshold,
		&it.Category, &expiry, &it.Supplier, &createdAt, &updatedAt)
	if err != nil {
		return it, err
	}
	if expiry.Valid {
		t := unixToTime(expiry.Int64)
		it.ExpiryDate = &t
	}
	it.CreatedAt = unixToTime(createdAt)
	it.UpdatedAt = unixToTime(updatedAt)
	return it, nil
}

func expiryArg(it models.InventoryItem) interface{} {
	if it.ExpiryDate == nil {
		return nil
	}
	return it.ExpiryDate.Unix()
}

// ListInventory returns every inventory item.
func (c queries) ListInventory(ctx context.Context) ([]models.InventoryItem, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+inventoryColumns+" FROM inventory ORDER BY created_at, id")
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list inventory", err)
	}
	defer rows.Close()

	var out []models.InventoryItem
	for rows.Next() {
		it, err := scanInventoryItem(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan inventory item", err)
		}
		out = append(out, it)
	}
	return out, rowsErr(rows)
}

// GetInventoryItem returns a single inventory item by id.
func (c queries) GetInventoryItem(ctx context.Context, id string) (*models.InventoryItem, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+inventoryColumns+" FROM inventory WHERE id = ?", id)
	it, err := scanInventoryItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, notFound("inventory item", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to get inventory item", err)
	}
	return &it, nil
}

// AddInventoryItem inserts an inventory item.
func (c queries) AddInventoryItem(ctx context.Context, it models.InventoryItem) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO inventory ("+inventoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		it.ID, it.Name, it.Quantity, it.Unit, it.CostPerUnit, it.Threshold,
		it.Category, expiryArg(it), it.Supplier, it.CreatedAt.Unix(), it.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to add inventory item", err)
	}
	return nil
}

// UpdateInventoryItem replaces an existing inventory record.
func (c queries) UpdateInventoryItem(ctx context.Context, it models.InventoryItem) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE inventory SET name = ?, quantity = ?, unit = ?, cost_per_unit = ?, threshold = ?,
			category = ?, expiry_date = ?, supplier = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		it.Name, it.Quantity, it.Unit, it.CostPerUnit, it.Threshold,
		it.Category, expiryArg(it), it.Supplier, it.CreatedAt.Unix(), it.UpdatedAt.Unix(), it.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update inventory item", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("inventory item", it.ID)
	}
	return nil
}

// UpsertInventoryItem inserts or fully replaces an inventory item.
func (c queries) UpsertInventoryItem(ctx context.Context, it models.InventoryItem) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO inventory (`+inventoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, quantity = excluded.quantity,
			unit = excluded.unit, cost_per_unit = excluded.cost_per_unit,
			threshold = excluded.threshold, category = excluded.category,
			expiry_date = excluded.expiry_date, supplier = excluded.supplier,
			updated_at = excluded.updated_at`,
		it.ID, it.Name, it.Quantity, it.Unit, it.CostPerUnit, it.Threshold,
		it.Category, expiryArg(it), it.Supplier, it.CreatedAt.Unix(), it.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to upsert inventory item", err)
	}
	return nil
}

// DeleteInventoryItem removes an inventory item by id (idempotent).
func (c queries) DeleteInventoryItem(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM inventory WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete inventory item", err)
	}
	return nil
}

// ClearInventory removes every inventory item.
func (c queries) ClearInventory(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM inventory"); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear inventory", err)
	}
	return nil
}

// BulkInsertInventory inserts a batch of inventory items.
func (c queries) BulkInsertInventory(ctx context.Context, items []models.InventoryItem) error {
	for _, it := range items {
		if err := c.AddInventoryItem(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// CountInventory returns the number of inventory items.
func (c queries) CountInventory(ctx context.Context) (int, error) {
	return c.count(ctx, "inventory")
}
