package store

import (
	"context"
	"database/sql"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

const productColumns = "id, name, price, category, description, image, is_active, created_at, updated_at"

func scanProduct(scan func(dest ...interface{}) error) (models.Product, error) {
	var p models.Product
	var isActive int
	var createdAt, updatedAt int64
	err := scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Description, &p.Image, &isActive, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	p.IsActive = isActive != 0
	p.CreatedAt = unixToTime(createdAt)
	p.UpdatedAt = unixToTime(updatedAt)
	return p, nil
}

// ListProducts returns every product, insertion order by created_at.
func (c queries) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY created_at, id")
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list products", err)
	}
	defer rows.Close()

	var out []models.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan product", err)
		}
		out = append(out, p)
	}
	return out, rowsErr(rows)
}

// GetProduct returns a single product by id.
func (c queries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row.Scan)
	if err == sql.ErrNoRows {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to get product", err)
	}
	return &p, nil
}

// AddProduct inserts a product.
func (c queries) AddProduct(ctx context.Context, p models.Product) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Price, p.Category, p.Description, p.Image, boolToInt(p.IsActive),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to add product", err)
	}
	return nil
}

// UpdateProduct replaces an existing product record.
func (c queries) UpdateProduct(ctx context.Context, p models.Product) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ?, category = ?, description = ?, image = ?,
			is_active = ?, created_at = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Price, p.Category, p.Description, p.Image, boolToInt(p.IsActive),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix(), p.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update product", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("product", p.ID)
	}
	return nil
}

// UpsertProduct inserts or fully replaces a product. Used by operation
// replay, where applying a create twice must behave like applying it once.
func (c queries) UpsertProduct(ctx context.Context, p models.Product) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price,
			category = excluded.category, description = excluded.description,
			image = excluded.image, is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Price, p.Category, p.Description, p.Image, boolToInt(p.IsActive),
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to upsert product", err)
	}
	return nil
}

// DeleteProduct removes a product by id. Deleting an absent id is a no-op so
// replaying a delete stays idempotent.
func (c queries) DeleteProduct(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete product", err)
	}
	return nil
}

// ClearProducts removes every product.
func (c queries) ClearProducts(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear products", err)
	}
	return nil
}

// BulkInsertProducts inserts a batch of products.
func (c queries) BulkInsertProducts(ctx context.Context, products []models.Product) error {
	for _, p := range products {
		if err := c.AddProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// CountProducts returns the number of products.
func (c queries) CountProducts(ctx context.Context) (int, error) {
	return c.count(ctx, "products")
}

func (c queries) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := c.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to count "+table, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
