package store

import (
	"context"
	"database/sql"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

const settingColumns = "id, key, value, type, updated_at"

func scanSetting(scan func(dest ...interface{}) error) (models.Setting, error) {
	var s models.Setting
	var updatedAt int64
	err := scan(&s.ID, &s.Key, &s.Value, &s.Type, &updatedAt)
	if err != nil {
		return s, err
	}
	s.UpdatedAt = unixToTime(updatedAt)
	return s, nil
}

// ListSettings returns every setting.
func (c queries) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT "+settingColumns+" FROM settings ORDER BY key")
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to list settings", err)
	}
	defer rows.Close()

	var out []models.Setting
	for rows.Next() {
		s, err := scanSetting(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(errors.ErrDatabase, "failed to scan setting", err)
		}
		out = append(out, s)
	}
	return out, rowsErr(rows)
}

// GetSetting returns a setting by id.
func (c queries) GetSetting(ctx context.Context, id string) (*models.Setting, error) {
	row := c.q.QueryRowContext(ctx, "SELECT "+settingColumns+" FROM settings WHERE id = ?", id)
	s, err := scanSetting(row.Scan)
	if err == sql.ErrNoRows {
		return nil, notFound("setting", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "failed to get setting", err)
	}
	return &s, nil
}

// AddSetting inserts a setting.
func (c queries) AddSetting(ctx context.Context, s models.Setting) error {
	_, err := c.q.ExecContext(ctx,
		"INSERT INTO settings ("+settingColumns+") VALUES (?, ?, ?, ?, ?)",
		s.ID, s.Key, s.Value, s.Type, s.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to add setting", err)
	}
	return nil
}

// UpdateSetting replaces an existing setting record.
func (c queries) UpdateSetting(ctx context.Context, s models.Setting) error {
	res, err := c.q.ExecContext(ctx,
		"UPDATE settings SET key = ?, value = ?, type = ?, updated_at = ? WHERE id = ?",
		s.Key, s.Value, s.Type, s.UpdatedAt.Unix(), s.ID)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to update setting", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return notFound("setting", s.ID)
	}
	return nil
}

// UpsertSetting inserts or fully replaces a setting.
func (c queries) UpsertSetting(ctx context.Context, s models.Setting) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO settings (`+settingColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET key = excluded.key, value = excluded.value,
			type = excluded.type, updated_at = excluded.updated_at`,
		s.ID, s.Key, s.Value, s.Type, s.UpdatedAt.Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to upsert setting", err)
	}
	return nil
}

// DeleteSetting removes a setting by id (idempotent).
func (c queries) DeleteSetting(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM settings WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete setting", err)
	}
	return nil
}

// ClearSettings removes every setting.
func (c queries) ClearSettings(ctx context.Context) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM settings"); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to clear settings", err)
	}
	return nil
}

// BulkInsertSettings inserts a batch of settings.
func (c queries) BulkInsertSettings(ctx context.Context, settings []models.Setting) error {
	for _, s := range settings {
		if err := c.AddSetting(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// CountSettings returns the number of settings.
func (c queries) CountSettings(ctx context.Context) (int, error) {
	return c.count(ctx, "settings")
}
