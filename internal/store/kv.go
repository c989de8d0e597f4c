package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
)

// Well-known keys in the persistent key-value area.
const (
	KeyOfflineQueue = "offline_queue"
	KeyBackups      = "pos_backups"
	KeyStartupCache = "pos_startup_cache"
	KeyDeviceID     = "device_id"
	KeyLastSyncTime = "last_sync_time"
)

// GetKV reads a key from the persistent key-value area. The second return
// value reports whether the key exists.
func (c queries) GetKV(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.q.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrDatabase, "failed to read kv key "+key, err)
	}
	return value, true, nil
}

// SetKV writes a key to the persistent key-value area.
func (c queries) SetKV(ctx context.Context, key string, value []byte) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to write kv key "+key, err)
	}
	return nil
}

// DeleteKV removes a key from the persistent key-value area.
func (c queries) DeleteKV(ctx context.Context, key string) error {
	if _, err := c.q.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to delete kv key "+key, err)
	}
	return nil
}
