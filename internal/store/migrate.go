package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/logging"
)

// migration is one embedded schema step. Checksums of applied migrations are
// recorded so a changed migration body is detected on the next start.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "initial schema",
		SQL: `
CREATE TABLE products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	price       REAL NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX idx_products_category ON products(category);

CREATE TABLE inventory (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	quantity      REAL NOT NULL DEFAULT 0,
	unit          TEXT NOT NULL DEFAULT '',
	cost_per_unit REAL NOT NULL DEFAULT 0,
	threshold     REAL NOT NULL DEFAULT 0,
	category      TEXT NOT NULL DEFAULT '',
	expiry_date   INTEGER,
	supplier      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE orders (
	id             TEXT PRIMARY KEY,
	order_number   TEXT NOT NULL,
	items          TEXT NOT NULL DEFAULT '[]',
	subtotal       REAL NOT NULL DEFAULT 0,
	discount       REAL NOT NULL DEFAULT 0,
	discount_type  TEXT NOT NULL DEFAULT 'flat',
	tax            REAL NOT NULL DEFAULT 0,
	total          REAL NOT NULL DEFAULT 0,
	payment_method TEXT NOT NULL DEFAULT 'cash',
	payment_status TEXT NOT NULL DEFAULT 'pending',
	cashier_id     TEXT NOT NULL DEFAULT '',
	customer_name  TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	notes          TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX idx_orders_order_number ON orders(order_number);
CREATE INDEX idx_orders_created_at ON orders(created_at);

CREATE TABLE settings (
	id         TEXT PRIMARY KEY,
	key        TEXT NOT NULL UNIQUE,
	value      TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT 'string',
	updated_at INTEGER NOT NULL
);

CREATE TABLE kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`,
	},
}

// Migrate applies all pending schema migrations and verifies the checksums of
// migrations already applied.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at  INTEGER NOT NULL,
		description TEXT NOT NULL,
		checksum    TEXT NOT NULL CHECK(length(checksum) = 64)
	);`); err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to create schema_migrations table", err)
	}

	applied := make(map[int]string)
	rows, err := s.db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to read applied migrations", err)
	}
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			rows.Close()
			return errors.Wrap(errors.ErrMigration, "failed to scan migration row", err)
		}
		applied[version] = checksum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrMigration, "failed to iterate migrations", err)
	}

	for _, m := range migrations {
		checksum := migrationChecksum(m.SQL)

		if prev, ok := applied[m.Version]; ok {
			if prev != checksum {
				return errors.New(errors.ErrMigration,
					fmt.Sprintf("migration %d checksum mismatch: schema history was modified", m.Version))
			}
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrap(errors.ErrMigration, "failed to begin migration transaction", err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrMigration,
				fmt.Sprintf("migration %d (%s) failed", m.Version, m.Description), err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			m.Version, time.Now().Unix(), m.Description, checksum,
		); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.ErrMigration, "failed to record migration", err)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(errors.ErrMigration, "failed to commit migration", err)
		}

		logging.Info("Applied schema migration", map[string]interface{}{
			"version":     m.Version,
			"description": m.Description,
		})
	}

	return nil
}

func migrationChecksum(sqlText string) string {
	sum := sha256.Sum256([]byte(sqlText))
	return hex.EncodeToString(sum[:])
}
