package store

import (
	"context"

	"github.com/smoocho/pos-terminal/internal/models"
)

// SnapshotAll reads all four collections into a Snapshot. LastSync and
// provenance fields are left for the caller to fill in.
func (s *Store) SnapshotAll(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{}

	var err error
	if snap.Orders, err = s.ListOrders(ctx); err != nil {
		return nil, err
	}
	if snap.Products, err = s.ListProducts(ctx); err != nil {
		return nil, err
	}
	if snap.Inventory, err = s.ListInventory(ctx); err != nil {
		return nil, err
	}
	if snap.Settings, err = s.ListSettings(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

// ReplaceAll clears all four collections and bulk-loads the given snapshot
// inside one transaction: the destructive replace used when the remote wins a
// reconciliation or a backup is restored. A crash mid-replace leaves the
// prior state fully intact.
func (s *Store) ReplaceAll(ctx context.Context, snap *models.Snapshot) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.ClearOrders(ctx); err != nil {
			return err
		}
		if err := tx.ClearProducts(ctx); err != nil {
			return err
		}
		if err := tx.ClearInventory(ctx); err != nil {
			return err
		}
		if err := tx.ClearSettings(ctx); err != nil {
			return err
		}

		if err := tx.BulkInsertOrders(ctx, snap.Orders); err != nil {
			return err
		}
		if err := tx.BulkInsertProducts(ctx, snap.Products); err != nil {
			return err
		}
		if err := tx.BulkInsertInventory(ctx, snap.Inventory); err != nil {
			return err
		}
		return tx.BulkInsertSettings(ctx, snap.Settings)
	})
}
