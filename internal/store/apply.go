package store

import (
	"context"
	"fmt"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

// ApplyOperation applies a queued mutation to the store. Creates and updates
// both resolve to an upsert keyed by record id, and deletes of absent ids are
// no-ops, so replaying the same operation twice has the same observable
// effect as applying it once.
func (s *Store) ApplyOperation(ctx context.Context, op *models.Operation) error {
	decoded, err := op.DecodePayload()
	if err != nil {
		return err
	}

	if op.Action == models.ActionDelete {
		del := decoded.(*models.DeletePayload)
		switch op.EntityType {
		case models.EntityOrder:
			return s.DeleteOrder(ctx, del.ID)
		case models.EntityInventoryItem:
			return s.DeleteInventoryItem(ctx, del.ID)
		case models.EntityProduct:
			return s.DeleteProduct(ctx, del.ID)
		case models.EntitySetting:
			return s.DeleteSetting(ctx, del.ID)
		}
		return errors.New(errors.ErrValidation, fmt.Sprintf("unknown entity type %q", op.EntityType))
	}

	switch rec := decoded.(type) {
	case *models.Order:
		if rec.ID == "" {
			return errors.New(errors.ErrValidation, "order payload missing id")
		}
		return s.UpsertOrder(ctx, *rec)
	case *models.InventoryItem:
		if rec.ID == "" {
			return errors.New(errors.ErrValidation, "inventory payload missing id")
		}
		return s.UpsertInventoryItem(ctx, *rec)
	case *models.Product:
		if rec.ID == "" {
			return errors.New(errors.ErrValidation, "product payload missing id")
		}
		return s.UpsertProduct(ctx, *rec)
	case *models.Setting:
		if rec.ID == "" {
			return errors.New(errors.ErrValidation, "setting payload missing id")
		}
		return s.UpsertSetting(ctx, *rec)
	default:
		return errors.New(errors.ErrValidation, fmt.Sprintf("unsupported payload type %T", decoded))
	}
}
