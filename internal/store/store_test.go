package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smoocho/pos-terminal/internal/errors"
	"github.com/smoocho/pos-terminal/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func testProduct(id string) models.Product {
	now := time.Unix(1700000000, 0)
	return models.Product{
		ID:        id,
		Name:      "Espresso " + id,
		Price:     3.50,
		Category:  "drinks",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Migrate())
}

func TestProductCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testProduct("p1")
	require.NoError(t, s.AddProduct(ctx, p))

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Price, got.Price)
	assert.True(t, got.IsActive)

	p.Price = 4.00
	require.NoError(t, s.UpdateProduct(ctx, p))
	got, err = s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4.00, got.Price)

	require.NoError(t, s.DeleteProduct(ctx, "p1"))
	_, err = s.GetProduct(ctx, "p1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateMissingProductReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateProduct(context.Background(), testProduct("ghost"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpsertProductIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := testProduct("p1")
	require.NoError(t, s.UpsertProduct(ctx, p))
	require.NoError(t, s.UpsertProduct(ctx, p))

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDeleteAbsentProductIsNoOp(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.DeleteProduct(context.Background(), "never-existed"))
}

func TestOrderItemsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	o := models.Order{
		ID:          "o1",
		OrderNumber: "0001",
		Items: []models.OrderItem{
			{ProductID: "p1", ProductName: "Espresso", Quantity: 2, Price: 3.50, Total: 7.00},
		},
		Subtotal:      7.00,
		Total:         7.00,
		PaymentMethod: "cash",
		PaymentStatus: "completed",
		CashierID:     "u1",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.AddOrder(ctx, o))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Espresso", got.Items[0].ProductName)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.AddProduct(ctx, testProduct("p1")); err != nil {
			return err
		}
		return errors.New(errors.ErrInternal, "boom")
	})
	require.Error(t, err)

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "rolled back insert must not be visible")
}

func TestKVRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetKV(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetKV(ctx, "k", []byte("v1")))
	require.NoError(t, s.SetKV(ctx, "k", []byte("v2")))

	val, ok, err := s.GetKV(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), val)

	require.NoError(t, s.DeleteKV(ctx, "k"))
	_, ok, err = s.GetKV(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceAllSwapsEverything(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	require.NoError(t, s.AddProduct(ctx, testProduct("old")))
	require.NoError(t, s.AddSetting(ctx, models.Setting{
		ID: "s_old", Key: "store_name", Value: "Old", Type: "string", UpdatedAt: now,
	}))

	snap := &models.Snapshot{
		Products: []models.Product{testProduct("new1"), testProduct("new2")},
		Settings: []models.Setting{
			{ID: "s_new", Key: "store_name", Value: "New", Type: "string", UpdatedAt: now},
		},
	}
	require.NoError(t, s.ReplaceAll(ctx, snap))

	got, err := s.SnapshotAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Products, 2)
	assert.Len(t, got.Settings, 1)
	assert.Empty(t, got.Orders)
	assert.Empty(t, got.Inventory)
	assert.Equal(t, "New", got.Settings[0].Value)
}

func TestApplyOperationCreateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	payload, err := json.Marshal(testProduct("p1"))
	require.NoError(t, err)
	op, err := models.NewOperation(models.EntityProduct, models.ActionCreate, payload, "u1", "d1", now)
	require.NoError(t, err)

	require.NoError(t, s.ApplyOperation(ctx, op))
	// Replay must behave like applying once.
	require.NoError(t, s.ApplyOperation(ctx, op))

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	delPayload, err := json.Marshal(models.DeletePayload{ID: "p1"})
	require.NoError(t, err)
	delOp, err := models.NewOperation(models.EntityProduct, models.ActionDelete, delPayload, "u1", "d1", now)
	require.NoError(t, err)

	require.NoError(t, s.ApplyOperation(ctx, delOp))
	require.NoError(t, s.ApplyOperation(ctx, delOp))

	n, err = s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestApplyOperationRejectsPayloadWithoutID(t *testing.T) {
	s := openTestStore(t)
	now := time.Unix(1700000000, 0)

	op, err := models.NewOperation(models.EntityProduct, models.ActionCreate,
		json.RawMessage(`{"name":"no id"}`), "u1", "d1", now)
	require.NoError(t, err)

	err = s.ApplyOperation(context.Background(), op)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}
