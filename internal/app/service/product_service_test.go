package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
)

type memoryIdempotency struct {
	mu          sync.Mutex
	done        map[string]bool
	err         error
	completeErr error
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{done: map[string]bool{}}
}

func (m *memoryIdempotency) Claim(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, false, m.err
	}
	if done, held := m.done[key]; held {
		return false, done, nil
	}
	m.done[key] = false
	return true, false, nil
}

func (m *memoryIdempotency) Complete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	m.done[key] = true
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.done, key)
	return nil
}

func (m *memoryIdempotency) held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.done[key]
	return ok
}

func setupProductServiceTest(t *testing.T) (ProductService, *memoryIdempotency) {
	testDB := setupServiceDB(t)
	idem := newMemoryIdempotency()
	return NewProductService(repository.NewProductRepository(testDB), idem), idem
}

func productInput(name, price string, stock int) ProductInput {
	return ProductInput{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func TestProductService_CRUD(t *testing.T) {
	svc, _ := setupProductServiceTest(t)

	products, err := svc.ListProducts(repository.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)

	created, err := svc.CreateProduct(productInput("Taza", "5.50", 10))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	image := "https://cdn.example.com/taza.png"
	input := productInput("Taza grande", "6.00", 8)
	input.Image = &image
	updated, err := svc.UpdateProduct(created.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Taza grande", updated.Name)
	require.NotNil(t, updated.Image)

	// Omitting the image keeps the stored one.
	updated, err = svc.UpdateProduct(created.ID, productInput("Taza grande", "6.00", 8))
	require.NoError(t, err)
	require.NotNil(t, updated.Image)
	assert.Equal(t, image, *updated.Image)

	_, err = svc.UpdateProduct(999, productInput("X", "1.00", 1))
	assert.ErrorIs(t, err, ErrProductNotFound)

	require.NoError(t, svc.DeleteProduct(created.ID))
	assert.ErrorIs(t, svc.DeleteProduct(created.ID), ErrProductNotFound)

	_, err = svc.GetProduct(created.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_AdjustStock(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(productInput("Mochila", "39.90", 3))
	require.NoError(t, err)

	tests := []struct {
		name      string
		quantity  int
		op        model.StockOperation
		wantStock int
		wantErr   error
	}{
		{name: "Subtract", quantity: 2, op: model.StockSubtract, wantStock: 1},
		{name: "Subtract beyond stock", quantity: 2, op: model.StockSubtract, wantErr: ErrInsufficientStock},
		{name: "Add", quantity: 4, op: model.StockAdd, wantStock: 5},
		{name: "Zero quantity", quantity: 0, op: model.StockAdd, wantErr: ErrInvalidQuantity},
		{name: "Unknown operation", quantity: 1, op: model.StockOperation("multiplicar"), wantErr: ErrInvalidStockOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, replayed, err := svc.AdjustStock(ctx, product.ID, tt.quantity, tt.op, "")
			assert.False(t, replayed)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got.Stock)
		})
	}

	_, _, err = svc.AdjustStock(ctx, 999, 1, model.StockAdd, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_AdjustStock_Idempotent(t *testing.T) {
	svc, idem := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(productInput("Taza", "5.50", 10))
	require.NoError(t, err)

	got, replayed, err := svc.AdjustStock(ctx, product.ID, 3, model.StockSubtract, "evt-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 7, got.Stock)

	got, replayed, err = svc.AdjustStock(ctx, product.ID, 3, model.StockSubtract, "evt-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, 7, got.Stock, "replay must not apply twice")

	// A rejected change releases its key so it can be retried.
	_, _, err = svc.AdjustStock(ctx, product.ID, 50, model.StockSubtract, "evt-2")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.False(t, idem.held("evt-2"))

	idem.err = errors.New("redis down")
	_, _, err = svc.AdjustStock(ctx, product.ID, 1, model.StockSubtract, "evt-3")
	assert.Error(t, err)
}

func TestProductService_AdjustStock_InProgressKeyIsNotReplayed(t *testing.T) {
	svc, idem := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(productInput("Taza", "5.50", 10))
	require.NoError(t, err)

	// A claim whose request never finished.
	claimed, _, err := idem.Claim(ctx, "evt-stuck")
	require.NoError(t, err)
	require.True(t, claimed)

	got, replayed, err := svc.AdjustStock(ctx, product.ID, 3, model.StockSubtract, "evt-stuck")
	assert.ErrorIs(t, err, ErrStockChangeInProgress)
	assert.False(t, replayed)
	assert.Nil(t, got)

	stored, err := svc.GetProduct(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Stock)

	// Once the lease is gone the same key applies normally.
	require.NoError(t, idem.Release(ctx, "evt-stuck"))
	got, replayed, err = svc.AdjustStock(ctx, product.ID, 3, model.StockSubtract, "evt-stuck")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 7, got.Stock)
	assert.True(t, idem.done["evt-stuck"])
}

func TestProductService_AdjustStock_CompleteFailureStillSucceeds(t *testing.T) {
	svc, idem := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(productInput("Taza", "5.50", 10))
	require.NoError(t, err)

	idem.completeErr = errors.New("redis down")
	got, replayed, err := svc.AdjustStock(ctx, product.ID, 2, model.StockSubtract, "evt-9")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, 8, got.Stock)

	// The key stays in progress, so a retry is refused rather than replayed.
	_, _, err = svc.AdjustStock(ctx, product.ID, 2, model.StockSubtract, "evt-9")
	assert.ErrorIs(t, err, ErrStockChangeInProgress)
}
