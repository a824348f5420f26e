package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

type decrementCall struct {
	ProductID uint
	Quantity  int
	Key       string
}

// fakeCatalog stands in for the product directory.
type fakeCatalog struct {
	mu           sync.Mutex
	products     map[uint]catalog.Product
	lookupErr    error
	decrementErr map[uint]error
	decrements   []decrementCall
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:     map[uint]catalog.Product{},
		decrementErr: map[uint]error{},
	}
}

func (f *fakeCatalog) put(p catalog.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

func (f *fakeCatalog) GetProduct(_ context.Context, id uint) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) LookupProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	return f.GetProduct(ctx, id)
}

func (f *fakeCatalog) DecrementStock(_ context.Context, id uint, quantity int, key string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements = append(f.decrements, decrementCall{ProductID: id, Quantity: quantity, Key: key})
	if err := f.decrementErr[id]; err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	p.Stock -= quantity
	f.products[id] = p
	return &p, nil
}

func (f *fakeCatalog) calls() []decrementCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decrementCall(nil), f.decrements...)
}

// seedProduct stores a product in the database and mirrors it in the catalog.
func seedProduct(t *testing.T, testDB *gorm.DB, cat *fakeCatalog, name, price string, stock int) model.Product {
	t.Helper()
	p := model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, testDB.Create(&p).Error)
	if cat != nil {
		cat.put(catalog.Product{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
	}
	return p
}
