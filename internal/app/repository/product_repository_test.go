package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"gorm.io/gorm"
)

func setupProductTest(t *testing.T) (*gorm.DB, ProductRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB, NewProductRepository(testDB)
}

func newProduct(name, price string, stock int) *model.Product {
	return &model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func TestProductRepository_CreateAndFind(t *testing.T) {
	_, repo := setupProductTest(t)

	product := newProduct("Taza", "5.50", 10)
	require.NoError(t, repo.Create(product))
	assert.NotZero(t, product.ID)

	found, err := repo.FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Taza", found.Name)
	assert.True(t, decimal.RequireFromString("5.50").Equal(found.Price))
	assert.Nil(t, found.Image)
}

func TestProductRepository_FindAll_Search(t *testing.T) {
	_, repo := setupProductTest(t)

	require.NoError(t, repo.CreateBatch([]model.Product{
		*newProduct("Taza cerámica", "5.50", 10),
		*newProduct("Camiseta", "10.00", 5),
		*newProduct("Taza térmica", "12.00", 2),
	}, 2))

	all, err := repo.FindAll(ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tazas, err := repo.FindAll(ProductFilter{Search: "taza"})
	require.NoError(t, err)
	assert.Len(t, tazas, 2)

	page, err := repo.FindAll(ProductFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Camiseta", page[0].Name)
}

func TestProductRepository_AdjustStock(t *testing.T) {
	_, repo := setupProductTest(t)

	product := newProduct("Mochila", "39.90", 3)
	require.NoError(t, repo.Create(product))

	applied, err := repo.AdjustStock(product.ID, -2)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.AdjustStock(product.ID, -2)
	require.NoError(t, err)
	assert.False(t, applied, "decrement beyond remaining stock must not apply")

	applied, err = repo.AdjustStock(product.ID, 4)
	require.NoError(t, err)
	assert.True(t, applied)

	found, err := repo.FindByID(product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, found.Stock)

	applied, err = repo.AdjustStock(9999, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestProductRepository_Delete(t *testing.T) {
	_, repo := setupProductTest(t)

	product := newProduct("Auriculares", "59.99", 1)
	require.NoError(t, repo.Create(product))

	require.NoError(t, repo.Delete(product.ID))
	assert.ErrorIs(t, repo.Delete(product.ID), gorm.ErrRecordNotFound)

	_, err := repo.FindByID(product.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
