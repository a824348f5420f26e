package controller

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	"github.com/tiendaweb/tienda-backend/internal/spreadsheet"
	"github.com/tiendaweb/tienda-backend/internal/storage"
	"gorm.io/gorm"
)

type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryKeys) Claim(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if done, held := m.keys[key]; held {
		return false, done, nil
	}
	m.keys[key] = false
	return true, false, nil
}

func (m *memoryKeys) Complete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = true
	return nil
}

func (m *memoryKeys) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type stubPresigner struct{}

func (stubPresigner) PresignProductImage(_ context.Context, filename, contentType string) (*storage.PresignedUpload, error) {
	if err := storage.ValidateContentType(contentType, storage.AllowedImageTypes); err != nil {
		return nil, err
	}
	key := "productos/test-" + filename
	return &storage.PresignedUpload{
		UploadURL: "https://bucket.test/" + key + "?X-Amz-Signature=abc",
		FileURL:   "https://cdn.test/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func setupProductControllerTest(t *testing.T, images ImagePresigner) (*gin.Engine, *gorm.DB) {
	router, testDB, _ := setupProductControllerWithKeys(t, images)
	return router, testDB
}

func setupProductControllerWithKeys(t *testing.T, images ImagePresigner) (*gin.Engine, *gorm.DB, *memoryKeys) {
	testDB := setupControllerDB(t)
	keys := &memoryKeys{keys: map[string]bool{}}
	productService := service.NewProductService(repository.NewProductRepository(testDB), keys)
	ctrl := NewProductController(productService, images)

	router := newTestRouter()
	api := router.Group("/api/productos")
	api.GET("", ctrl.GetAllProducts)
	api.GET("/exportar", ctrl.ExportProducts)
	api.POST("/imagen", ctrl.PresignImage)
	api.GET("/:id", ctrl.GetProductByID)
	api.POST("", ctrl.CreateProduct)
	api.PUT("/:id", ctrl.UpdateProduct)
	api.DELETE("/:id", ctrl.DeleteProduct)
	api.PUT("/:id/stock", ctrl.UpdateStock)

	return router, testDB, keys
}

func TestProductController_CRUD(t *testing.T) {
	router, _ := setupProductControllerTest(t, nil)

	w := doJSON(router, http.MethodGet, "/api/productos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doJSON(router, http.MethodPost, "/api/productos", map[string]interface{}{
		"nombre": "Taza", "descripcion": "Cerámica", "precio": 5.5, "stock": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "Producto creado", body["mensaje"])
	id := uint(body["data"].(map[string]interface{})["id"].(float64))
	path := fmt.Sprintf("/api/productos/%d", id)

	w = doJSON(router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Taza", data["nombre"])
	assert.Equal(t, "5.5", data["precio"])

	w = doJSON(router, http.MethodPut, path, map[string]interface{}{
		"nombre": "Taza grande", "precio": "6.00", "stock": 8,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Producto actualizado", decodeBody(t, w)["mensaje"])

	w = doJSON(router, http.MethodGet, "/api/productos?buscar=grande", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Taza grande")

	w = doJSON(router, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Producto eliminado", decodeBody(t, w)["mensaje"])

	w = doJSON(router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Producto no encontrado", decodeBody(t, w)["mensaje"])

	w = doJSON(router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductController_CreateProduct_Validation(t *testing.T) {
	router, _ := setupProductControllerTest(t, nil)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{name: "Missing name", body: map[string]interface{}{"precio": 1, "stock": 1}},
		{name: "Zero price", body: map[string]interface{}{"nombre": "X", "precio": 0, "stock": 1}},
		{name: "Negative stock", body: map[string]interface{}{"nombre": "X", "precio": 1, "stock": -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/productos", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestProductController_UpdateStock(t *testing.T) {
	router, testDB := setupProductControllerTest(t, nil)
	product := createProduct(t, testDB, nil, "Mochila", "39.90", 3)
	path := fmt.Sprintf("/api/productos/%d/stock", product.ID)

	w := doJSON(router, http.MethodPut, path, map[string]interface{}{"cantidad": 2, "operacion": "restar"}, "Idempotency-Key", "evt-1")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Stock actualizado", body["mensaje"])
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["stock"])

	// Same key again: reported as success, not applied twice.
	w = doJSON(router, http.MethodPut, path, map[string]interface{}{"cantidad": 2, "operacion": "restar"}, "Idempotency-Key", "evt-1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, float64(1), decodeBody(t, w)["data"].(map[string]interface{})["stock"])

	w = doJSON(router, http.MethodPut, path, map[string]interface{}{"cantidad": 5, "operacion": "restar"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Stock insuficiente", decodeBody(t, w)["error"])

	w = doJSON(router, http.MethodPut, path, map[string]interface{}{"cantidad": 1, "operacion": "dividir"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPut, "/api/productos/999/stock", map[string]interface{}{"cantidad": 1, "operacion": "sumar"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var stored model.Product
	require.NoError(t, testDB.First(&stored, product.ID).Error)
	assert.Equal(t, 1, stored.Stock)
}

func TestProductController_UpdateStock_KeyInProgress(t *testing.T) {
	router, testDB, keys := setupProductControllerWithKeys(t, nil)
	product := createProduct(t, testDB, nil, "Mochila", "39.90", 3)
	path := fmt.Sprintf("/api/productos/%d/stock", product.ID)

	// Claimed by a request that never finished applying.
	keys.keys["evt-7"] = false

	w := doJSON(router, http.MethodPut, path, map[string]interface{}{"cantidad": 2, "operacion": "restar"}, "Idempotency-Key", "evt-7")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Cambio de stock en curso", decodeBody(t, w)["error"])
	assert.Empty(t, w.Header().Get("Idempotent-Replayed"))

	var stored model.Product
	require.NoError(t, testDB.First(&stored, product.ID).Error)
	assert.Equal(t, 3, stored.Stock)
}

func TestProductController_ExportProducts(t *testing.T) {
	router, testDB := setupProductControllerTest(t, nil)
	createProduct(t, testDB, nil, "Taza", "5.50", 10)
	createProduct(t, testDB, nil, "Camiseta", "12.00", 4)

	w := doJSON(router, http.MethodGet, "/api/productos/exportar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), exportFilename)

	products, rowErrs, err := spreadsheet.ReadProducts(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	require.Len(t, products, 2)
	assert.Equal(t, "Taza", products[0].Name)
}

func TestProductController_PresignImage(t *testing.T) {
	t.Run("Storage not configured", func(t *testing.T) {
		router, _ := setupProductControllerTest(t, nil)
		w := doJSON(router, http.MethodPost, "/api/productos/imagen", map[string]string{"nombre_archivo": "a.png", "tipo": "image/png"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	router, _ := setupProductControllerTest(t, stubPresigner{})

	w := doJSON(router, http.MethodPost, "/api/productos/imagen", map[string]string{"nombre_archivo": "a.png", "tipo": "image/png"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "https://cdn.test/productos/test-a.png", body["imagen"])
	assert.NotEmpty(t, body["upload_url"])

	w = doJSON(router, http.MethodPost, "/api/productos/imagen", map[string]string{"nombre_archivo": "a.exe", "tipo": "application/octet-stream"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/productos/imagen", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
