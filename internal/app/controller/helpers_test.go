package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"gorm.io/gorm"
)

func setupControllerDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// stubCatalog serves products from memory in place of the product directory.
type stubCatalog struct {
	mu       sync.Mutex
	products map[uint]catalog.Product
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{products: map[uint]catalog.Product{}}
}

func (s *stubCatalog) GetProduct(_ context.Context, id uint) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func (s *stubCatalog) LookupProduct(ctx context.Context, id uint) (*catalog.Product, error) {
	return s.GetProduct(ctx, id)
}

func (s *stubCatalog) DecrementStock(_ context.Context, id uint, quantity int, _ string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	p.Stock -= quantity
	s.products[id] = p
	return &p, nil
}

func createProduct(t *testing.T, testDB *gorm.DB, cat *stubCatalog, name, price string, stock int) model.Product {
	t.Helper()
	p := model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, testDB.Create(&p).Error)
	if cat != nil {
		cat.mu.Lock()
		cat.products[p.ID] = catalog.Product{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock}
		cat.mu.Unlock()
	}
	return p
}

func doJSON(router *gin.Engine, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
