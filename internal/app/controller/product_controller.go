package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
	"github.com/tiendaweb/tienda-backend/internal/spreadsheet"
	"github.com/tiendaweb/tienda-backend/internal/storage"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportFilename  = "productos.xlsx"
	maxPageSize     = 500
)

// ImagePresigner issues upload URLs for product images.
type ImagePresigner interface {
	PresignProductImage(ctx context.Context, filename, contentType string) (*storage.PresignedUpload, error)
}

type ProductController struct {
	productService service.ProductService
	images         ImagePresigner
}

// NewProductController builds the controller. images may be nil when no
// bucket is configured.
func NewProductController(productService service.ProductService, images ImagePresigner) *ProductController {
	return &ProductController{
		productService: productService,
		images:         images,
	}
}

type ProductRequest struct {
	Name        string          `json:"nombre" binding:"required"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock" binding:"gte=0"`
	Image       *string         `json:"imagen"`
}

type StockRequest struct {
	Quantity  int                  `json:"cantidad"`
	Operation model.StockOperation `json:"operacion"`
}

type ImageUploadRequest struct {
	Filename    string `json:"nombre_archivo" binding:"required"`
	ContentType string `json:"tipo" binding:"required"`
}

func (r ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Image:       r.Image,
	}
}

// bindProduct binds and validates a product body, answering 400 itself.
func bindProduct(c *gin.Context) (*ProductRequest, bool) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid product request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, "Datos inválidos: nombre, precio y stock son requeridos")
		return nil, false
	}
	if !req.Price.IsPositive() {
		apperrors.BadRequest(c, "El precio debe ser mayor a 0")
		return nil, false
	}
	return &req, true
}

// GetAllProducts lists the catalog
// GET /api/productos
func (ctrl *ProductController) GetAllProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter := repository.ProductFilter{Search: c.Query("buscar")}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = min(limit, maxPageSize)
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	products, err := ctrl.productService.ListProducts(filter)
	if err != nil {
		log.Error("Failed to list products", err)
		apperrors.InternalError(c, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	c.JSON(http.StatusOK, products)
}

// GetProductByID returns a single product
// GET /api/productos/:id
func (ctrl *ProductController) GetProductByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de producto inválido")
		return
	}

	product, err := ctrl.productService.GetProduct(id)
	if err != nil {
		ctrl.respondProductError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}

// CreateProduct adds a product to the catalog
// POST /api/productos
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	req, ok := bindProduct(c)
	if !ok {
		return
	}

	product, err := ctrl.productService.CreateProduct(req.input())
	if err != nil {
		middleware.GetLoggerFromContext(c).Error("Failed to create product", err)
		apperrors.ParseAndRespond(c, err, "producto")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"mensaje": "Producto creado",
		"data":    product,
	})
}

// UpdateProduct replaces a product's fields
// PUT /api/productos/:id
func (ctrl *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de producto inválido")
		return
	}
	req, ok := bindProduct(c)
	if !ok {
		return
	}

	if _, err := ctrl.productService.UpdateProduct(id, req.input()); err != nil {
		ctrl.respondProductError(c, err, id)
		return
	}

	apperrors.RespondWithMessage(c, http.StatusOK, "Producto actualizado")
}

// DeleteProduct removes a product
// DELETE /api/productos/:id
func (ctrl *ProductController) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de producto inválido")
		return
	}

	if err := ctrl.productService.DeleteProduct(id); err != nil {
		ctrl.respondProductError(c, err, id)
		return
	}

	apperrors.RespondWithMessage(c, http.StatusOK, "Producto eliminado")
}

// UpdateStock adds to or subtracts from a product's stock. A repeated
// Idempotency-Key returns the current product without applying the change.
// PUT /api/productos/:id/stock
func (ctrl *ProductController) UpdateStock(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	id, ok := parseID(c)
	if !ok {
		apperrors.BadRequest(c, "ID de producto inválido")
		return
	}

	var req StockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "cantidad y operacion son requeridos")
		return
	}

	key := c.GetHeader("Idempotency-Key")
	product, replayed, err := ctrl.productService.AdjustStock(c.Request.Context(), id, req.Quantity, req.Operation, key)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInsufficientStock):
			apperrors.BadRequest(c, "Stock insuficiente")
		case errors.Is(err, service.ErrInvalidQuantity):
			apperrors.BadRequest(c, "La cantidad debe ser mayor a 0")
		case errors.Is(err, service.ErrInvalidStockOperation):
			apperrors.BadRequest(c, "Operación inválida, use 'restar' o 'sumar'")
		case errors.Is(err, service.ErrStockChangeInProgress):
			apperrors.RespondWithError(c, http.StatusConflict, "Cambio de stock en curso")
		default:
			ctrl.respondProductError(c, err, id)
		}
		return
	}

	if replayed {
		log.Info("Idempotent stock replay", map[string]interface{}{
			"product_id":      id,
			"idempotency_key": key,
		})
		c.Header("Idempotent-Replayed", "true")
	}

	c.JSON(http.StatusOK, gin.H{
		"mensaje": "Stock actualizado",
		"data":    product,
	})
}

// ExportProducts downloads the catalog as an XLSX workbook
// GET /api/productos/exportar
func (ctrl *ProductController) ExportProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	products, err := ctrl.productService.ListProducts(repository.ProductFilter{})
	if err != nil {
		log.Error("Failed to load products for export", err)
		apperrors.InternalError(c, err)
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	c.Status(http.StatusOK)
	if err := spreadsheet.WriteProducts(c.Writer, products); err != nil {
		// Headers are already sent; all that is left is to log.
		log.Error("Failed to write product export", err, map[string]interface{}{
			"count": len(products),
		})
		return
	}

	log.Info("Products exported", map[string]interface{}{
		"count": len(products),
	})
}

// PresignImage returns a presigned upload URL for a product image
// POST /api/productos/imagen
func (ctrl *ProductController) PresignImage(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if ctrl.images == nil {
		apperrors.RespondWithError(c, http.StatusServiceUnavailable, "Almacenamiento de imágenes no configurado")
		return
	}

	var req ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, "nombre_archivo y tipo son requeridos")
		return
	}

	upload, err := ctrl.images.PresignProductImage(c.Request.Context(), req.Filename, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImageType) {
			apperrors.BadRequest(c, "Tipo de imagen no permitido")
			return
		}
		log.Error("Failed to presign image upload", err)
		apperrors.InternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, upload)
}

// Health reports liveness of the product service
// GET /health
func (ctrl *ProductController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "productos-service",
		"status":  "healthy",
	})
}

func (ctrl *ProductController) respondProductError(c *gin.Context, err error, id uint) {
	if errors.Is(err, service.ErrProductNotFound) {
		apperrors.NotFound(c, "Producto no encontrado")
		return
	}
	middleware.GetLoggerFromContext(c).Error("Product operation failed", err, map[string]interface{}{
		"product_id": id,
	})
	apperrors.ParseAndRespond(c, err, "producto")
}
