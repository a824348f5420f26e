package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	apperrors "github.com/tiendaweb/tienda-backend/internal/errors"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddToCartRequest struct {
	UserID    uint `json:"usuario_id"`
	ProductID uint `json:"producto_id"`
	Quantity  *int `json:"cantidad"`
}

type UpdateCartRequest struct {
	Quantity int `json:"cantidad"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"direccionEnvio"`
	ContactPhone    string `json:"telefonoContacto"`
}

type cartResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// parseID reads the :id path parameter.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// GetCart returns the user's active cart with live product data
// GET /api/carrito/:id
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de usuario inválido")
		return
	}

	view, err := ctrl.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		log.Error("Failed to fetch cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.CartInternal(c, err)
		return
	}

	lines := view.Lines
	if lines == nil {
		lines = []service.CartLine{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"data":          lines,
		"carrito":       view.Cart,
		"total":         view.Total.StringFixed(2),
		"cantidadTotal": view.TotalQuantity,
	})
}

// AddToCart adds a product to the user's active cart
// POST /api/carrito
func (ctrl *CartController) AddToCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.CartFail(c, http.StatusBadRequest, "usuario_id y producto_id son requeridos")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	item, err := ctrl.cartService.AddItem(c.Request.Context(), req.UserID, req.ProductID, quantity)
	if err != nil {
		var stockErr *service.StockError
		switch {
		case errors.Is(err, service.ErrMissingIDs):
			apperrors.CartFail(c, http.StatusBadRequest, "usuario_id y producto_id son requeridos")
		case errors.Is(err, service.ErrInvalidQuantity):
			apperrors.CartFail(c, http.StatusBadRequest, "La cantidad debe ser mayor a 0")
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.CartFail(c, http.StatusNotFound, "Producto no encontrado")
		case errors.Is(err, service.ErrMergedStockExceeded):
			apperrors.CartFail(c, http.StatusBadRequest, "Stock insuficiente para la cantidad solicitada")
		case errors.As(err, &stockErr):
			apperrors.CartFail(c, http.StatusBadRequest, "Stock insuficiente")
		case errors.Is(err, service.ErrCatalogUnavailable):
			apperrors.CartFail(c, http.StatusBadGateway, "Servicio de productos no disponible")
		default:
			log.Error("Failed to add item to cart", err, map[string]interface{}{
				"user_id":    req.UserID,
				"product_id": req.ProductID,
			})
			apperrors.CartInternal(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, cartResponse{
		Success: true,
		Message: "Producto agregado al carrito exitosamente",
		Data:    item,
	})
}

// UpdateCartItem sets the quantity of a line item
// PUT /api/carrito/:id
func (ctrl *CartController) UpdateCartItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	itemID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de item inválido")
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.CartFail(c, http.StatusBadRequest, "La cantidad debe ser mayor a 0")
		return
	}

	item, err := ctrl.cartService.UpdateItem(c.Request.Context(), itemID, req.Quantity)
	if err != nil {
		var stockErr *service.StockError
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			apperrors.CartFail(c, http.StatusBadRequest, "La cantidad debe ser mayor a 0")
		case errors.Is(err, service.ErrCartItemNotFound):
			apperrors.CartFail(c, http.StatusNotFound, "Item no encontrado en el carrito")
		case errors.As(err, &stockErr):
			apperrors.CartFail(c, http.StatusBadRequest,
				fmt.Sprintf("Stock insuficiente. Stock disponible: %d", stockErr.Available))
		case errors.Is(err, service.ErrProductNotFound):
			apperrors.CartFail(c, http.StatusNotFound, "Producto no encontrado")
		case errors.Is(err, service.ErrCatalogUnavailable):
			apperrors.CartFail(c, http.StatusBadGateway, "Servicio de productos no disponible")
		default:
			log.Error("Failed to update cart item", err, map[string]interface{}{
				"cart_item_id": itemID,
			})
			apperrors.CartInternal(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, cartResponse{
		Success: true,
		Message: "Cantidad actualizada exitosamente",
		Data:    item,
	})
}

// RemoveFromCart deletes a line item
// DELETE /api/carrito/:id
func (ctrl *CartController) RemoveFromCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	itemID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de item inválido")
		return
	}

	item, err := ctrl.cartService.RemoveItem(itemID)
	if err != nil {
		if errors.Is(err, service.ErrCartItemNotFound) {
			apperrors.CartFail(c, http.StatusNotFound, "Item no encontrado en el carrito")
			return
		}
		log.Error("Failed to remove cart item", err, map[string]interface{}{
			"cart_item_id": itemID,
		})
		apperrors.CartInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, cartResponse{
		Success: true,
		Message: "Producto eliminado del carrito exitosamente",
		Data:    item,
	})
}

// ClearCart empties the user's active cart
// DELETE /api/carrito/:id/vaciar
func (ctrl *CartController) ClearCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de usuario inválido")
		return
	}

	if err := ctrl.cartService.ClearCart(userID); err != nil {
		if errors.Is(err, service.ErrCartNotFound) {
			apperrors.CartFail(c, http.StatusNotFound, "Carrito no encontrado")
			return
		}
		log.Error("Failed to clear cart", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.CartInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, cartResponse{
		Success: true,
		Message: "Carrito vaciado exitosamente",
	})
}

// Checkout closes the active cart and queues the stock decrements
// POST /api/carrito/:id/checkout
func (ctrl *CartController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de usuario inválido")
		return
	}

	var req CheckoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.CartFail(c, http.StatusBadRequest, "Datos de envío inválidos")
			return
		}
	}

	result, err := ctrl.cartService.Checkout(c.Request.Context(), userID, service.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		ContactPhone:    req.ContactPhone,
	})
	if err != nil {
		log.Warn("Checkout rejected", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		apperrors.CartFail(c, http.StatusBadRequest, checkoutFailureMessage(err))
		return
	}

	c.JSON(http.StatusCreated, cartResponse{
		Success: true,
		Message: "Compra realizada exitosamente",
		Data: gin.H{
			"total":      result.Total.StringFixed(2),
			"items":      result.Items,
			"carritoId":  result.CartID,
			"referencia": result.Reference,
		},
	})
}

// checkoutFailureMessage turns a rolled-back checkout into the reason shown
// to the client. Unclassified errors pass their text through.
func checkoutFailureMessage(err error) string {
	var stockErr *service.StockError
	switch {
	case errors.Is(err, service.ErrCartNotFound):
		return "Carrito no encontrado"
	case errors.Is(err, service.ErrCartEmpty):
		return "El carrito está vacío"
	case errors.As(err, &stockErr):
		return "Stock insuficiente para " + stockErr.Label()
	default:
		return err.Error()
	}
}

// GetStats aggregates the user's active cart
// GET /api/carrito/:id/stats
func (ctrl *CartController) GetStats(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := parseID(c)
	if !ok {
		apperrors.CartFail(c, http.StatusBadRequest, "ID de usuario inválido")
		return
	}

	stats, err := ctrl.cartService.Stats(userID)
	if err != nil {
		log.Error("Failed to compute cart stats", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.CartInternal(c, err)
		return
	}

	c.JSON(http.StatusOK, cartResponse{
		Success: true,
		Data: gin.H{
			"totalItems":     stats.TotalItems,
			"totalProductos": stats.TotalQuantity,
			"totalValor":     stats.TotalValue.StringFixed(2),
		},
	})
}

// Health reports liveness of the cart service
// GET /health
func (ctrl *CartController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "carrito-service",
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
