package repository

import (
	"errors"

	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	FindActive(userID uint) (*model.Cart, error)
	FindActiveForUpdate(userID uint) (*model.Cart, error)
	FindOrCreateActive(userID uint) (*model.Cart, error)
	Deactivate(cart *model.Cart) error

	FindItems(cartID uint) ([]model.CartItem, error)
	FindItemByID(id uint) (*model.CartItem, error)
	FindItemForUpdate(cartID, productID uint) (*model.CartItem, error)
	CreateItem(item *model.CartItem) error
	UpdateItem(item *model.CartItem) error
	DeleteItem(id uint) (*model.CartItem, error)
	DeleteItemsByCart(cartID uint) (int64, error)

	FindCheckoutLines(cartID uint) ([]model.CheckoutLine, error)
	Stats(userID uint) (*model.CartStats, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

// activeCartQuery picks the newest active cart. Databases migrated before the
// partial unique index existed may still hold several; the latest one wins.
func (r *cartRepository) activeCartQuery(userID uint) *gorm.DB {
	return r.db.Where("usuario_id = ? AND activo = ?", userID, true).
		Order("fecha_creacion DESC").
		Order("id DESC")
}

func (r *cartRepository) FindActive(userID uint) (*model.Cart, error) {
	logger.Debug("Finding active cart", map[string]interface{}{
		"user_id": userID,
	})

	var cart model.Cart
	if err := r.activeCartQuery(userID).Take(&cart).Error; err != nil {
		logQueryError("Failed to find active cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindActiveForUpdate(userID uint) (*model.Cart, error) {
	logger.Debug("Locking active cart", map[string]interface{}{
		"user_id": userID,
	})

	var cart model.Cart
	err := r.activeCartQuery(userID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&cart).Error
	if err != nil {
		logQueryError("Failed to lock active cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return &cart, nil
}

// FindOrCreateActive returns the user's active cart, creating it if needed.
// The insert is ON CONFLICT DO NOTHING against uq_carritos_usuario_activo, so
// a concurrent creator makes this call fall back to re-reading the winner.
func (r *cartRepository) FindOrCreateActive(userID uint) (*model.Cart, error) {
	cart, err := r.FindActive(userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = &model.Cart{UserID: userID, Active: true}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(cart)
	if result.Error != nil {
		logger.Error("Failed to create active cart", result.Error, map[string]interface{}{
			"user_id": userID,
		})
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		logger.Debug("Active cart created concurrently, re-reading", map[string]interface{}{
			"user_id": userID,
		})
		return r.FindActive(userID)
	}

	logger.Info("Active cart created", map[string]interface{}{
		"user_id": userID,
		"cart_id": cart.ID,
	})
	return cart, nil
}

// Deactivate closes an active cart and stores the checkout bookkeeping held in cart.
func (r *cartRepository) Deactivate(cart *model.Cart) error {
	logger.Debug("Deactivating cart", map[string]interface{}{
		"cart_id": cart.ID,
	})

	result := r.db.Model(&model.Cart{}).
		Where("id = ? AND activo = ?", cart.ID, true).
		Updates(map[string]interface{}{
			"activo":            false,
			"fecha_checkout":    cart.CheckedOutAt,
			"total_compra":      cart.Total,
			"referencia":        cart.Reference,
			"direccion_envio":   cart.ShippingAddress,
			"telefono_contacto": cart.ContactPhone,
		})
	if result.Error != nil {
		logger.Error("Failed to deactivate cart", result.Error, map[string]interface{}{
			"cart_id": cart.ID,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	cart.Active = false
	return nil
}

func (r *cartRepository) FindItems(cartID uint) ([]model.CartItem, error) {
	logger.Debug("Finding cart items", map[string]interface{}{
		"cart_id": cartID,
	})

	var items []model.CartItem
	err := r.db.Where("carrito_id = ?", cartID).
		Order("fecha_agregado DESC").
		Order("id DESC").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to find cart items", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return nil, err
	}

	logger.Debug("Cart items found", map[string]interface{}{
		"cart_id": cartID,
		"count":   len(items),
	})
	return items, nil
}

func (r *cartRepository) FindItemByID(id uint) (*model.CartItem, error) {
	var item model.CartItem
	if err := r.db.First(&item, id).Error; err != nil {
		logQueryError("Failed to find cart item", err, map[string]interface{}{
			"cart_item_id": id,
		})
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) FindItemForUpdate(cartID, productID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.Where("carrito_id = ? AND producto_id = ?", cartID, productID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&item).Error
	if err != nil {
		logQueryError("Failed to lock cart item", err, map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) CreateItem(item *model.CartItem) error {
	logger.Debug("Creating cart item", map[string]interface{}{
		"cart_id":    item.CartID,
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
	})

	if err := r.db.Create(item).Error; err != nil {
		logger.Error("Failed to create cart item", err, map[string]interface{}{
			"cart_id":    item.CartID,
			"product_id": item.ProductID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) UpdateItem(item *model.CartItem) error {
	logger.Debug("Updating cart item", map[string]interface{}{
		"cart_item_id": item.ID,
		"quantity":     item.Quantity,
	})

	err := r.db.Model(&model.CartItem{}).Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"cantidad":       item.Quantity,
			"fecha_agregado": item.AddedAt,
		}).Error
	if err != nil {
		logger.Error("Failed to update cart item", err, map[string]interface{}{
			"cart_item_id": item.ID,
		})
		return err
	}
	return nil
}

// DeleteItem removes one line item and returns the row as it was.
func (r *cartRepository) DeleteItem(id uint) (*model.CartItem, error) {
	item, err := r.FindItemByID(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Delete(&model.CartItem{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete cart item", result.Error, map[string]interface{}{
			"cart_item_id": id,
		})
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (r *cartRepository) DeleteItemsByCart(cartID uint) (int64, error) {
	result := r.db.Where("carrito_id = ?", cartID).Delete(&model.CartItem{})
	if result.Error != nil {
		logger.Error("Failed to delete cart items", result.Error, map[string]interface{}{
			"cart_id": cartID,
		})
		return 0, result.Error
	}

	logger.Debug("Cart items deleted", map[string]interface{}{
		"cart_id": cartID,
		"count":   result.RowsAffected,
	})
	return result.RowsAffected, nil
}

// FindCheckoutLines joins the cart's items with the live product rows. Items
// whose product was deleted come back with stock 0 and a nil name.
func (r *cartRepository) FindCheckoutLines(cartID uint) ([]model.CheckoutLine, error) {
	var lines []model.CheckoutLine
	err := r.db.Table("carrito_items AS ci").
		Select("ci.id, ci.producto_id, ci.cantidad, ci.precio_unitario, COALESCE(p.stock, 0) AS stock, p.nombre").
		Joins("LEFT JOIN productos AS p ON p.id = ci.producto_id").
		Where("ci.carrito_id = ?", cartID).
		Order("ci.id ASC").
		Scan(&lines).Error
	if err != nil {
		logger.Error("Failed to load checkout lines", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return nil, err
	}
	return lines, nil
}

const cartStatsSQL = `
SELECT COUNT(*) AS total_items,
       COALESCE(SUM(cantidad), 0) AS total_productos,
       COALESCE(SUM(cantidad * precio_unitario), 0) AS total_valor
FROM carrito_items
WHERE carrito_id = (
    SELECT id FROM carritos
    WHERE usuario_id = ? AND activo = ?
    ORDER BY fecha_creacion DESC, id DESC
    LIMIT 1
)`

// Stats aggregates the user's active cart. A user without one gets zeros.
func (r *cartRepository) Stats(userID uint) (*model.CartStats, error) {
	var stats model.CartStats
	if err := r.db.Raw(cartStatsSQL, userID, true).Scan(&stats).Error; err != nil {
		logger.Error("Failed to compute cart stats", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return &stats, nil
}
