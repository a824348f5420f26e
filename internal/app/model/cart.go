package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is a user's shopping cart. Only one row per user may be active; it is
// deactivated, never deleted, at checkout.
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"column:usuario_id;not null;index" json:"usuario_id"`
	Active    bool      `gorm:"column:activo;not null" json:"activo"`
	CreatedAt time.Time `gorm:"column:fecha_creacion;autoCreateTime" json:"fecha_creacion"`

	// Filled in at checkout.
	CheckedOutAt    *time.Time          `gorm:"column:fecha_checkout" json:"fecha_checkout,omitempty"`
	Total           decimal.NullDecimal `gorm:"column:total_compra;type:numeric(12,2)" json:"total_compra,omitempty"`
	Reference       string              `gorm:"column:referencia;type:varchar(32)" json:"referencia,omitempty"`
	ShippingAddress string              `gorm:"column:direccion_envio;type:varchar(255)" json:"direccion_envio,omitempty"`
	ContactPhone    string              `gorm:"column:telefono_contacto;type:varchar(50)" json:"telefono_contacto,omitempty"`
}

func (Cart) TableName() string {
	return "carritos"
}

// CartItem is a line item. (carrito_id, producto_id) is unique: adding the
// same product again merges quantities.
type CartItem struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CartID    uint            `gorm:"column:carrito_id;not null;uniqueIndex:uq_carrito_items_carrito_producto" json:"carrito_id"`
	ProductID uint            `gorm:"column:producto_id;not null;uniqueIndex:uq_carrito_items_carrito_producto" json:"producto_id"`
	Quantity  int             `gorm:"column:cantidad;not null" json:"cantidad"`
	UnitPrice decimal.Decimal `gorm:"column:precio_unitario;type:numeric(10,2);not null" json:"precio_unitario"`
	AddedAt   time.Time       `gorm:"column:fecha_agregado;autoCreateTime" json:"fecha_agregado"`
}

func (CartItem) TableName() string {
	return "carrito_items"
}

// Subtotal is unit price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutLine is a cart item joined with the product's current stock and name.
// ProductName is nil when the product no longer exists.
type CheckoutLine struct {
	ItemID      uint            `gorm:"column:id"`
	ProductID   uint            `gorm:"column:producto_id"`
	Quantity    int             `gorm:"column:cantidad"`
	UnitPrice   decimal.Decimal `gorm:"column:precio_unitario"`
	Stock       int             `gorm:"column:stock"`
	ProductName *string         `gorm:"column:nombre"`
}

// CartStats aggregates the active cart of one user.
type CartStats struct {
	TotalItems    int64           `gorm:"column:total_items"`
	TotalQuantity int64           `gorm:"column:total_productos"`
	TotalValue    decimal.Decimal `gorm:"column:total_valor"`
}
