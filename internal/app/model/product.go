package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"column:nombre;type:varchar(150);not null" json:"nombre"`
	Description string          `gorm:"column:descripcion;type:text" json:"descripcion"`
	Price       decimal.Decimal `gorm:"column:precio;type:numeric(10,2);not null" json:"precio"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Image       *string         `gorm:"column:imagen;type:varchar(500)" json:"imagen"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "productos"
}

// StockOperation is the direction of a stock adjustment on the product directory.
type StockOperation string

const (
	StockSubtract StockOperation = "restar"
	StockAdd      StockOperation = "sumar"
)

func (o StockOperation) Valid() bool {
	return o == StockSubtract || o == StockAdd
}
