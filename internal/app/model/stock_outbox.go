package model

import (
	"time"

	"github.com/lib/pq"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pendiente"
	OutboxSent    OutboxStatus = "enviado"
	OutboxFailed  OutboxStatus = "fallido"
)

// StockOutbox is one stock decrement owed to the product directory, written in
// the same transaction that checks a cart out.
type StockOutbox struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	EventID     string         `gorm:"column:event_id;type:varchar(36);uniqueIndex;not null" json:"event_id"`
	CartID      uint           `gorm:"column:carrito_id;not null;index" json:"carrito_id"`
	ProductID   uint           `gorm:"column:producto_id;not null" json:"producto_id"`
	Quantity    int            `gorm:"column:cantidad;not null" json:"cantidad"`
	Status      OutboxStatus   `gorm:"column:estado;type:varchar(20);not null;index" json:"estado"`
	Attempts    int            `gorm:"column:intentos;not null" json:"intentos"`
	Errors      pq.StringArray `gorm:"column:errores;type:text" json:"errores"`
	ProcessedAt *time.Time     `gorm:"column:procesado_en" json:"procesado_en,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (StockOutbox) TableName() string {
	return "stock_outbox"
}
