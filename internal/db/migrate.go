package db

import (
	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
)

// ActiveCartIndexSQL keeps at most one active cart per user.
const ActiveCartIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS uq_carritos_usuario_activo ON carritos (usuario_id) WHERE activo = true`

// PendingOutboxIndexSQL speeds up the relay's scan of undelivered stock events.
const PendingOutboxIndexSQL = `CREATE INDEX IF NOT EXISTS idx_stock_outbox_pendiente ON stock_outbox (created_at) WHERE estado = 'pendiente'`

// Models lists every table owned by the backend.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.StockOutbox{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := EnsureIndexes(DB); err != nil {
		logger.Error("Failed to create partial indexes", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// EnsureIndexes creates the partial indexes AutoMigrate cannot express.
// Existing duplicate active carts make the unique index fail; deactivate the
// older rows before migrating.
func EnsureIndexes(db *gorm.DB) error {
	for _, stmt := range []string{ActiveCartIndexSQL, PendingOutboxIndexSQL} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Seed inserts a small sample catalog when productos is empty.
func Seed() error {
	return seedProducts(DB)
}

func seedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Product{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		logger.Info("Products already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	products := []model.Product{
		{Name: "Camiseta básica", Description: "Camiseta de algodón unisex", Price: decimal.RequireFromString("10.00"), Stock: 50},
		{Name: "Taza cerámica", Description: "Taza de 350 ml", Price: decimal.RequireFromString("5.50"), Stock: 120},
		{Name: "Mochila urbana", Description: "Mochila de 20 litros", Price: decimal.RequireFromString("39.90"), Stock: 15},
		{Name: "Auriculares", Description: "Auriculares inalámbricos", Price: decimal.RequireFromString("59.99"), Stock: 8},
	}

	if err := db.Create(&products).Error; err != nil {
		logger.Error("Failed to seed products", err)
		return err
	}

	logger.Info("Products seeded successfully", map[string]interface{}{
		"total_products": len(products),
	})
	return nil
}
