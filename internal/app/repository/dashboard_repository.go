package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tiendaweb/tienda-backend/internal/app/model"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"gorm.io/gorm"
)

type DashboardRepository interface {
	CountUsers() (int64, error)
	TotalRevenue() (decimal.Decimal, error)
	CountShoppersSince(since time.Time) (int64, error)
}

type dashboardRepository struct {
	db *gorm.DB
}

func NewDashboardRepository(db *gorm.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

func (r *dashboardRepository) CountUsers() (int64, error) {
	var count int64
	if err := r.db.Model(&model.User{}).Count(&count).Error; err != nil {
		logger.Error("Failed to count users", err)
		return 0, err
	}
	return count, nil
}

// TotalRevenue sums total_compra over every checked-out cart.
func (r *dashboardRepository) TotalRevenue() (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.Model(&model.Cart{}).
		Select("COALESCE(SUM(total_compra), 0)").
		Where("activo = ?", false).
		Row().
		Scan(&total)
	if err != nil {
		logger.Error("Failed to sum revenue", err)
		return decimal.Zero, err
	}
	return total, nil
}

// CountShoppersSince counts distinct users with a cart created at or after since.
func (r *dashboardRepository) CountShoppersSince(since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&model.Cart{}).
		Where("fecha_creacion >= ?", since).
		Distinct("usuario_id").
		Count(&count).Error
	if err != nil {
		logger.Error("Failed to count active shoppers", err, map[string]interface{}{
			"since": since,
		})
		return 0, err
	}
	return count, nil
}
