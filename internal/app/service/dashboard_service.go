package service

import (
	"time"

	"github.com/tiendaweb/tienda-backend/internal/app/repository"
)

// DashboardStats is the gateway's summary payload.
type DashboardStats struct {
	TotalUsers   int64   `json:"usuarios_totales"`
	TotalRevenue float64 `json:"ingresos_totales"`
	ActiveToday  int64   `json:"activos_hoy"`
}

type DashboardService interface {
	Stats() (*DashboardStats, error)
}

type dashboardService struct {
	repo repository.DashboardRepository
	now  func() time.Time
}

func NewDashboardService(repo repository.DashboardRepository) DashboardService {
	return &dashboardService{repo: repo, now: time.Now}
}

// Stats counts users, sums checked-out cart totals and counts distinct users
// who opened a cart since local midnight.
func (s *dashboardService) Stats() (*DashboardStats, error) {
	users, err := s.repo.CountUsers()
	if err != nil {
		return nil, err
	}

	revenue, err := s.repo.TotalRevenue()
	if err != nil {
		return nil, err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	active, err := s.repo.CountShoppersSince(midnight)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		TotalUsers:   users,
		TotalRevenue: revenue.Round(2).InexactFloat64(),
		ActiveToday:  active,
	}, nil
}
