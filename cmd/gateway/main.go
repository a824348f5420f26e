package main

import (
	"context"

	"github.com/tiendaweb/tienda-backend/internal/app/controller"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
	"github.com/tiendaweb/tienda-backend/internal/router"
	"github.com/tiendaweb/tienda-backend/internal/server"
	ws "github.com/tiendaweb/tienda-backend/internal/websocket"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"github.com/tiendaweb/tienda-backend/pkg/redis"
)

func main() {
	cfg, redisReady := server.Bootstrap("gateway")

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	dashboardRepo := repository.NewDashboardRepository(db.GetDB())

	// Token revocation needs Redis; without it logout is unavailable.
	var userService service.UserService
	var authMiddleware *middleware.AuthMiddleware
	if redisReady {
		blacklist := redis.NewTokenBlacklist(redis.GetClient())
		userService = service.NewUserService(userRepo, blacklist, cfg.JWT.Secret, cfg.JWT.Expiry)
		authMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret, blacklist)
	} else {
		userService = service.NewUserService(userRepo, nil, cfg.JWT.Secret, cfg.JWT.Expiry)
		authMiddleware = middleware.NewAuthMiddleware(cfg.JWT.Secret, nil)
	}
	dashboardService := service.NewDashboardService(dashboardRepo)

	// Live dashboard
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := ws.NewHub(func() (interface{}, error) {
		return dashboardService.Stats()
	})
	go hub.Run(hubCtx)
	go hub.PushEvery(hubCtx, cfg.Dashboard.PushInterval)

	// Initialize controllers
	userController := controller.NewUserController(userService)
	dashboardController := controller.NewDashboardController(dashboardService, hub, cfg.CORS.AllowedOrigins)

	engine := router.NewGatewayRouter(userController, dashboardController, authMiddleware, cfg).Setup()

	server.Run(engine, cfg.Server.GatewayPort, server.Step{
		Name: "websocket-hub",
		Op: func(ctx context.Context) error {
			stopHub()
			return nil
		},
	})
}
