package main

import (
	"github.com/tiendaweb/tienda-backend/internal/app/controller"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/internal/router"
	"github.com/tiendaweb/tienda-backend/internal/scheduler"
	"github.com/tiendaweb/tienda-backend/internal/server"
	"github.com/tiendaweb/tienda-backend/pkg/catalog"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"github.com/tiendaweb/tienda-backend/pkg/redis"
	"github.com/tiendaweb/tienda-backend/pkg/util"
)

func main() {
	cfg, redisReady := server.Bootstrap("carrito")

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	catalogConfig := catalog.Config{
		BaseURL: cfg.Services.ProductsURL,
		Timeout: cfg.Services.RequestTimeout,
	}
	var productCatalog *catalog.Client
	var err error
	if redisReady {
		cache := redis.NewCache(redis.GetClient(), "catalog:", cfg.Services.ProductCacheTTL)
		productCatalog, err = catalog.NewClient(catalogConfig, cache)
	} else {
		productCatalog, err = catalog.NewClient(catalogConfig, nil)
	}
	if err != nil {
		logger.Fatal("Failed to create product directory client", err)
	}

	newRef, err := util.NewReferenceGenerator()
	if err != nil {
		logger.Fatal("Failed to create reference generator", err)
	}

	cartRepo := repository.NewCartRepository(db.GetDB())
	outboxRepo := repository.NewOutboxRepository(db.GetDB())

	dispatcher := service.NewStockDispatcher(outboxRepo, productCatalog, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)
	cartService := service.NewCartService(db.GetDB(), cartRepo, outboxRepo, productCatalog, dispatcher, newRef)

	relay := scheduler.NewOutboxRelayScheduler(dispatcher, cfg.Outbox.RelaySpec)
	if err := relay.Start(); err != nil {
		logger.Fatal("Failed to start outbox relay", err)
	}

	cartController := controller.NewCartController(cartService)
	engine := router.NewCartRouter(cartController, cfg).Setup()

	server.Run(engine, cfg.Server.CartPort, server.Step{Name: "outbox-relay", Op: relay.Stop})
}
