package main

import (
	"context"

	"github.com/tiendaweb/tienda-backend/internal/app/controller"
	"github.com/tiendaweb/tienda-backend/internal/app/repository"
	"github.com/tiendaweb/tienda-backend/internal/app/service"
	"github.com/tiendaweb/tienda-backend/internal/db"
	"github.com/tiendaweb/tienda-backend/internal/router"
	"github.com/tiendaweb/tienda-backend/internal/server"
	"github.com/tiendaweb/tienda-backend/internal/storage"
	"github.com/tiendaweb/tienda-backend/pkg/logger"
	"github.com/tiendaweb/tienda-backend/pkg/redis"
)

func main() {
	cfg, redisReady := server.Bootstrap("productos")

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Seed database (optional)
	if err := db.Seed(); err != nil {
		logger.Warn("Failed to seed database", map[string]interface{}{
			"error": err.Error(),
		})
	}

	productRepo := repository.NewProductRepository(db.GetDB())

	var productService service.ProductService
	if redisReady {
		idempotency := redis.NewIdempotencyStore(redis.GetClient(), "idem:stock:", redis.DefaultIdempotencyTTL)
		productService = service.NewProductService(productRepo, idempotency)
	} else {
		logger.Warn("Stock updates are not deduplicated without Redis")
		productService = service.NewProductService(productRepo, nil)
	}

	var productController *controller.ProductController
	if cfg.S3.Bucket != "" {
		images := storage.NewS3Storage(context.Background(), cfg.S3)
		productController = controller.NewProductController(productService, images)
	} else {
		productController = controller.NewProductController(productService, nil)
	}

	engine := router.NewProductsRouter(productController, cfg).Setup()

	server.Run(engine, cfg.Server.ProductsPort)
}
