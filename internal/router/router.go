package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tiendaweb/tienda-backend/config"
	"github.com/tiendaweb/tienda-backend/internal/app/controller"
	"github.com/tiendaweb/tienda-backend/internal/middleware"
)

// GatewayRouter serves users and the dashboard.
type GatewayRouter struct {
	userController      *controller.UserController
	dashboardController *controller.DashboardController
	authMiddleware      *middleware.AuthMiddleware
	config              *config.Config
}

func NewGatewayRouter(
	userController *controller.UserController,
	dashboardController *controller.DashboardController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *GatewayRouter {
	return &GatewayRouter{
		userController:      userController,
		dashboardController: dashboardController,
		authMiddleware:      authMiddleware,
		config:              cfg,
	}
}

func (r *GatewayRouter) Setup() *gin.Engine {
	router := newEngine(r.config)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "gateway",
			"status":  "healthy",
		})
	})

	api := router.Group("/api")
	{
		users := api.Group("/usuarios")
		{
			users.POST("", r.userController.Register)
			users.GET("", r.userController.ListUsers)
			users.POST("/login", r.userController.Login)
			users.POST("/logout", r.authMiddleware.Authenticate(), r.userController.Logout)
			users.GET("/perfil", r.authMiddleware.Authenticate(), r.userController.GetProfile)
			users.PUT("/:id", r.userController.UpdateUser)
			users.DELETE("/:id", r.userController.DeleteUser)
		}

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("/stats", r.dashboardController.GetStats)
			dashboard.GET("/ws", r.authMiddleware.Authenticate(), r.dashboardController.StreamStats)
		}
	}

	return router
}

// ProductsRouter serves the product directory.
type ProductsRouter struct {
	productController *controller.ProductController
	config            *config.Config
}

func NewProductsRouter(productController *controller.ProductController, cfg *config.Config) *ProductsRouter {
	return &ProductsRouter{
		productController: productController,
		config:            cfg,
	}
}

func (r *ProductsRouter) Setup() *gin.Engine {
	router := newEngine(r.config)

	router.GET("/health", r.productController.Health)

	products := router.Group("/api/productos")
	{
		products.GET("", r.productController.GetAllProducts)
		products.GET("/exportar", r.productController.ExportProducts)
		products.POST("/imagen", r.productController.PresignImage)
		products.GET("/:id", r.productController.GetProductByID)
		products.POST("", r.productController.CreateProduct)
		products.PUT("/:id", r.productController.UpdateProduct)
		products.DELETE("/:id", r.productController.DeleteProduct)
		products.PUT("/:id/stock", r.productController.UpdateStock)
	}

	return router
}

// CartRouter serves the cart service. :id is a user id on cart-level routes
// and an item id on item-level routes.
type CartRouter struct {
	cartController *controller.CartController
	config         *config.Config
}

func NewCartRouter(cartController *controller.CartController, cfg *config.Config) *CartRouter {
	return &CartRouter{
		cartController: cartController,
		config:         cfg,
	}
}

func (r *CartRouter) Setup() *gin.Engine {
	router := newEngine(r.config)

	router.GET("/health", r.cartController.Health)

	cart := router.Group("/api/carrito")
	{
		cart.POST("", r.cartController.AddToCart)
		cart.GET("/:id", r.cartController.GetCart)
		cart.PUT("/:id", r.cartController.UpdateCartItem)
		cart.DELETE("/:id", r.cartController.RemoveFromCart)
		cart.DELETE("/:id/vaciar", r.cartController.ClearCart)
		cart.POST("/:id/checkout", r.cartController.Checkout)
		cart.GET("/:id/stats", r.cartController.GetStats)
	}

	return router
}

func newEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	return router
}
