// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"retailcore/internal/domain/auth"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/sale"
	"retailcore/internal/infrastructure/http/v1/handlers"
	"retailcore/internal/infrastructure/http/v1/middleware"
	"retailcore/internal/infrastructure/storage/idempotency"
	"retailcore/internal/infrastructure/storage/postgres"
	"retailcore/pkg/logger"
)

// RouterConfig holds everything the router needs wired up.
type RouterConfig struct {
	// Pool is the database connection pool. Nil when running on the
	// in-memory store (standalone terminal mode).
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	AuthService   *auth.Service
	CatalogReader catalog.Reader
	LedgerService *ledger.Service
	SaleService   *sale.Service

	// IdempotencyStore enables request replay protection on mutating
	// endpoints. Nil disables the middleware.
	IdempotencyStore idempotency.Store
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	authHandler := handlers.NewAuthHandler(cfg.AuthService)

	// API v1
	api := router.Group("/api/v1")
	{
		// Public auth endpoints
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)

		// Everything else requires a valid token
		protected := api.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.IdempotencyStore != nil {
			protected.Use(middleware.Idempotency(cfg.IdempotencyStore))
		}

		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/register", middleware.RequireRole(auth.RoleAdmin), authHandler.Register)

		registerCatalogRoutes(protected, cfg)
		registerLedgerRoutes(protected, cfg)
		registerSaleRoutes(protected, cfg)
	}

	return router
}

// registerCatalogRoutes registers product lookup endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewCatalogHandler(cfg.CatalogReader)

	products := rg.Group("/products")
	{
		products.GET("", handler.List)
		products.GET("/:id", handler.Get)
		products.GET("/barcode/:code", handler.GetByBarcode)
	}
}

// registerLedgerRoutes registers inventory ledger endpoints.
func registerLedgerRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewLedgerHandler(cfg.LedgerService)

	products := rg.Group("/products/:id")
	{
		products.POST("/conferences", handler.RegisterConference)
		products.POST("/losses", handler.RegisterLoss)
		products.GET("/aggregates", handler.GetAggregates)
		products.GET("/entries", handler.ListEntries)
	}

	// Entry deletion is an administrative reversal
	rg.DELETE("/entries/:id", middleware.RequireRole(auth.RoleAdmin), handler.DeleteEntry)
}

// registerSaleRoutes registers cart and settlement endpoints.
func registerSaleRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewSaleHandler(cfg.SaleService)

	carts := rg.Group("/carts")
	{
		carts.POST("", handler.OpenCart)
		carts.GET("/:id", handler.GetCart)
		carts.DELETE("/:id", handler.Abandon)
		carts.POST("/:id/lines", handler.AddLine)
		carts.PUT("/:id/lines/:productId", handler.UpdateLine)
		carts.DELETE("/:id/lines/:productId", handler.RemoveLine)
		carts.PUT("/:id/discount", handler.SetDiscount)
		carts.PUT("/:id/customer", handler.AttachCustomer)
		carts.POST("/:id/commit", handler.Commit)
	}

	rg.GET("/sales/:id", handler.GetTransaction)
}
