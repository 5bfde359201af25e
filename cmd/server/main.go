// Package main is the entry point for the retailcore API server.
// With a database configured it runs as a shared backend; without one it
// runs as a standalone terminal on the in-memory store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"retailcore/internal/config"
	"retailcore/internal/domain/auth"
	"retailcore/internal/domain/catalog"
	"retailcore/internal/domain/ledger"
	"retailcore/internal/domain/sale"
	v1 "retailcore/internal/infrastructure/http/v1"
	"retailcore/internal/infrastructure/storage/idempotency"
	"retailcore/internal/infrastructure/storage/memory"
	"retailcore/internal/infrastructure/storage/postgres"
	"retailcore/internal/infrastructure/storage/postgres/auth_repo"
	redisstore "retailcore/internal/infrastructure/storage/redis"
	"retailcore/pkg/logger"
)

const idempotencyTTL = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting retailcore server")

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtConfig.Issuer = cfg.JWT.Issuer
	}
	if cfg.JWT.AccessTokenTTL > 0 {
		jwtConfig.AccessTokenTTL = cfg.JWT.AccessTokenTTL
	}
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Storage ---
	var (
		pool          *postgres.Pool
		catalogReader catalog.Reader
		ledgerRepo    ledger.Repository
		soldReader    ledger.SoldReader
		ledgerLocker  ledger.Locker
		archive       ledger.Archiver
		saleRepo      sale.Repository
		saleLocker    sale.Locker
		userRepo      auth.UserRepository
		tokenRepo     auth.TokenRepository
		idemStore     idempotency.Store
	)

	dsn := cfg.DB.ConnectionString()
	if dsn != "" {
		pool, err = postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		txManager := postgres.NewTxManager(pool)
		locker := postgres.NewProductLocker(txManager)

		entryArchive, err := postgres.NewEntryArchive(txManager)
		if err != nil {
			log.Fatalw("failed to initialize entry archive", "error", err)
		}

		catalogReader = postgres.NewCatalogRepo(txManager)
		ledgerRepo = postgres.NewLedgerRepo(txManager)
		sr := postgres.NewSaleRepo(txManager)
		saleRepo = sr
		soldReader = sr
		ledgerLocker = locker
		saleLocker = locker
		archive = entryArchive
		userRepo = auth_repo.NewUserRepo(txManager)
		tokenRepo = auth_repo.NewTokenRepo(txManager)

		if cfg.Redis.Addr != "" {
			client := goredis.NewClient(&goredis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				log.Fatalw("failed to connect to redis", "error", err)
			}
			idemStore = redisstore.NewIdempotencyStore(client, idempotencyTTL)
			log.Info("idempotency store: redis")
		} else {
			idemStore = postgres.NewIdempotencyStore(txManager, idempotencyTTL)
			log.Info("idempotency store: postgres")
		}
	} else {
		store := memory.NewStore()
		catalogReader = store
		ledgerRepo = store
		soldReader = store
		ledgerLocker = store
		saleRepo = store
		saleLocker = store
		userRepo = store
		tokenRepo = store

		seedAdmin(ctx, store, log)
		log.Warn("no database configured, running standalone on the in-memory store")
	}

	// --- Services ---
	authService := auth.NewService(userRepo, tokenRepo, jwtService, auth.DefaultServiceConfig())
	ledgerService := ledger.NewService(catalogReader, ledgerRepo, soldReader, ledgerLocker, archive)
	saleService := sale.NewService(catalogReader, ledgerService, saleRepo, saleLocker)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:             pool,
		Logger:           log,
		JWTValidator:     jwtService,
		AuthService:      authService,
		CatalogReader:    catalogReader,
		LedgerService:    ledgerService,
		SaleService:      saleService,
		IdempotencyStore: idemStore,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// seedAdmin creates the default administrator account for standalone mode so
// the terminal is usable out of the box. The password must be changed on
// first login.
func seedAdmin(ctx context.Context, store *memory.Store, log *logger.Logger) {
	password := os.Getenv("RETAILCORE_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalw("failed to hash admin password", "error", err)
	}

	admin := auth.NewUser("admin", string(hash), []string{auth.RoleOperator, auth.RoleAdmin})
	admin.DisplayName = "Administrator"
	if err := store.Create(ctx, admin); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}
	log.Warnw("seeded default admin user", "username", "admin")
}
