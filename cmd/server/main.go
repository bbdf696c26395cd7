/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the storefront backend. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Parse command-line flags (flags override environment)
  3. Initialize zap logger
  4. Initialize SQLite store and seed the launch catalog
  5. Construct the checkout engine and API handler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: PORT env or 8000)
  -db      SQLite database path (default: DATABASE_PATH env or storefront.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  APP_ENV, PORT, DATABASE_PATH, SEED_ON_START, ALLOWED_ORIGINS,
  LOGGER_LEVEL, LOGGER_ENCODING. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mandorla/storefront/api"
	"github.com/mandorla/storefront/checkout"
	"github.com/mandorla/storefront/config"
	"github.com/mandorla/storefront/store/sqlite"
)

func main() {
	_ = godotenv.Load() // .env is optional
	cfg := config.Load()

	// Flags override environment for local runs.
	port := flag.Int("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if cfg.DB.SeedOnStart {
		seeded, err := store.Seed(context.Background())
		if err != nil {
			logger.Fatal("failed to seed catalog", zap.Error(err))
		}
		if seeded > 0 {
			logger.Info("seeded launch catalog", zap.Int("products", seeded))
		}
	}

	// Wire dependencies
	engine := checkout.NewEngine(store, logger)
	handler := api.NewHandler(store, engine, logger)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", *port),
			zap.String("db", *dbPath),
			zap.String("env", cfg.Server.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
