/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cellar inventory engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and CELLAR_* environment variables
  2. Build the structured logger
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

CONFIGURATION:
  CELLAR_APP_PORT          HTTP server port (default: 8080)
  CELLAR_DB_PATH           SQLite database path (default: ./data/cellar.db)
                           Use ":memory:" for an in-memory database
  CELLAR_LOG_LEVEL         debug|info|warn|error (default: info)
  CELLAR_LOG_FORMAT        json|console (default: json)
  CELLAR_SHUTDOWN_TIMEOUT  Drain timeout on SIGINT/SIGTERM (default: 10s)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (shutdown timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment knobs
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vintry/cellar-engine/api"
	"github.com/vintry/cellar-engine/config"
	"github.com/vintry/cellar-engine/logger"
	"github.com/vintry/cellar-engine/store/sqlite"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		ServiceName: "cellar-engine",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		log.Error(ctx, "failed to initialize database", err)
		os.Exit(1)
	}
	defer store.Close()

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		log.Info(log.WithField(ctx, "addr", server.Addr), "server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", err)
		os.Exit(1)
	}

	log.Info(ctx, "server stopped")
}
