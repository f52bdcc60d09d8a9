/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the activity engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize structured logger
  3. Initialize SQLite store and seed default activity types
  4. Connect optional Redis leaderboard cache
  5. Create API handler, metrics collector, and router
  6. Start server with graceful shutdown, optionally with the
     auto-close scheduler

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: activity.db)
              Use ":memory:" for in-memory database
  -autoclose  Enable the background biweekly auto-close scheduler
              (default: false)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler if running
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

ENVIRONMENT:
  REDIS_ADDR  Address of a Redis instance for the live leaderboard
              cache (e.g. "localhost:6379"). When unset, the cache is
              disabled and the leaderboard is served from SQLite.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/apex/activity-engine/api"
	"github.com/apex/activity-engine/cache"
	"github.com/apex/activity-engine/engine"
	"github.com/apex/activity-engine/metrics"
	"github.com/apex/activity-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "activity.db", "SQLite database path")
	autoClose := flag.Bool("autoclose", false, "enable automatic biweekly period closing")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if err := seedActivityTypes(context.Background(), store); err != nil {
		logger.Fatal("failed to seed activity types", zap.Error(err))
	}

	// Optional Redis-backed live leaderboard
	var redisClient *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, live leaderboard cache disabled",
				zap.String("addr", addr), zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("live leaderboard cache enabled", zap.String("addr", addr))
		}
	}

	// Initialize handler
	handler := api.NewHandler(store, store, store, logger)
	handler.Live = cache.New(redisClient, logger)
	handler.Metrics = metrics.NewCollector()

	router := api.NewRouter(handler, logger)

	var scheduler *api.AutoCloseScheduler
	if *autoClose {
		scheduler = api.NewAutoCloseScheduler(handler.Closer, logger)
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.Int("port", *port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// seedActivityTypes installs the default activity catalog. Upserts, so
// restarting the server never duplicates or resets manual edits to
// other columns.
func seedActivityTypes(ctx context.Context, store *sqlite.Store) error {
	defaults := []engine.ActivityType{
		{ID: "commit", Name: "Commit", Points: 5},
		{ID: "sprint", Name: "Sprint", Points: 10},
		{ID: "early", Name: "Early", Points: 3},
		{ID: "system", Name: "System", Points: 8},
	}
	for _, t := range defaults {
		if err := store.SaveActivityType(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
