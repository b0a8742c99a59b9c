/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the SIM inventory server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment), then apply command-line flags
  2. Build the logger
  3. Open the store (SQLite or MySQL) and migrate the schema
  4. Connect Redis when configured (summary cache, import lock)
  5. Create service, importer, handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port
  -db      SQLite database path; ":memory:" for an in-memory database
  -redis   Redis address; empty disables cache and lock

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Redis and the database
  4. Exit

EXAMPLES:
  ./server -db="./data/simcard.db"
  DB_TYPE=mysql DB_DSN="sim:secret@tcp(localhost:3306)/inventory" ./server
  ./server -port=3000 -redis=localhost:6379

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlstore/store.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/sim-inventory/api"
	"github.com/warp/sim-inventory/cache"
	"github.com/warp/sim-inventory/config"
	"github.com/warp/sim-inventory/inventory"
	"github.com/warp/sim-inventory/inventory/importer"
	"github.com/warp/sim-inventory/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "Redis address (empty disables cache and import lock)")
	flag.Parse()

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logger configuration: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server failed")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	// Initialize store
	var (
		store *sqlstore.Store
		err   error
	)
	switch cfg.DBType {
	case sqlstore.DriverMySQL:
		store, err = sqlstore.NewMySQL(cfg.DBDSN)
	default:
		store, err = sqlstore.NewSQLite(cfg.DBPath)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	svcOpts := []inventory.Option{inventory.WithLogger(logger)}
	var impOpts []importer.Option

	if cfg.RedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			// The cache and lock are optional; keep serving without them.
			logger.WithError(err).Warn("redis unavailable, summary cache and import lock disabled")
		} else {
			defer rdb.Close()
			svcOpts = append(svcOpts, inventory.WithSummaryCache(cache.NewSummaryCache(rdb, cfg.SummaryCacheTTL)))
			impOpts = append(impOpts, importer.WithLocker(cache.NewImportLock(rdb, cfg.ImportLockTTL)))
			logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
		}
	}

	svc := inventory.NewService(store, svcOpts...)
	handler := api.NewHandler(svc, importer.New(svc, impOpts...), cfg.ImportMaxBytes)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.CORSOrigins})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.Port,
			"db_type": store.Dialect(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
