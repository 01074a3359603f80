package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mataresit/embedq/internal/config"
	"github.com/mataresit/embedq/internal/generation"
	"github.com/mataresit/embedq/internal/platform/gemini"
	"github.com/mataresit/embedq/internal/platform/logger"
	"github.com/mataresit/embedq/internal/platform/postgres"
	"github.com/mataresit/embedq/internal/queue"
	"github.com/mataresit/embedq/internal/store"
)

// application holds the wired dependencies for one worker process.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	queueStore store.QueueStore
	embedder   generation.Embedder
	pool       *queue.WorkerPool
	server     *http.Server
}

// newApplication loads configuration and wires every component: logging,
// database, queue store, embedder, worker pool, and the HTTP surface.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Worker configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Queue.WorkerCount,
		"batch_size", cfg.Queue.BatchSize)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	queueStore := postgres.NewPostgresQueueStore(db)

	embedder, err := gemini.NewGeminiEmbedder(ctx, appLogger, cfg.LLM)
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			appLogger.Warn("failed to close database", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	pool, err := queue.NewWorkerPool(queueStore, embedder, queue.ConfigFromApp(cfg.Queue), appLogger)
	if err != nil {
		closeErr := db.Close()
		if closeErr != nil {
			appLogger.Warn("failed to close database", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	app := &application{
		config:     cfg,
		logger:     appLogger,
		db:         db,
		queueStore: queueStore,
		embedder:   embedder,
		pool:       pool,
	}
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return app, nil
}

// Migrate applies pending database migrations.
func (a *application) Migrate(ctx context.Context) error {
	return runMigrations(ctx, a.db, a.logger)
}

// Run starts the HTTP surface and the worker pool, then blocks until the
// context is cancelled or the pool stops on a fatal store error. Shutdown
// is graceful: in-flight items finish their completion call, claimed but
// unprocessed items are left for lease reclaim.
func (a *application) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	poolDone := make(chan *queue.RunResult, 1)
	go func() {
		poolDone <- a.pool.Run(runCtx, 0)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
		cancel()
		<-poolDone
	case result := <-poolDone:
		if result.Err != nil {
			runErr = fmt.Errorf("worker pool stopped: %w", result.Err)
		}
		a.logger.Info("worker pool exited",
			"items_processed", result.ItemsProcessed,
			"items_failed", result.ItemsFailed,
			"elapsed", result.Elapsed)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		cancel()
		result := <-poolDone
		a.logger.Info("worker pool drained",
			"items_processed", result.ItemsProcessed,
			"items_failed", result.ItemsFailed)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown failed", "error", err)
	}

	return runErr
}

// Close releases process resources.
func (a *application) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
