// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/lucasmnt/timetree/internal/api"
	"github.com/lucasmnt/timetree/internal/attrs"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/models"
	"github.com/lucasmnt/timetree/internal/sse"
	"github.com/lucasmnt/timetree/internal/storage"
	"github.com/lucasmnt/timetree/internal/timetree"
	"github.com/lucasmnt/timetree/internal/tracker"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("root_note", cfg.Tree.RootNotePath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Initialize storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize SQLite link index.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// Build the tree engine on top of storage and the index.
	attrStore := attrs.NewStore(store)
	engine := timetree.New(db, attrStore, tracker.New(store), timetree.Config{
		RootNote:         cfg.Tree.RootNotePath,
		RootFolder:       cfg.Tree.RootFolderPath,
		ConsiderSubdirs:  cfg.Tree.ConsiderSubdirs,
		OnlyFirstTracker: cfg.Tree.OnlyFirstTracker,
		ChildKey:         cfg.Tree.ChildKey,
	}, logger)

	// Initial recompute so derived attributes are fresh on startup.
	if err := engine.Recompute(ctx); err != nil {
		logger.Warn("initial recompute failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(engine, db, attrStore, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; changed notes get their elapsed time refreshed and
	// propagated, then broadcast over SSE. Attribute writes that change
	// nothing are skipped, so a touch triggered by our own write settles
	// instead of looping.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cfg.Vault.Path, logger, func(kind, path string) {
			if kind == "deleted" {
				broker.Publish(sse.Event{Type: "note.deleted", Data: map[string]string{"path": path}})
				return
			}
			if err := engine.Touch(gCtx, path); err != nil {
				logger.Warn("touch on change failed", slog.String("path", path), slog.String("error", err.Error()))
				return
			}
			own, _ := attrStore.Number(path, models.AttrElapsed)
			childSum, _ := attrStore.Number(path, engine.ChildKey())
			broker.PublishNodeUpdate(path, own, own+childSum)
		})
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Periodic full recompute, when configured.
	if cfg.Tree.ComputeIntervalMinutes > 0 {
		interval := time.Duration(cfg.Tree.ComputeIntervalMinutes) * time.Minute
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if err := engine.Recompute(gCtx); err != nil {
						logger.Warn("periodic recompute failed", slog.String("error", err.Error()))
						continue
					}
					broker.Publish(sse.Event{Type: "tree.updated", Data: map[string]string{}})
				}
			}
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
