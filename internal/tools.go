package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/lucasmnt/timetree/internal/attrs"
	"github.com/lucasmnt/timetree/internal/index"
	"github.com/lucasmnt/timetree/internal/mcpserver"
	"github.com/lucasmnt/timetree/internal/storage"
	"github.com/lucasmnt/timetree/internal/timetree"
	"github.com/lucasmnt/timetree/internal/tracker"
)

// core bundles the components shared by the one-shot commands and the MCP
// server: vault storage, the link index, and the tree engine.
type core struct {
	store  storage.Provider
	db     *index.DB
	engine *timetree.Engine
}

func buildCore(cfg *Config, logger *slog.Logger) (*core, func(), error) {
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sync index: %w", err)
	}

	engine := timetree.New(db, attrs.NewStore(store), tracker.New(store), timetree.Config{
		RootNote:         cfg.Tree.RootNotePath,
		RootFolder:       cfg.Tree.RootFolderPath,
		ConsiderSubdirs:  cfg.Tree.ConsiderSubdirs,
		OnlyFirstTracker: cfg.Tree.OnlyFirstTracker,
		ChildKey:         cfg.Tree.ChildKey,
	}, logger)

	return &core{store: store, db: db, engine: engine}, func() { db.Close() }, nil
}

func toolLogger(cfg *Config) *slog.Logger {
	// One-shot commands log to stderr so stdout stays clean for output,
	// which also matters for the MCP stdio transport.
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// RunMCP starts the MCP server on stdin/stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := toolLogger(app.config)
	c, cleanup, err := buildCore(app.config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return mcpserver.New(c.store, c.db, c.engine).ServeStdio()
}

// RunRecompute performs a one-shot full tree recompute.
func RunRecompute(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := toolLogger(app.config)
	c, cleanup, err := buildCore(app.config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := c.engine.Recompute(ctx); err != nil {
		return fmt.Errorf("recompute: %w", err)
	}
	fmt.Println("time tree recomputed")
	return nil
}

// RunSummary prints a note's stored time attributes as JSON plus a
// human-readable elapsed line.
func RunSummary(ctx context.Context, path string, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	logger := toolLogger(app.config)
	c, cleanup, err := buildCore(app.config, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	summary, err := c.engine.Summarize(ctx, path)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", path, err)
	}
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Printf("total tracked: %s\n", timetree.FormatElapsed(summary.Accumulated))
	return nil
}
