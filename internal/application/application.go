// Package application wires configuration into a running inventory: it opens
// the configured store, loads the vocabulary override and builds the service
// shared by the HTTP server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/siteinventory/internal/config"
	"github.com/JonMunkholm/siteinventory/internal/core"
	"github.com/JonMunkholm/siteinventory/internal/store/memstore"
	"github.com/JonMunkholm/siteinventory/internal/store/postgres"
	"github.com/JonMunkholm/siteinventory/internal/store/sqlite"
)

// App is an opened store plus the service built on it.
type App struct {
	Store   core.Store
	Service *core.Service
}

// New opens the store selected by cfg.Storage and builds the service with the
// import and paging limits from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...core.Option) (*App, error) {
	if cfg.Inventory.VocabularyFile != "" {
		vocab, err := core.LoadVocabulary(cfg.Inventory.VocabularyFile)
		if err != nil {
			return nil, err
		}
		core.SetVocabulary(vocab)
		slog.Info("vocabulary loaded", "file", cfg.Inventory.VocabularyFile)
	}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	base := []core.Option{
		core.WithImportLimiter(core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)),
		core.WithMaxRows(cfg.Import.MaxRows),
		core.WithImportTimeout(cfg.Import.Timeout),
		core.WithPageSizes(cfg.Inventory.DefaultPageSize, cfg.Inventory.MaxPageSize),
	}
	svc := core.NewService(store, append(base, opts...)...)

	return &App{Store: store, Service: svc}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (core.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, cfg.URL, postgres.PoolOptions{
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("connected to database", "backend", cfg.Backend, "name", databaseName(cfg.URL))
		return store, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("opened database", "backend", cfg.Backend, "path", cfg.SQLitePath)
		return store, nil

	case config.BackendMemory:
		slog.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// databaseName extracts the database name from a connection URL for logging,
// never the credentials.
func databaseName(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
