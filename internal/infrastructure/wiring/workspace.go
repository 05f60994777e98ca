package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/waypoint/internal/infrastructure/config"
	"github.com/felixgeelhaar/waypoint/pkg/cache"
	"github.com/felixgeelhaar/waypoint/pkg/storage/sqlite"
)

// Workspace bundles the storage and cache a handler works against.
type Workspace struct {
	Store *sqlite.Store
	Cache *cache.TaskCache
}

// OpenWorkspace opens and migrates the database described by cfg.
func OpenWorkspace(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Workspace, error) {
	store := sqlite.New(cfg.StoreConfig(), sqlite.WithLogger(logger))
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("open task store: %w", err)
	}
	return &Workspace{
		Store: store,
		Cache: cache.New(cache.WithTTL(cfg.Cache.TTL)),
	}, nil
}

// Close releases the database. Closing twice is harmless.
func (w *Workspace) Close() error {
	return w.Store.Close()
}
