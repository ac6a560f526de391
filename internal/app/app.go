// Package app wires configuration, the attribute catalog and the entity
// store together for the commands.
package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalogimport/internal/config"
	"github.com/JonMunkholm/catalogimport/internal/core"
	_ "github.com/JonMunkholm/catalogimport/internal/core/catalog" // built-in attributes
	"github.com/JonMunkholm/catalogimport/internal/logging"
	"github.com/JonMunkholm/catalogimport/internal/store"
)

// App holds the long-lived dependencies of a command.
type App struct {
	Config  *config.Config
	Catalog *core.Catalog
	Opener  core.SessionOpener
	Updater *core.AttributeUpdater

	pool *pgxpool.Pool
}

// New loads the catalog and opens the configured store.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := loadCatalog(cfg.Import)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Catalog: catalog,
		Updater: core.NewAttributeUpdater(catalog, cfg.Import.Strict),
	}

	switch strings.ToLower(cfg.Store.Driver) {
	case config.DriverMemory:
		a.Opener = store.NewMemory(cfg.Import.IdentifierAttribute)
	case config.DriverPostgres:
		if err := a.openPostgres(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logging.FromContext(ctx).Info("store ready",
		"driver", cfg.Store.Driver,
		"attributes", catalog.Len(),
		"identifier", cfg.Import.IdentifierAttribute,
	)
	return a, nil
}

// loadCatalog returns the YAML catalog when one is configured and the
// built-in catalog otherwise. The catalog identifier must match the store's.
func loadCatalog(cfg config.ImportConfig) (*core.Catalog, error) {
	catalog := core.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := core.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		catalog = c
	}

	if id, ok := catalog.Identifier(); ok && id != cfg.IdentifierAttribute {
		return nil, fmt.Errorf("catalog identifier %q does not match IMPORT_IDENTIFIER_ATTRIBUTE %q",
			id, cfg.IdentifierAttribute)
	}
	return catalog, nil
}

func (a *App) openPostgres(ctx context.Context) error {
	db := a.Config.Database
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(db.URL); err == nil {
		logging.FromContext(ctx).Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	pg := store.NewPostgres(pool, a.Config.Import.IdentifierAttribute)
	if a.Config.Store.EnsureSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return err
		}
	}
	a.pool = pool
	a.Opener = pg
	return nil
}

// PipelineConfig returns the run configuration for filePath.
func (a *App) PipelineConfig(filePath string) core.Config {
	return a.Config.PipelineConfig(filePath)
}

// NewRunner creates a background runner over the store.
func (a *App) NewRunner() *core.Runner {
	return core.NewRunner(a.Opener, a.Updater, a.PipelineConfig(""), a.Config.RunnerOptions())
}

// Ping checks the database connection; the memory store is always healthy.
func (a *App) Ping(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
