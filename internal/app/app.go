// Package app wires the tile-store daemon: config, store, API routes,
// purge scheduler and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inkwash/pkg/banner"
	"inkwash/pkg/config"
	"inkwash/pkg/logger"
	"inkwash/pkg/store"
)

// App encapsulates the daemon components and lifecycle.
type App struct {
	cfg     *config.Config
	addr    string
	version string

	st  *store.Store
	srv *http.Server
}

// New initializes resources that need no running context: config
// validation and the store. Call Run to serve and block until shutdown.
func New(cfg *config.Config, addr, version string) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Server.DBPath, store.Options{
		TileSize: cfg.Canvas.TileSize,
		MaxInk:   cfg.Canvas.MaxInk,
	})
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Server.DBPath, err)
	}

	return &App{cfg: cfg, addr: addr, version: version, st: st}, nil
}

// Run starts the purge scheduler and the HTTP server, blocking until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	stopPurge, err := purgeStart(ctx, a)
	if err != nil {
		return err
	}
	defer stopPurge()

	errCh, err := a.startHTTP(ctx)
	if err != nil {
		return err
	}

	banner.Print(a.addr, a.cfg.Server.DBPath, a.version)
	logger.Info("daemon_started", "addr", a.addr, "version", a.version,
		"tile_size", a.cfg.Canvas.TileSize, "fade", a.cfg.Canvas.FadeDuration.Duration().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutdownCtx)
		return a.close()
	case err := <-errCh:
		_ = a.close()
		return err
	}
}

func (a *App) close() error {
	return a.st.Close()
}
