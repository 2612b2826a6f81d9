// Package sweep runs the periodic, best-effort eviction pass: while tiles
// are loaded it asks the store to drop strokes older than the fade window
// from each of them. This is advisory tidying only; rendering already hides
// expired strokes via opacity whether or not a sweep has run.
package sweep

import (
	"context"
	"sync"
	"time"

	"inkwash/pkg/logger"
	"inkwash/pkg/remote"
	"inkwash/pkg/tilemap"
)

// Sweeper tends the currently marked tile set on a fixed interval.
type Sweeper struct {
	adapter  remote.Adapter
	maxAge   time.Duration
	interval time.Duration

	mu    sync.Mutex
	tiles []tilemap.TileID
}

// New builds a Sweeper. maxAge is the retention window (the fade duration);
// interval defaults to a minute when zero.
func New(adapter remote.Adapter, maxAge, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{adapter: adapter, maxAge: maxAge, interval: interval}
}

// Mark replaces the set of tiles to tend. Safe to call from any goroutine;
// the engine calls it after each visibility change.
func (s *Sweeper) Mark(ids []tilemap.TileID) {
	cp := make([]tilemap.TileID, len(ids))
	copy(cp, ids)
	s.mu.Lock()
	s.tiles = cp
	s.mu.Unlock()
}

// Run sweeps until ctx is cancelled. Each pass requests cleanup of every
// marked tile; failures are logged and retried on the next pass.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper_stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	s.mu.Lock()
	ids := s.tiles
	s.mu.Unlock()
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.adapter.CleanupTile(ctx, id, s.maxAge); err != nil {
			logger.Warn("tile_cleanup_failed", "tile", id.Key(), "error", err)
		}
	}
}
