// Package purge runs the daemon-side deep-clean pass: on a cron schedule
// it walks every stored tile and drops strokes past the fade window. The
// client sweeper only tends visible tiles; this pass catches the rest.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"inkwash/pkg/logger"
	"inkwash/pkg/store"
)

// Options configures the purge scheduler.
type Options struct {
	Cron   string // empty maps to daily @03:00
	MaxAge time.Duration
}

// Start launches the cron-driven purge loop if maxAge is positive. Returns
// a cancel func.
func Start(ctx context.Context, st *store.Store, opts Options) (context.CancelFunc, error) {
	if opts.MaxAge <= 0 {
		logger.Info("purge_disabled")
		return func() {}, nil
	}
	cronExpr := opts.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid purge cron expression: %s", opts.Cron)
	}

	logger.Info("purge_enabled", "cron", cronExpr, "max_age", opts.MaxAge.String())
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, st, cronExpr, opts.MaxAge)
	return cancel, nil
}

// runScheduler sleeps until the next cron tick and runs one pass.
func runScheduler(ctx context.Context, st *store.Store, cronExpr string, maxAge time.Duration) {
	for {
		next, err := gronx.NextTickAfter(cronExpr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("purge_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(st, maxAge); err != nil {
				logger.Error("purge_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("purge_scheduler_stopping")
			return
		}
	}
}

// RunOnce walks all stored tiles and prunes expired strokes. Exposed so an
// operator (or a test) can trigger a pass on demand.
func RunOnce(st *store.Store, maxAge time.Duration) error {
	ids, err := st.TileKeys()
	if err != nil {
		return fmt.Errorf("scan tiles: %w", err)
	}
	total := 0
	for _, id := range ids {
		removed, err := st.CleanupTile(id, maxAge)
		if err != nil {
			logger.Warn("purge_tile_failed", "tile", id.Key(), "error", err)
			continue
		}
		total += removed
	}
	logger.Info("purge_complete", "tiles", len(ids), "removed", total)
	return nil
}
