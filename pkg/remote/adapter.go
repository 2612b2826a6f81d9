// Package remote defines the boundary to the external tile store. Every
// operation is asynchronous-friendly and fallible; the engine treats any
// error as transient, keeps data buffered and retries on its own schedule.
package remote

import (
	"context"
	"time"

	"inkwash/pkg/models"
	"inkwash/pkg/tilemap"
)

// Subscription is a cancellable handle for one tile's change feed.
type Subscription interface {
	// Cancel stops delivery. Safe to call more than once.
	Cancel()
}

// Adapter is the sync boundary to the tile store.
//
// Grouped stroke payloads are keyed by serialized tile key. SaveStrokes must
// append all groups and debit the account in one request; atomicity beyond
// that single request is not promised.
type Adapter interface {
	LoadTile(ctx context.Context, id tilemap.TileID) (models.Tile, error)
	SaveStrokes(ctx context.Context, grouped map[string][]models.StrokeRecord, userID string, totalInk float64) error
	LoadAccount(ctx context.Context, userID string) (models.InkAccount, error)
	// Subscribe delivers the full current tile state on every remote change.
	// onChange may be invoked from an internal goroutine; consumers forward
	// into their own event loop.
	Subscribe(ctx context.Context, id tilemap.TileID, onChange func(models.Tile)) (Subscription, error)
	CleanupTile(ctx context.Context, id tilemap.TileID, maxAge time.Duration) error
}
