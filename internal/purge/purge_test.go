package purge

import (
	"context"
	"testing"
	"time"

	"inkwash/pkg/models"
	"inkwash/pkg/store"
	"inkwash/pkg/tilemap"
)

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	st, err := store.Open(t.TempDir(), store.Options{
		TileSize: tilemap.DefaultTileSize,
		MaxInk:   250000,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	old := models.StrokeRecord{Points: []float64{0, 0, 1, 1, 1, 1}, Timestamp: now.Add(-48 * time.Hour).UnixMilli()}
	fresh := models.StrokeRecord{Points: []float64{2, 2, 1, 3, 3, 1}, Timestamp: now.Add(-time.Hour).UnixMilli()}
	_, err = st.AppendStrokes(map[string][]models.StrokeRecord{
		"0_0": {old, fresh},
		"5_5": {old},
	}, "u-1", 0)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func TestRunOnce(t *testing.T) {
	st := seedStore(t)
	if err := RunOnce(st, 24*time.Hour); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	tile, _ := st.GetTile(tilemap.TileID{X: 0, Y: 0})
	if len(tile.Strokes) != 1 {
		t.Fatalf("tile 0_0 after purge: %d strokes", len(tile.Strokes))
	}
	tile, _ = st.GetTile(tilemap.TileID{X: 5, Y: 5})
	if len(tile.Strokes) != 0 {
		t.Fatalf("tile 5_5 after purge: %d strokes", len(tile.Strokes))
	}

	// the emptied document survives, with its key intact
	ids, err := st.TileKeys()
	if err != nil {
		t.Fatalf("TileKeys: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("tile documents after purge: %v", ids)
	}
}

func TestStartValidation(t *testing.T) {
	st := seedStore(t)

	// zero max age disables the pass entirely
	cancel, err := Start(context.Background(), st, Options{MaxAge: 0})
	if err != nil {
		t.Fatalf("disabled purge errored: %v", err)
	}
	cancel()

	// a bad cron expression is a startup error, not a silent no-op
	if _, err := Start(context.Background(), st, Options{Cron: "not a cron", MaxAge: time.Hour}); err == nil {
		t.Fatalf("invalid cron accepted")
	}

	cancel, err = Start(context.Background(), st, Options{Cron: "0 3 * * *", MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("valid cron rejected: %v", err)
	}
	cancel()
}
