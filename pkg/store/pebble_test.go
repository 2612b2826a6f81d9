package store

import (
	"sync"
	"testing"
	"time"

	"inkwash/pkg/models"
	"inkwash/pkg/tilemap"
)

func testStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, err := Open(t.TempDir(), Options{
		TileSize: tilemap.DefaultTileSize,
		MaxInk:   250000,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, &now
}

func TestGetTileMissing(t *testing.T) {
	s, _ := testStore(t)
	tile, err := s.GetTile(tilemap.TileID{X: 3, Y: -12})
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if len(tile.Strokes) != 0 || tile.LastUpdated != 0 {
		t.Fatalf("missing tile not empty: %+v", tile)
	}
	if tile.Bounds.MinX != 6000 || tile.Bounds.MinY != -24000 {
		t.Fatalf("bounds not derived from key: %+v", tile.Bounds)
	}
}

func TestAppendAndGet(t *testing.T) {
	s, now := testStore(t)
	rec := models.StrokeRecord{
		Points:    []float64{0, 0, 5, 10, 10, 5},
		Color:     "#000000",
		Timestamp: now.UnixMilli(),
		InkUsed:   70,
	}
	changed, err := s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {rec}}, "u-1", 70)
	if err != nil {
		t.Fatalf("AppendStrokes: %v", err)
	}
	if len(changed) != 1 || changed[0] != "0_0" {
		t.Fatalf("changed = %v", changed)
	}

	tile, err := s.GetTile(tilemap.TileID{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if len(tile.Strokes) != 1 || tile.Strokes[0].InkUsed != 70 {
		t.Fatalf("tile after append: %+v", tile)
	}
	if tile.LastUpdated != now.UnixMilli() {
		t.Fatalf("lastUpdated = %d", tile.LastUpdated)
	}

	// a second append accumulates rather than replaces
	if _, err := s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {rec}}, "u-1", 70); err != nil {
		t.Fatalf("second append: %v", err)
	}
	tile, _ = s.GetTile(tilemap.TileID{X: 0, Y: 0})
	if len(tile.Strokes) != 2 {
		t.Fatalf("strokes after second append = %d", len(tile.Strokes))
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	s, now := testStore(t)
	const workers = 2
	const perWorker = 200

	rec := models.StrokeRecord{
		Points:    []float64{0, 0, 5, 10, 10, 5},
		Color:     "#000000",
		Timestamp: now.UnixMilli(),
		InkUsed:   10,
	}
	var wg sync.WaitGroup
	for g := 0; g < workers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {rec}}, "u-shared", 10); err != nil {
					t.Errorf("AppendStrokes: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	tile, err := s.GetTile(tilemap.TileID{X: 0, Y: 0})
	if err != nil {
		t.Fatalf("GetTile: %v", err)
	}
	if got := len(tile.Strokes); got != workers*perWorker {
		t.Fatalf("strokes after concurrent appends = %d, want %d", got, workers*perWorker)
	}

	// every debit landed too
	acct, err := s.GetAccount("u-shared", "")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	want := 250000 - float64(workers*perWorker*10)
	if acct.InkRemaining != want {
		t.Fatalf("balance = %g, want %g", acct.InkRemaining, want)
	}
}

func TestAppendDebitsAccount(t *testing.T) {
	s, _ := testStore(t)
	// first read creates a full account
	acct, err := s.GetAccount("u-1", "US")
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if acct.InkRemaining != 250000 || acct.Country != "US" || acct.CreatedAt == 0 {
		t.Fatalf("bootstrap account: %+v", acct)
	}

	rec := models.StrokeRecord{Points: []float64{0, 0, 1, 1, 1, 1}, Timestamp: 1, InkUsed: 1000}
	if _, err := s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {rec}}, "u-1", 1000); err != nil {
		t.Fatalf("AppendStrokes: %v", err)
	}
	acct, _ = s.GetAccount("u-1", "US")
	if acct.InkRemaining != 249000 {
		t.Fatalf("balance = %g, want 249000", acct.InkRemaining)
	}

	// the debit floors at zero
	if _, err := s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {rec}}, "u-1", 1e9); err != nil {
		t.Fatalf("AppendStrokes: %v", err)
	}
	acct, _ = s.GetAccount("u-1", "US")
	if acct.InkRemaining != 0 {
		t.Fatalf("balance = %g, want 0", acct.InkRemaining)
	}
}

func TestAppendSkipsMalformedKeys(t *testing.T) {
	s, _ := testStore(t)
	rec := models.StrokeRecord{Points: []float64{0, 0, 1, 1, 1, 1}, Timestamp: 1}
	changed, err := s.AppendStrokes(map[string][]models.StrokeRecord{
		"not-a-key": {rec},
		"2_2":       {rec},
	}, "u-1", 0)
	if err != nil {
		t.Fatalf("AppendStrokes: %v", err)
	}
	if len(changed) != 1 || changed[0] != "2_2" {
		t.Fatalf("changed = %v", changed)
	}
}

func TestCleanupTile(t *testing.T) {
	s, now := testStore(t)
	old := models.StrokeRecord{Points: []float64{0, 0, 1, 1, 1, 1}, Timestamp: now.Add(-25 * time.Hour).UnixMilli()}
	fresh := models.StrokeRecord{Points: []float64{2, 2, 1, 3, 3, 1}, Timestamp: now.Add(-time.Hour).UnixMilli()}
	s.AppendStrokes(map[string][]models.StrokeRecord{"0_0": {old, fresh}}, "u-1", 0)

	removed, err := s.CleanupTile(tilemap.TileID{X: 0, Y: 0}, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupTile: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	tile, _ := s.GetTile(tilemap.TileID{X: 0, Y: 0})
	if len(tile.Strokes) != 1 || tile.Strokes[0].Timestamp != fresh.Timestamp {
		t.Fatalf("tile after cleanup: %+v", tile.Strokes)
	}

	// nothing left to remove: no write happens
	removed, err = s.CleanupTile(tilemap.TileID{X: 0, Y: 0}, 24*time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("idle cleanup: removed=%d err=%v", removed, err)
	}

	// a fully pruned tile keeps its document
	removed, err = s.CleanupTile(tilemap.TileID{X: 0, Y: 0}, 0)
	if err != nil || removed != 1 {
		t.Fatalf("full prune: removed=%d err=%v", removed, err)
	}
	tile, _ = s.GetTile(tilemap.TileID{X: 0, Y: 0})
	if len(tile.Strokes) != 0 {
		t.Fatalf("strokes survived full prune")
	}
}

func TestTileKeys(t *testing.T) {
	s, _ := testStore(t)
	rec := models.StrokeRecord{Points: []float64{0, 0, 1, 1, 1, 1}, Timestamp: 1}
	s.AppendStrokes(map[string][]models.StrokeRecord{
		"0_0":   {rec},
		"3_-12": {rec},
		"-7_4":  {rec},
	}, "u-1", 0)

	ids, err := s.TileKeys()
	if err != nil {
		t.Fatalf("TileKeys: %v", err)
	}
	seen := map[tilemap.TileID]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	for _, want := range []tilemap.TileID{{X: 0, Y: 0}, {X: 3, Y: -12}, {X: -7, Y: 4}} {
		if !seen[want] {
			t.Fatalf("missing tile %v in %v", want, ids)
		}
	}
	if len(ids) != 3 {
		t.Fatalf("keys = %v", ids)
	}
}
