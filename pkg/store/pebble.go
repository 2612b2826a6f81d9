// Package store persists tiles and ink accounts in a Pebble database. Keys:
//
//	tile:<tx>_<ty>  JSON models.Tile
//	ink:<userID>    JSON models.InkAccount
//
// Tiles are created lazily on first write and never deleted; cleanup prunes
// a tile's stroke list but keeps the (possibly empty) document to avoid
// bounds-recreation churn.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"inkwash/pkg/clock"
	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/telemetry"
	"inkwash/pkg/tilemap"
)

const (
	tilePrefix = "tile:"
	inkPrefix  = "ink:"
)

// Store wraps one opened Pebble database. Mutations are serialized through
// a single writer goroutine; reads go straight to Pebble.
type Store struct {
	db       *pebble.DB
	w        *writer
	tileSize float64
	maxInk   float64
	now      clock.Clock
}

// Options configures a Store.
type Options struct {
	TileSize float64
	MaxInk   float64
	Now      clock.Clock
}

// Open opens (or creates) the Pebble database at path.
func Open(path string, opts Options) (*Store, error) {
	if opts.Now == nil {
		opts.Now = clock.System
	}
	logger.Info("opening_tile_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &Store{db: db, w: newWriter(4096), tileSize: opts.TileSize, maxInk: opts.MaxInk, now: opts.Now}, nil
}

// Close stops the writer and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.w.close()
	err := s.db.Close()
	s.db = nil
	logger.Info("tile_store_closed")
	return err
}

// Ready reports whether the store is open.
func (s *Store) Ready() bool { return s.db != nil }

// GetTile returns the tile for key, or an empty default with bounds derived
// from the key when no document exists yet.
func (s *Store) GetTile(id tilemap.TileID) (models.Tile, error) {
	def := models.Tile{Bounds: id.Bounds(s.tileSize)}
	data, closer, err := s.db.Get([]byte(tilePrefix + id.Key()))
	if err == pebble.ErrNotFound {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get tile %s: %w", id.Key(), err)
	}
	defer closer.Close()
	var t models.Tile
	if err := json.Unmarshal(data, &t); err != nil {
		return def, fmt.Errorf("decode tile %s: %w", id.Key(), err)
	}
	// bounds are derived from the key, never trusted from the document
	t.Bounds = id.Bounds(s.tileSize)
	return t, nil
}

// readAccount returns the stored account for userID and whether a document
// exists.
func (s *Store) readAccount(userID string) (models.InkAccount, bool, error) {
	data, closer, err := s.db.Get([]byte(inkPrefix + userID))
	if err == pebble.ErrNotFound {
		return models.InkAccount{}, false, nil
	}
	if err != nil {
		return models.InkAccount{}, false, fmt.Errorf("get account %s: %w", userID, err)
	}
	defer closer.Close()
	var a models.InkAccount
	if err := json.Unmarshal(data, &a); err != nil {
		return models.InkAccount{}, false, fmt.Errorf("decode account %s: %w", userID, err)
	}
	return a, true, nil
}

// GetAccount returns the ink account for userID, creating a full one on
// first read. Creation runs on the writer so it cannot clobber a debit
// landing at the same moment.
func (s *Store) GetAccount(userID, country string) (models.InkAccount, error) {
	a, ok, err := s.readAccount(userID)
	if err != nil || ok {
		return a, err
	}
	err = s.w.do(func() error {
		got, ok, rerr := s.readAccount(userID)
		if rerr != nil || ok {
			a = got
			return rerr
		}
		nowMs := clock.Millis(s.now())
		a = models.InkAccount{
			InkRemaining: s.maxInk,
			LastRefill:   nowMs,
			Country:      country,
			CreatedAt:    nowMs,
		}
		buf, _ := json.Marshal(a)
		if serr := s.db.Set([]byte(inkPrefix+userID), buf, pebble.Sync); serr != nil {
			return fmt.Errorf("create account %s: %w", userID, serr)
		}
		logger.Info("ink_account_created", "user", userID)
		return nil
	})
	return a, err
}

// AppendStrokes appends grouped stroke records to their tiles and debits
// the user's account, all in one Pebble batch. Atomicity holds for this one
// request; nothing broader is promised. Returns the keys of tiles that
// changed. Malformed tile keys in the payload are skipped, not fatal.
//
// The work runs on the writer goroutine, so two requests touching the same
// tile append in submission order and neither overwrites the other.
func (s *Store) AppendStrokes(grouped map[string][]models.StrokeRecord, userID string, totalInk float64) ([]string, error) {
	var changed []string
	err := s.w.do(func() error {
		var aerr error
		changed, aerr = s.appendStrokes(grouped, userID, totalInk)
		return aerr
	})
	return changed, err
}

func (s *Store) appendStrokes(grouped map[string][]models.StrokeRecord, userID string, totalInk float64) ([]string, error) {
	nowMs := clock.Millis(s.now())
	batch := s.db.NewBatch()
	defer batch.Close()

	changed := make([]string, 0, len(grouped))
	appended := 0
	for key, records := range grouped {
		id, err := tilemap.ParseKey(key)
		if err != nil {
			telemetry.MalformedTilesTotal.Inc()
			logger.Error("malformed_tile_key_skipped", "key", key, "error", err)
			continue
		}
		if len(records) == 0 {
			continue
		}
		t, err := s.GetTile(id)
		if err != nil {
			return nil, err
		}
		t.Strokes = append(t.Strokes, records...)
		t.LastUpdated = nowMs
		buf, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode tile %s: %w", key, err)
		}
		if err := batch.Set([]byte(tilePrefix+key), buf, nil); err != nil {
			return nil, fmt.Errorf("batch tile %s: %w", key, err)
		}
		changed = append(changed, key)
		appended += len(records)
	}

	if totalInk > 0 {
		// already on the writer goroutine; bootstrap inline rather than
		// through GetAccount
		a, ok, err := s.readAccount(userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			a = models.InkAccount{InkRemaining: s.maxInk, LastRefill: nowMs, CreatedAt: nowMs}
		}
		a.InkRemaining -= totalInk
		if a.InkRemaining < 0 {
			a.InkRemaining = 0
		}
		a.LastRefill = nowMs
		buf, _ := json.Marshal(a)
		if err := batch.Set([]byte(inkPrefix+userID), buf, nil); err != nil {
			return nil, fmt.Errorf("batch account %s: %w", userID, err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return nil, fmt.Errorf("commit stroke batch: %w", err)
	}
	telemetry.StrokesAppendedTotal.Add(float64(appended))
	telemetry.InkConsumedTotal.Add(totalInk)
	return changed, nil
}

// CleanupTile drops strokes older than maxAge from one tile and reports how
// many were removed. The emptied document is kept. Runs on the writer, so a
// prune cannot race a concurrent append on the same tile.
func (s *Store) CleanupTile(id tilemap.TileID, maxAge time.Duration) (int, error) {
	var removed int
	err := s.w.do(func() error {
		var cerr error
		removed, cerr = s.cleanupTile(id, maxAge)
		return cerr
	})
	return removed, err
}

func (s *Store) cleanupTile(id tilemap.TileID, maxAge time.Duration) (int, error) {
	t, err := s.GetTile(id)
	if err != nil {
		return 0, err
	}
	cutoff := clock.Millis(s.now().Add(-maxAge))
	kept := make([]models.StrokeRecord, 0, len(t.Strokes))
	for _, r := range t.Strokes {
		if r.Timestamp > cutoff {
			kept = append(kept, r)
		}
	}
	removed := len(t.Strokes) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	t.Strokes = kept
	t.LastUpdated = clock.Millis(s.now())
	buf, err := json.Marshal(t)
	if err != nil {
		return 0, fmt.Errorf("encode tile %s: %w", id.Key(), err)
	}
	if err := s.db.Set([]byte(tilePrefix+id.Key()), buf, pebble.Sync); err != nil {
		return 0, fmt.Errorf("set tile %s: %w", id.Key(), err)
	}
	telemetry.StrokesEvictedTotal.Add(float64(removed))
	return removed, nil
}

// TileKeys scans every stored tile key, for the deep-clean pass and the
// inspect tool. Malformed keys are skipped and logged.
func (s *Store) TileKeys() ([]tilemap.TileID, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(tilePrefix),
		UpperBound: []byte(tilePrefix + "\xff"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []tilemap.TileID
	for iter.First(); iter.Valid(); iter.Next() {
		key := strings.TrimPrefix(string(iter.Key()), tilePrefix)
		id, err := tilemap.ParseKey(key)
		if err != nil {
			telemetry.MalformedTilesTotal.Inc()
			logger.Error("malformed_tile_key_skipped", "key", key, "error", err)
			continue
		}
		out = append(out, id)
	}
	return out, iter.Error()
}
