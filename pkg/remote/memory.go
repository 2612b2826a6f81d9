package remote

import (
	"context"
	"sync"
	"time"

	"inkwash/pkg/clock"
	"inkwash/pkg/models"
	"inkwash/pkg/tilemap"
)

// Memory is an in-process Adapter. It backs two cases: tests, and the
// local-only degraded mode used when no backend is configured, where
// strokes keep rendering across flushes but never leave the process.
type Memory struct {
	now      clock.Clock
	tileSize float64

	mu       sync.Mutex
	tiles    map[string]models.Tile
	accounts map[string]models.InkAccount
	subs     map[string]map[int]func(models.Tile)
	nextSub  int
}

// NewMemory builds an empty in-process store.
func NewMemory(tileSize float64, now clock.Clock) *Memory {
	if now == nil {
		now = clock.System
	}
	return &Memory{
		now:      now,
		tileSize: tileSize,
		tiles:    make(map[string]models.Tile),
		accounts: make(map[string]models.InkAccount),
		subs:     make(map[string]map[int]func(models.Tile)),
	}
}

func (m *Memory) LoadTile(_ context.Context, id tilemap.TileID) (models.Tile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tiles[id.Key()]; ok {
		return t, nil
	}
	return models.Tile{Bounds: id.Bounds(m.tileSize)}, nil
}

func (m *Memory) SaveStrokes(_ context.Context, grouped map[string][]models.StrokeRecord, userID string, totalInk float64) error {
	m.mu.Lock()
	nowMs := clock.Millis(m.now())
	var notify []func()
	for key, records := range grouped {
		id, err := tilemap.ParseKey(key)
		if err != nil {
			continue
		}
		t, ok := m.tiles[key]
		if !ok {
			t = models.Tile{Bounds: id.Bounds(m.tileSize)}
		}
		t.Strokes = append(t.Strokes, records...)
		t.LastUpdated = nowMs
		m.tiles[key] = t

		snapshot := t
		for _, fn := range m.subs[key] {
			fn := fn
			notify = append(notify, func() { fn(snapshot) })
		}
	}
	acct := m.accounts[userID]
	acct.InkRemaining -= totalInk
	if acct.InkRemaining < 0 {
		acct.InkRemaining = 0
	}
	acct.LastRefill = nowMs
	m.accounts[userID] = acct
	m.mu.Unlock()

	// deliver outside the lock so a subscriber may call back in
	for _, fn := range notify {
		fn()
	}
	return nil
}

func (m *Memory) LoadAccount(_ context.Context, userID string) (models.InkAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.accounts[userID]; ok {
		return a, nil
	}
	return models.InkAccount{}, nil
}

// SeedAccount installs an account snapshot, for tests.
func (m *Memory) SeedAccount(userID string, acct models.InkAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[userID] = acct
}

type memorySub struct {
	cancel func()
	once   sync.Once
}

func (s *memorySub) Cancel() { s.once.Do(s.cancel) }

func (m *Memory) Subscribe(_ context.Context, id tilemap.TileID, onChange func(models.Tile)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.Key()
	if m.subs[key] == nil {
		m.subs[key] = make(map[int]func(models.Tile))
	}
	n := m.nextSub
	m.nextSub++
	m.subs[key][n] = onChange
	return &memorySub{cancel: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[key], n)
	}}, nil
}

func (m *Memory) CleanupTile(_ context.Context, id tilemap.TileID, maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := id.Key()
	t, ok := m.tiles[key]
	if !ok {
		return nil
	}
	cutoff := clock.Millis(m.now().Add(-maxAge))
	// fresh slice: snapshots handed out earlier still alias the old array
	kept := make([]models.StrokeRecord, 0, len(t.Strokes))
	for _, s := range t.Strokes {
		if s.Timestamp > cutoff {
			kept = append(kept, s)
		}
	}
	t.Strokes = kept
	m.tiles[key] = t
	return nil
}
