package engine

import (
	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/render"
	"inkwash/pkg/telemetry"
	"inkwash/pkg/tilemap"
)

// SyncVisible reconciles the loaded tile set with the current viewport:
// newly visible tiles are loaded and subscribed, tiles that left the
// visible set have their subscription cancelled individually and are
// dropped. Call after any pan, zoom or resize.
func (e *Engine) SyncVisible() {
	visible := tilemap.Visible(e.view.WorldRect(), e.cfg.TileSize)
	want := make(map[tilemap.TileID]bool, len(visible))
	for _, id := range visible {
		want[id] = true
	}

	for id, lt := range e.tiles {
		if !want[id] {
			if lt.sub != nil {
				lt.sub.Cancel()
			}
			delete(e.tiles, id)
		}
	}

	for _, id := range visible {
		if _, ok := e.tiles[id]; ok {
			continue
		}
		lt := &loadedTile{tile: modelTileFor(id, e.cfg.TileSize)}
		e.tiles[id] = lt
		e.loadTile(id)
		e.subscribeTile(id, lt)
	}

	e.sweeper.Mark(visible)
}

// VisibleTileIDs snapshots the currently loaded tile ids, for the eviction
// sweeper. Call from the driving goroutine.
func (e *Engine) VisibleTileIDs() []tilemap.TileID {
	out := make([]tilemap.TileID, 0, len(e.tiles))
	for id := range e.tiles {
		out = append(out, id)
	}
	return out
}

// loadTile fetches initial tile state off the engine goroutine and posts
// the result back to the inbox. A failed load is transient: the tile just
// stays empty until the next SyncVisible or subscription push.
func (e *Engine) loadTile(id tilemap.TileID) {
	go func() {
		t, err := e.adapter.LoadTile(e.ctx, id)
		select {
		case e.inbox <- tileLoadedMsg{id: id, tile: t, err: err}:
		case <-e.ctx.Done():
		}
	}()
}

func (e *Engine) tileLoaded(m tileLoadedMsg) {
	lt, ok := e.tiles[m.id]
	if !ok {
		return // left the visible set while loading
	}
	if m.err != nil {
		logger.Warn("tile_load_failed", "tile", m.id.Key(), "error", m.err)
		return
	}
	// bounds are authority of the key, not the stored document
	tile := m.tile
	tile.Bounds = m.id.Bounds(e.cfg.TileSize)
	lt.tile = tile
	lt.loaded = true
	telemetry.TileLoadsTotal.Inc()
}

// subscribeTile attaches the change feed for one tile. Pushes arrive on an
// adapter goroutine and are bounced into the inbox so the engine merges
// them on its own goroutine without disturbing an in-progress draw.
func (e *Engine) subscribeTile(id tilemap.TileID, lt *loadedTile) {
	sub, err := e.adapter.Subscribe(e.ctx, id, func(t models.Tile) {
		select {
		case e.inbox <- tileUpdateMsg{id: id, tile: t}:
		case <-e.ctx.Done():
		}
	})
	if err != nil {
		logger.Warn("tile_subscribe_failed", "tile", id.Key(), "error", err)
		return
	}
	lt.sub = sub
}

func modelTileFor(id tilemap.TileID, size float64) models.Tile {
	return models.Tile{Bounds: id.Bounds(size)}
}

// BuildScene composes the display list for one repaint into dst: loaded
// tiles first, then the in-flight save, then the buffer, then the
// in-progress stroke. Opacity is computed fresh for every stroke.
func (e *Engine) BuildScene(dst *render.Scene) {
	now := e.now()
	fade := e.cfg.FadeDuration.Duration()
	dst.Reset()

	for _, lt := range e.tiles {
		dst.AppendRecords(lt.tile.Strokes, now, fade)
	}
	if e.pending != nil {
		for _, bs := range e.pending.strokes {
			rec := bs.s.Record()
			dst.AppendRecord(&rec, now, fade)
		}
		// a stroke finalized while its snapshot is in flight lives only in
		// the batch until the result lands; keep painting it from there
		if d := e.pending.draft; d != nil && d != e.draft && !d.s.Empty() {
			rec := d.s.Record()
			dst.AppendRecord(&rec, now, fade)
		}
	}
	for _, bs := range e.buffer {
		rec := bs.s.Record()
		dst.AppendRecord(&rec, now, fade)
	}
	if e.draft != nil && !e.draft.s.Empty() {
		rec := e.draft.s.Record()
		dst.AppendRecord(&rec, now, fade)
	}
}
