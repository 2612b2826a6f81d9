package engine

import (
	"time"

	"inkwash/pkg/clock"
	"inkwash/pkg/logger"
	"inkwash/pkg/models"
	"inkwash/pkg/stroke"
	"inkwash/pkg/telemetry"
	"inkwash/pkg/tilemap"
)

// flushBatch is one save request in flight: the buffered strokes it took,
// the optional draft snapshot, and the same payload grouped by tile key.
type flushBatch struct {
	strokes  []bufferedStroke
	draft    *draftStroke
	grouped  map[string][]models.StrokeRecord
	totalInk float64
}

// collectBatch drains the buffer into a batch, grouping records by each
// stroke's anchor tile. Returns nil when there is nothing to flush.
func (e *Engine) collectBatch() *flushBatch {
	if len(e.buffer) == 0 {
		return nil
	}
	b := &flushBatch{
		strokes: e.buffer,
		grouped: make(map[string][]models.StrokeRecord),
	}
	e.buffer = nil
	for _, bs := range b.strokes {
		ax, ay := bs.s.Anchor()
		key := tilemap.At(ax, ay, e.cfg.TileSize).Key()
		b.grouped[key] = append(b.grouped[key], bs.s.Record())
		b.totalInk += bs.s.InkUsed
	}
	return b
}

// flush starts one save round trip. At most one save is outstanding; a
// flush trigger while one is in flight just re-arms the scheduler so the
// data goes out on the next pass.
func (e *Engine) flush() {
	if e.pending != nil {
		e.sched.Reset()
		return
	}

	batch := e.collectBatch()

	// A long-running stroke still being extended when the timer fires is
	// snapshotted without being ended locally; further samples accumulate
	// as a continuation resolved in finishFlush.
	if e.draft != nil && e.draft.state == Drafting && !e.draft.s.Empty() {
		if batch == nil {
			batch = &flushBatch{grouped: make(map[string][]models.StrokeRecord)}
		}
		d := e.draft
		d.state = FlushedMidDraw
		d.cut = len(d.s.Samples)
		d.cutInk = d.s.InkUsed
		batch.draft = d

		ax, ay := d.s.Anchor()
		key := tilemap.At(ax, ay, e.cfg.TileSize).Key()
		batch.grouped[key] = append(batch.grouped[key], d.s.Record())
		batch.totalInk += d.cutInk
	}

	if batch == nil {
		return
	}
	e.pending = batch

	start := time.Now()
	go func() {
		err := e.adapter.SaveStrokes(e.ctx, batch.grouped, e.userID, batch.totalInk)
		telemetry.FlushDuration.Observe(time.Since(start).Seconds())
		select {
		case e.inbox <- flushResultMsg{batch: batch, err: err}:
		case <-e.ctx.Done():
		}
	}()
}

// finishFlush resolves one save result. Success commits the ledger, merges
// the flushed records into the local tile copies (the authoritative state
// still arrives via subscription) and re-anchors a mid-draw continuation.
// Failure puts everything back for retry on the next scheduled flush.
func (e *Engine) finishFlush(batch *flushBatch, err error) {
	e.pending = nil
	telemetry.FlushesTotal.Inc()

	if err != nil {
		telemetry.FlushFailuresTotal.Inc()
		logger.Warn("flush_failed", "strokes", len(batch.strokes), "ink", batch.totalInk, "error", err)
		// strokes return to the front of the buffer, preserving order
		e.buffer = append(batch.strokes, e.buffer...)
		if d := batch.draft; d != nil {
			switch d.state {
			case FlushedMidDraw:
				// snapshot never persisted; the live stroke owns it again
				d.state = Drafting
				d.cut = 0
				d.cutInk = 0
			case Finalized:
				// ended while in flight and never persisted: retry whole
				e.buffer = append(e.buffer, bufferedStroke{s: d.s, addedAt: e.now()})
			}
		}
		e.sched.Reset()
		return
	}

	telemetry.StrokesFlushedTotal.Add(float64(len(batch.strokes)))
	e.ledger.Commit()
	e.mergeFlushed(batch)

	if d := batch.draft; d != nil {
		cont := e.continuation(d)
		switch d.state {
		case FlushedMidDraw:
			// still being drawn: keep drawing into the continuation
			if cont != nil {
				d.s = cont
			} else {
				d.s = stroke.NewFreehand(d.s.Kind, lastSample(d.s).X, lastSample(d.s).Y, lastSample(d.s).W,
					d.s.Color, clock.Millis(e.now()), e.country)
			}
			d.state = Drafting
			d.cut = 0
			d.cutInk = 0
		case Finalized:
			// ended while in flight: only the continuation, if it has
			// content, still needs persisting — never the whole stroke
			if cont != nil {
				e.buffer = append(e.buffer, bufferedStroke{s: cont, addedAt: e.now()})
				e.sched.Reset()
			}
		}
	}
}

// continuation builds the unflushed tail of a snapshotted stroke, repeating
// the boundary sample so the rendered geometry stays connected. Returns nil
// when the tail carries no content.
func (e *Engine) continuation(d *draftStroke) *stroke.Stroke {
	if len(d.s.Samples) <= d.cut {
		return nil
	}
	tail := make([]stroke.Sample, 0, len(d.s.Samples)-d.cut+1)
	tail = append(tail, d.s.Samples[d.cut-1:]...)
	return &stroke.Stroke{
		Kind:      d.s.Kind,
		Samples:   tail,
		Color:     d.s.Color,
		Timestamp: clock.Millis(e.now()),
		Country:   e.country,
		InkUsed:   d.s.InkUsed - d.cutInk,
	}
}

// mergeFlushed appends the flushed records to the local copies of their
// tiles so nothing disappears between flush success and the subscription
// round trip.
func (e *Engine) mergeFlushed(batch *flushBatch) {
	nowMs := clock.Millis(e.now())
	for key, records := range batch.grouped {
		id, err := tilemap.ParseKey(key)
		if err != nil {
			telemetry.MalformedTilesTotal.Inc()
			logger.Error("malformed_tile_key_skipped", "key", key, "error", err)
			continue
		}
		lt, ok := e.tiles[id]
		if !ok {
			continue
		}
		lt.tile.Strokes = append(lt.tile.Strokes, records...)
		lt.tile.LastUpdated = nowMs
	}
}

func lastSample(s *stroke.Stroke) stroke.Sample {
	return s.Samples[len(s.Samples)-1]
}
