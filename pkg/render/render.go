// Package render turns stroke records into a per-frame display list with
// time-decay opacity. Opacity is recomputed on every pass from the stroke
// timestamp, never cached, so fading stays correct at any repaint cadence.
package render

import (
	"time"

	"inkwash/pkg/clock"
	"inkwash/pkg/models"
)

// Segment is one variable-width, round-capped line segment of a freehand
// stroke, in world coordinates.
type Segment struct {
	X1, Y1, W1 float64
	X2, Y2, W2 float64
	Color      string
	Alpha      float64
}

// TextOp is one positioned text draw call.
type TextOp struct {
	X, Y       float64
	Text       string
	FontSize   float64
	FontFamily string
	Color      string
	Alpha      float64
}

// Scene is the display list for one repaint, in paint order.
type Scene struct {
	Segments []Segment
	Texts    []TextOp
}

// Reset empties the scene for reuse across frames.
func (s *Scene) Reset() {
	s.Segments = s.Segments[:0]
	s.Texts = s.Texts[:0]
}

// Opacity maps a stroke's age to its alpha: 1 at creation, linearly down to
// 0 at fade duration, clamped to [0, 1].
func Opacity(timestampMs int64, now time.Time, fade time.Duration) float64 {
	age := clock.Millis(now) - timestampMs
	if age <= 0 {
		return 1
	}
	fadeMs := fade.Milliseconds()
	if fadeMs <= 0 || age >= fadeMs {
		return 0
	}
	return 1 - float64(age)/float64(fadeMs)
}

// AppendRecord adds one stroke record to the scene at the given instant.
// Fully faded strokes are skipped, not removed; eviction owns removal.
func (s *Scene) AppendRecord(r *models.StrokeRecord, now time.Time, fade time.Duration) {
	alpha := Opacity(r.Timestamp, now, fade)
	if alpha <= 0 {
		return
	}
	if r.IsText() {
		if len(r.Position) < 2 {
			return
		}
		s.Texts = append(s.Texts, TextOp{
			X:          r.Position[0],
			Y:          r.Position[1],
			Text:       r.Text,
			FontSize:   r.FontSize,
			FontFamily: r.FontFamily,
			Color:      r.Color,
			Alpha:      alpha,
		})
		return
	}
	pts := r.Points
	for i := 0; i+5 < len(pts); i += 3 {
		s.Segments = append(s.Segments, Segment{
			X1: pts[i], Y1: pts[i+1], W1: pts[i+2],
			X2: pts[i+3], Y2: pts[i+4], W2: pts[i+5],
			Color: r.Color,
			Alpha: alpha,
		})
	}
}

// AppendRecords adds a batch of records in order.
func (s *Scene) AppendRecords(records []models.StrokeRecord, now time.Time, fade time.Duration) {
	for i := range records {
		s.AppendRecord(&records[i], now, fade)
	}
}
