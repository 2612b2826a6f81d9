// Package stroke models in-progress and committed marks and their ink cost.
// Cost functions are pure: the same geometry always prices the same.
package stroke

import (
	"math"

	"inkwash/pkg/models"
)

// Kind distinguishes the mark variants. Eraser marks share freehand
// geometry but are always free of charge.
type Kind int

const (
	Freehand Kind = iota
	Text
	Eraser
)

// Sample is one pointer sample of a freehand mark.
type Sample struct {
	X, Y, W float64
}

// Stroke is a mark under construction or held in the local buffer. A
// freehand stroke accumulates samples while the pointer is down; a text
// stroke is complete on creation. InkUsed is the running cost and only ever
// grows as samples are appended.
type Stroke struct {
	Kind    Kind
	Samples []Sample

	Text       string
	X, Y       float64 // text anchor
	FontSize   float64
	FontFamily string

	Color     string
	Timestamp int64 // epoch ms, set once at creation
	Country   string
	InkUsed   float64
}

// NewFreehand starts a freehand (or eraser) stroke at the given world point.
// The first sample is free; cost accrues per segment as samples are added.
func NewFreehand(kind Kind, x, y, w float64, color string, timestampMs int64, country string) *Stroke {
	return &Stroke{
		Kind:      kind,
		Samples:   []Sample{{X: x, Y: y, W: w}},
		Color:     color,
		Timestamp: timestampMs,
		Country:   country,
	}
}

// NewText builds a complete text stroke. Cost is measured width times font
// size, computed once here at commit.
func NewText(text string, x, y, fontSize float64, fontFamily, color string, timestampMs int64, country string) (*Stroke, error) {
	w, err := MeasureText(text, fontSize)
	if err != nil {
		return nil, err
	}
	return &Stroke{
		Kind:       Text,
		Text:       text,
		X:          x,
		Y:          y,
		FontSize:   fontSize,
		FontFamily: fontFamily,
		Color:      color,
		Timestamp:  timestampMs,
		Country:    country,
		InkUsed:    w * fontSize,
	}, nil
}

// SegmentCost prices one segment as Euclidean length times the average of
// the endpoint widths, a trapezoidal approximation of the swept area.
func SegmentCost(a, b Sample) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx+dy*dy) * (a.W + b.W) / 2
}

// Append adds a sample and returns the incremental cost of the new segment.
// The running total never decreases. Eraser strokes accumulate geometry but
// no cost.
func (s *Stroke) Append(x, y, w float64) float64 {
	prev := s.Samples[len(s.Samples)-1]
	next := Sample{X: x, Y: y, W: w}
	s.Samples = append(s.Samples, next)
	if s.Kind == Eraser {
		return 0
	}
	cost := SegmentCost(prev, next)
	s.InkUsed += cost
	return cost
}

// Anchor returns the point that decides tile membership: the first sample
// for freehand geometry, the position for text. Later samples may extend
// into neighboring tiles; membership does not change.
func (s *Stroke) Anchor() (float64, float64) {
	if s.Kind == Text {
		return s.X, s.Y
	}
	return s.Samples[0].X, s.Samples[0].Y
}

// Empty reports whether the stroke carries no drawable content. A freehand
// stroke needs at least two samples to describe a segment.
func (s *Stroke) Empty() bool {
	if s.Kind == Text {
		return s.Text == ""
	}
	return len(s.Samples) < 2
}

// Record converts the stroke to its persisted wire shape.
func (s *Stroke) Record() models.StrokeRecord {
	if s.Kind == Text {
		return models.StrokeRecord{
			Type:       "text",
			Text:       s.Text,
			Position:   []float64{s.X, s.Y},
			FontSize:   s.FontSize,
			FontFamily: s.FontFamily,
			Color:      s.Color,
			Timestamp:  s.Timestamp,
			Country:    s.Country,
			InkUsed:    s.InkUsed,
		}
	}
	pts := make([]float64, 0, len(s.Samples)*3)
	for _, p := range s.Samples {
		pts = append(pts, p.X, p.Y, p.W)
	}
	return models.StrokeRecord{
		Points:    pts,
		Color:     s.Color,
		Timestamp: s.Timestamp,
		Country:   s.Country,
		InkUsed:   s.InkUsed,
	}
}

// ClampWidth bounds a requested stroke width to [min, max] before it
// reaches the cost model.
func ClampWidth(w, min, max float64) float64 {
	if w < min {
		return min
	}
	if w > max {
		return max
	}
	return w
}
