package models

// StrokeRecord is the persisted wire shape of a single mark. Freehand
// strokes pack their samples flat as x1,y1,w1,x2,y2,w2,... in Points; text
// strokes set Type to "text" and carry the text fields instead.
type StrokeRecord struct {
	Type       string    `json:"type,omitempty"` // "" for freehand, "text" for text
	Points     []float64 `json:"points,omitempty"`
	Text       string    `json:"text,omitempty"`
	Position   []float64 `json:"position,omitempty"` // [x, y]
	FontSize   float64   `json:"fontSize,omitempty"`
	FontFamily string    `json:"fontFamily,omitempty"`
	Color      string    `json:"color"`
	Timestamp  int64     `json:"timestamp"` // epoch ms, immutable once set
	Country    string    `json:"country"`
	InkUsed    float64   `json:"inkUsed"`
}

// IsText reports whether the record is a text mark.
func (r *StrokeRecord) IsText() bool { return r.Type == "text" }

// Anchor returns the point that determines tile membership: the first
// sample for freehand strokes, the position for text. ok is false when the
// record carries no usable geometry.
func (r *StrokeRecord) Anchor() (x, y float64, ok bool) {
	if r.IsText() {
		if len(r.Position) < 2 {
			return 0, 0, false
		}
		return r.Position[0], r.Position[1], true
	}
	if len(r.Points) < 3 {
		return 0, 0, false
	}
	return r.Points[0], r.Points[1], true
}

// SampleCount returns the number of (x, y, w) samples in a freehand record.
func (r *StrokeRecord) SampleCount() int { return len(r.Points) / 3 }
