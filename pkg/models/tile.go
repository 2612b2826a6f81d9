package models

// Bounds is a tile's world-space rectangle. It is stored for compatibility
// with existing documents but is always re-derivable from the tile key.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinY float64 `json:"minY"`
	MaxX float64 `json:"maxX"`
	MaxY float64 `json:"maxY"`
}

// Tile is the persisted document for one grid cell: an append-ordered list
// of strokes plus the last modification time in epoch ms. An emptied tile
// stays as an empty document rather than being deleted.
type Tile struct {
	Bounds      Bounds         `json:"bounds"`
	Strokes     []StrokeRecord `json:"strokes"`
	LastUpdated int64          `json:"lastUpdated"`
}
