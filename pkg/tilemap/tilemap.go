// Package tilemap maps world coordinates onto the fixed grid of storage
// tiles. The mapping is stateless and bijective: a tile key encodes exactly
// the grid cell, and the cell's bounds are recomputed from the key on load
// rather than trusted from stored data.
package tilemap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"inkwash/pkg/geom"
	"inkwash/pkg/models"
)

// DefaultTileSize is the tile edge length in world units.
const DefaultTileSize = 2000.0

// TileID identifies one grid cell by its integer grid coordinates.
type TileID struct {
	X, Y int64
}

// At returns the tile containing the world point (x, y) for the given tile
// size. Cell membership uses floor division so negative coordinates land in
// negative cells.
func At(x, y, size float64) TileID {
	return TileID{
		X: int64(math.Floor(x / size)),
		Y: int64(math.Floor(y / size)),
	}
}

// Key serializes the id to its stable string form, e.g. "3_-12".
func (id TileID) Key() string {
	return strconv.FormatInt(id.X, 10) + "_" + strconv.FormatInt(id.Y, 10)
}

// ParseKey parses a serialized tile key. A malformed key is corrupt data;
// callers skip the affected tile rather than failing the whole view.
func ParseKey(key string) (TileID, error) {
	a, b, ok := strings.Cut(key, "_")
	if !ok {
		return TileID{}, fmt.Errorf("malformed tile key %q", key)
	}
	x, err := strconv.ParseInt(a, 10, 64)
	if err != nil {
		return TileID{}, fmt.Errorf("malformed tile key %q: %w", key, err)
	}
	y, err := strconv.ParseInt(b, 10, 64)
	if err != nil {
		return TileID{}, fmt.Errorf("malformed tile key %q: %w", key, err)
	}
	return TileID{X: x, Y: y}, nil
}

// Bounds returns the world rectangle of the tile for the given size.
func (id TileID) Bounds(size float64) models.Bounds {
	minX := float64(id.X) * size
	minY := float64(id.Y) * size
	return models.Bounds{MinX: minX, MinY: minY, MaxX: minX + size, MaxY: minY + size}
}

// Rect is Bounds as a geom.Rect.
func (id TileID) Rect(size float64) geom.Rect {
	b := id.Bounds(size)
	return geom.Rect{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// Visible enumerates every tile whose rectangle intersects the viewport
// rectangle, boundary tiles included. Enumeration order is row-major from
// the top-left tile.
func Visible(view geom.Rect, size float64) []TileID {
	minX := int64(math.Floor(view.MinX / size))
	minY := int64(math.Floor(view.MinY / size))
	maxX := int64(math.Ceil(view.MaxX / size))
	maxY := int64(math.Ceil(view.MaxY / size))

	out := make([]TileID, 0, (maxX-minX+1)*(maxY-minY+1))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			id := TileID{X: x, Y: y}
			if id.Rect(size).Intersects(view) {
				out = append(out, id)
			}
		}
	}
	return out
}
