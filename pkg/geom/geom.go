// Package geom holds the plane math for the infinite canvas: points,
// rectangles and the session-local viewport with its screen/world mapping.
package geom

import "math"

// Point is a position in world units.
type Point struct {
	X, Y float64
}

// Pt is a convenience constructor.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist returns the Euclidean distance to q.
func (p Point) Dist(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether (x, y) lies inside the rectangle. The minimum
// edges are inclusive and the maximum edges exclusive, matching the tiling
// convention where a point on a shared edge belongs to exactly one tile.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// Intersects reports whether r and q overlap, boundary touches included.
func (r Rect) Intersects(q Rect) bool {
	return r.MinX <= q.MaxX && q.MinX <= r.MaxX && r.MinY <= q.MaxY && q.MinY <= r.MaxY
}
