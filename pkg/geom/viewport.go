package geom

// Zoom limits observed across clients; the viewport clamps to this range.
const (
	MinZoom = 0.1
	MaxZoom = 5.0
)

// zoomStep is the multiplicative factor applied per zoom input.
const zoomStep = 1.1

// Viewport is the ephemeral pan/zoom state of one session. Origin is the
// world point at the top-left screen corner; Zoom is screen pixels per world
// unit. A Viewport is never persisted.
type Viewport struct {
	X, Y   float64 // world origin
	Zoom   float64
	Width  float64 // screen size in pixels
	Height float64
}

// NewViewport returns a viewport at the world origin with 1:1 zoom.
func NewViewport(width, height float64) *Viewport {
	return &Viewport{Zoom: 1, Width: width, Height: height}
}

// ScreenToWorld maps a screen position to world coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	return v.X + sx/v.Zoom, v.Y + sy/v.Zoom
}

// WorldToScreen is the inverse affine map of ScreenToWorld.
func (v *Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	return (wx - v.X) * v.Zoom, (wy - v.Y) * v.Zoom
}

// Pan shifts the origin by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.X -= dx / v.Zoom
	v.Y -= dy / v.Zoom
}

// ZoomBy scales the zoom by one step in the direction of delta, anchored at
// the screen point (cx, cy): the world point under the cursor before the
// zoom stays under the cursor after it.
func (v *Viewport) ZoomBy(delta, cx, cy float64) {
	wx, wy := v.ScreenToWorld(cx, cy)

	z := v.Zoom
	if delta > 0 {
		z *= zoomStep
	} else if delta < 0 {
		z /= zoomStep
	}
	if z < MinZoom {
		z = MinZoom
	}
	if z > MaxZoom {
		z = MaxZoom
	}
	v.Zoom = z

	// recompute the origin so (wx, wy) is back under (cx, cy)
	v.X = wx - cx/v.Zoom
	v.Y = wy - cy/v.Zoom
}

// Resize updates the screen dimensions; the origin and zoom are untouched.
func (v *Viewport) Resize(width, height float64) {
	v.Width = width
	v.Height = height
}

// WorldRect returns the world-space rectangle currently on screen.
func (v *Viewport) WorldRect() Rect {
	return Rect{
		MinX: v.X,
		MinY: v.Y,
		MaxX: v.X + v.Width/v.Zoom,
		MaxY: v.Y + v.Height/v.Zoom,
	}
}
