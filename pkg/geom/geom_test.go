package geom

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// TestScreenWorldRoundTrip verifies screenToWorld and worldToScreen are
// mutual inverses across pans and zooms.
func TestScreenWorldRoundTrip(t *testing.T) {
	v := NewViewport(1280, 720)
	cases := []struct {
		x, y, zoom float64
	}{
		{0, 0, 1},
		{-5000, 3000, 0.1},
		{123.456, -789.012, 5},
		{1e6, -1e6, 0.33},
	}
	points := [][2]float64{{0, 0}, {640, 360}, {1280, 720}, {13.7, 991.2}}
	for _, c := range cases {
		v.X, v.Y, v.Zoom = c.x, c.y, c.zoom
		for _, p := range points {
			wx, wy := v.ScreenToWorld(p[0], p[1])
			sx, sy := v.WorldToScreen(wx, wy)
			if !almostEqual(sx, p[0]) || !almostEqual(sy, p[1]) {
				t.Fatalf("round trip at zoom %g: got (%g, %g), want (%g, %g)", c.zoom, sx, sy, p[0], p[1])
			}
		}
	}
}

// TestZoomAnchored verifies the world point under the cursor is invariant
// across a zoom step.
func TestZoomAnchored(t *testing.T) {
	v := NewViewport(800, 600)
	v.X, v.Y = -250, 400
	cx, cy := 321.0, 99.0

	beforeX, beforeY := v.ScreenToWorld(cx, cy)
	v.ZoomBy(1, cx, cy)
	afterX, afterY := v.ScreenToWorld(cx, cy)
	if !almostEqual(beforeX, afterX) || !almostEqual(beforeY, afterY) {
		t.Fatalf("zoom in moved anchor: (%g, %g) -> (%g, %g)", beforeX, beforeY, afterX, afterY)
	}

	v.ZoomBy(-1, cx, cy)
	afterX, afterY = v.ScreenToWorld(cx, cy)
	if !almostEqual(beforeX, afterX) || !almostEqual(beforeY, afterY) {
		t.Fatalf("zoom out moved anchor: (%g, %g) -> (%g, %g)", beforeX, beforeY, afterX, afterY)
	}
}

func TestZoomClamped(t *testing.T) {
	v := NewViewport(800, 600)
	for i := 0; i < 100; i++ {
		v.ZoomBy(1, 400, 300)
	}
	if v.Zoom != MaxZoom {
		t.Fatalf("zoom not clamped to max: %g", v.Zoom)
	}
	for i := 0; i < 200; i++ {
		v.ZoomBy(-1, 400, 300)
	}
	if v.Zoom != MinZoom {
		t.Fatalf("zoom not clamped to min: %g", v.Zoom)
	}
}

func TestPanMatchesZoom(t *testing.T) {
	v := NewViewport(800, 600)
	v.Zoom = 2
	v.Pan(100, -50)
	if !almostEqual(v.X, -50) || !almostEqual(v.Y, 25) {
		t.Fatalf("pan at zoom 2: origin (%g, %g)", v.X, v.Y)
	}
}

func TestWorldRect(t *testing.T) {
	v := NewViewport(1000, 500)
	v.X, v.Y, v.Zoom = 100, 200, 0.5
	r := v.WorldRect()
	if r.MinX != 100 || r.MinY != 200 || r.MaxX != 2100 || r.MaxY != 1200 {
		t.Fatalf("unexpected world rect: %+v", r)
	}
}
