package render

import (
	"testing"
	"time"

	"inkwash/pkg/models"
)

var fade = 24 * time.Hour

func TestOpacityLifecycle(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := born.UnixMilli()

	if got := Opacity(ts, born, fade); got != 1 {
		t.Fatalf("opacity at creation = %g, want 1", got)
	}
	if got := Opacity(ts, born.Add(12*time.Hour), fade); got != 0.5 {
		t.Fatalf("opacity at half life = %g, want 0.5", got)
	}
	if got := Opacity(ts, born.Add(24*time.Hour), fade); got != 0 {
		t.Fatalf("opacity at fade = %g, want 0", got)
	}
	if got := Opacity(ts, born.Add(48*time.Hour), fade); got != 0 {
		t.Fatalf("opacity past fade = %g, want 0", got)
	}
	// a clock skewed slightly behind the stroke timestamp still renders
	// at full opacity rather than above 1
	if got := Opacity(ts, born.Add(-time.Minute), fade); got != 1 {
		t.Fatalf("opacity before creation = %g, want 1", got)
	}
}

func TestOpacityStrictlyDecreasing(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	ts := born.UnixMilli()
	prev := 1.0
	for h := 1; h < 24; h++ {
		got := Opacity(ts, born.Add(time.Duration(h)*time.Hour), fade)
		if got >= prev {
			t.Fatalf("opacity not decreasing at hour %d: %g >= %g", h, got, prev)
		}
		prev = got
	}
}

func TestAppendRecordSkipsExpired(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := models.StrokeRecord{
		Points:    []float64{0, 0, 5, 10, 0, 5},
		Color:     "#000000",
		Timestamp: born.UnixMilli(),
	}
	var sc Scene
	sc.AppendRecord(&rec, born.Add(25*time.Hour), fade)
	if len(sc.Segments) != 0 {
		t.Fatalf("expired stroke rendered %d segments", len(sc.Segments))
	}
}

func TestAppendRecordSegments(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := models.StrokeRecord{
		Points:    []float64{0, 0, 1, 10, 0, 2, 10, 10, 3},
		Color:     "#336699",
		Timestamp: born.UnixMilli(),
	}
	var sc Scene
	sc.AppendRecord(&rec, born.Add(6*time.Hour), fade)
	if len(sc.Segments) != 2 {
		t.Fatalf("3 samples should yield 2 segments, got %d", len(sc.Segments))
	}
	s0 := sc.Segments[0]
	if s0.X2 != 10 || s0.Y2 != 0 || s0.W2 != 2 {
		t.Fatalf("first segment endpoint: %+v", s0)
	}
	if s0.Alpha != 0.75 {
		t.Fatalf("segment alpha = %g, want 0.75", s0.Alpha)
	}
	if s0.Color != "#336699" {
		t.Fatalf("segment color = %q", s0.Color)
	}
}

func TestAppendRecordText(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := models.StrokeRecord{
		Type:      "text",
		Text:      "hello",
		Position:  []float64{30, 40},
		FontSize:  18,
		Color:     "#000000",
		Timestamp: born.UnixMilli(),
	}
	var sc Scene
	sc.AppendRecord(&rec, born, fade)
	if len(sc.Texts) != 1 {
		t.Fatalf("text ops = %d", len(sc.Texts))
	}
	op := sc.Texts[0]
	if op.X != 30 || op.Y != 40 || op.Text != "hello" || op.FontSize != 18 {
		t.Fatalf("text op: %+v", op)
	}

	// malformed position is skipped rather than panicking
	bad := rec
	bad.Position = []float64{30}
	sc.AppendRecord(&bad, born, fade)
	if len(sc.Texts) != 1 {
		t.Fatalf("malformed text rendered")
	}
}

func TestPaintOrderAndReset(t *testing.T) {
	born := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recs := []models.StrokeRecord{
		{Points: []float64{0, 0, 1, 1, 1, 1}, Color: "#111111", Timestamp: born.UnixMilli()},
		{Points: []float64{2, 2, 1, 3, 3, 1}, Color: "#222222", Timestamp: born.UnixMilli()},
	}
	var sc Scene
	sc.AppendRecords(recs, born, fade)
	if len(sc.Segments) != 2 {
		t.Fatalf("segments = %d", len(sc.Segments))
	}
	if sc.Segments[0].Color != "#111111" || sc.Segments[1].Color != "#222222" {
		t.Fatalf("paint order broken: %q then %q", sc.Segments[0].Color, sc.Segments[1].Color)
	}
	sc.Reset()
	if len(sc.Segments) != 0 || len(sc.Texts) != 0 {
		t.Fatalf("reset left content")
	}
}
