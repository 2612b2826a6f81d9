package stroke

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	fontOnce sync.Once
	fontErr  error
	regular  *opentype.Font

	faceMu sync.Mutex
	faces  map[float64]font.Face
)

func loadFont() {
	regular, fontErr = opentype.Parse(goregular.TTF)
	faces = make(map[float64]font.Face)
}

// faceFor returns a cached face at the given point size. All families
// measure against the bundled regular face; the stored fontFamily only
// affects client-side rendering, not pricing.
func faceFor(size float64) (font.Face, error) {
	fontOnce.Do(loadFont)
	if fontErr != nil {
		return nil, fmt.Errorf("parse embedded font: %w", fontErr)
	}
	faceMu.Lock()
	defer faceMu.Unlock()
	if f, ok := faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(regular, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("build face at %g: %w", size, err)
	}
	faces[size] = f
	return f, nil
}

// MeasureText returns the rendered advance width of text at the given font
// size, in world units. Deterministic for a given input.
func MeasureText(text string, fontSize float64) (float64, error) {
	if fontSize <= 0 {
		return 0, fmt.Errorf("invalid font size %g", fontSize)
	}
	face, err := faceFor(fontSize)
	if err != nil {
		return 0, err
	}
	adv := font.MeasureString(face, text)
	return float64(adv) / 64, nil
}
