// Package validation checks incoming stroke payloads at the daemon
// boundary before anything touches storage.
package validation

import (
	"fmt"
	"math"

	"inkwash/pkg/models"
)

// maxStrokesPerSave bounds one save request; a legitimate client flush is
// far smaller.
const maxStrokesPerSave = 4096

// ValidateSave checks a grouped save payload: records must carry usable,
// finite geometry, non-negative ink and a timestamp.
func ValidateSave(tiles map[string][]models.StrokeRecord, totalInk float64) error {
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles in payload")
	}
	if totalInk < 0 || !isFinite(totalInk) {
		return fmt.Errorf("invalid totalInk %g", totalInk)
	}
	n := 0
	for key, records := range tiles {
		for i := range records {
			if err := ValidateRecord(&records[i]); err != nil {
				return fmt.Errorf("tile %s stroke %d: %w", key, i, err)
			}
		}
		n += len(records)
	}
	if n > maxStrokesPerSave {
		return fmt.Errorf("too many strokes in one save: %d", n)
	}
	return nil
}

// ValidateRecord checks a single stroke record.
func ValidateRecord(r *models.StrokeRecord) error {
	if r.Timestamp <= 0 {
		return fmt.Errorf("missing timestamp")
	}
	if r.InkUsed < 0 || !isFinite(r.InkUsed) {
		return fmt.Errorf("invalid inkUsed %g", r.InkUsed)
	}
	if r.IsText() {
		if r.Text == "" {
			return fmt.Errorf("empty text")
		}
		if len(r.Position) != 2 || !isFinite(r.Position[0]) || !isFinite(r.Position[1]) {
			return fmt.Errorf("invalid text position")
		}
		if r.FontSize <= 0 || !isFinite(r.FontSize) {
			return fmt.Errorf("invalid font size %g", r.FontSize)
		}
		return nil
	}
	if len(r.Points)%3 != 0 {
		return fmt.Errorf("points length %d not a multiple of 3", len(r.Points))
	}
	if r.SampleCount() < 2 {
		return fmt.Errorf("freehand stroke needs at least two samples")
	}
	for _, v := range r.Points {
		if !isFinite(v) {
			return fmt.Errorf("non-finite point value")
		}
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
