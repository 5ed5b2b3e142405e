package layout

import (
	"math"

	"github.com/pagelens/pagelens/internal/models"
)

// Classifier infers whether a page reads horizontally or as vertical
// right-to-left columns. The decision is per page, irreversible, and has no
// feedback loop; mixed layouts may be misclassified.
type Classifier struct {
	h Heuristics
}

// NewClassifier builds a Classifier. Zero-valued heuristics fall back to
// defaults.
func NewClassifier(h Heuristics) *Classifier {
	if h == (Heuristics{}) {
		h = DefaultHeuristics()
	}
	return &Classifier{h: h}
}

// Classify resolves the layout for a page. An explicit requested mode always
// wins; auto is decided from fragment geometry. Fewer than two fragments is
// insufficient evidence and yields horizontal.
//
// A page is vertical-rtl iff the fraction of vertical-like fragments (height
// exceeding VerticalAspect x width) reaches the cutoff AND the fragments'
// left coordinates span at least MinBands bands. The band width tracks the
// running median of the widths seen so far, matching the calibration of the
// MinBands guard.
func (c *Classifier) Classify(fragments []models.Fragment, requested models.LayoutMode) models.LayoutMode {
	if requested != models.LayoutAuto {
		return requested
	}
	if len(fragments) < 2 {
		return models.LayoutHorizontal
	}

	verticalLike := 0
	widths := make([]float64, 0, len(fragments))
	bands := make(map[int]struct{})

	for _, f := range fragments {
		w := float64(f.Width)
		h := float64(f.Height)
		if w > 0 {
			widths = append(widths, w)
		}
		if w > 0 && h > w*c.h.VerticalAspect {
			verticalLike++
		}

		band := c.h.FallbackBand
		if len(widths) > 0 {
			band = math.Max(c.h.ClassifyBandFloor, median(widths)*c.h.ClassifyBandScale)
		}
		bands[int(math.Floor(float64(f.Left)/band))] = struct{}{}
	}

	ratio := float64(verticalLike) / float64(len(fragments))
	if ratio >= c.h.VerticalRatioCutoff && len(bands) >= c.h.MinBands {
		return models.LayoutVerticalRTL
	}
	return models.LayoutHorizontal
}
