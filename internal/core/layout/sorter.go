package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/pagelens/pagelens/internal/models"
)

// Sorter produces fragments in reading order for a fixed layout mode.
type Sorter struct {
	h Heuristics
}

// NewSorter builds a Sorter. Zero-valued heuristics fall back to defaults.
func NewSorter(h Heuristics) *Sorter {
	if h == (Heuristics{}) {
		h = DefaultHeuristics()
	}
	return &Sorter{h: h}
}

// Sort returns the valid fragments of a page in reading order for mode.
// Fragments with empty or whitespace-only text are dropped. The result is
// deterministic: the sort is stable and every key ends in a total tie-break.
func (s *Sorter) Sort(fragments []models.Fragment, mode models.LayoutMode) []models.Fragment {
	valid := make([]models.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) != "" {
			valid = append(valid, f)
		}
	}
	if len(valid) <= 1 {
		return valid
	}

	if mode == models.LayoutVerticalRTL {
		s.sortVerticalRTL(valid)
	} else {
		s.sortHorizontal(valid)
	}
	return valid
}

// sortHorizontal groups fragments into horizontal bands by top coordinate,
// then reads each band left to right. Key: (floor(top/rowBucket), left, top).
func (s *Sorter) sortHorizontal(frags []models.Fragment) {
	heights := make([]float64, 0, len(frags))
	for _, f := range frags {
		if f.Height > 0 {
			heights = append(heights, float64(f.Height))
		}
	}
	med := s.h.FallbackMedian
	if len(heights) > 0 {
		med = median(heights)
	}
	rowBucket := math.Max(s.h.RowBucketFloor, med*s.h.RowBucketScale)

	stableSortBy(frags, func(a, b models.Fragment) bool {
		ra := int(math.Floor(float64(a.Top) / rowBucket))
		rb := int(math.Floor(float64(b.Top) / rowBucket))
		if ra != rb {
			return ra < rb
		}
		if a.Left != b.Left {
			return a.Left < b.Left
		}
		return a.Top < b.Top
	})
}

// sortVerticalRTL groups fragments into columns by left coordinate, visits
// columns right to left and reads each top to bottom.
// Key: (-floor(left/colBucket), top, -left).
func (s *Sorter) sortVerticalRTL(frags []models.Fragment) {
	widths := make([]float64, 0, len(frags))
	for _, f := range frags {
		if f.Width > 0 {
			widths = append(widths, float64(f.Width))
		}
	}
	med := s.h.FallbackMedian
	if len(widths) > 0 {
		med = median(widths)
	}
	colBucket := math.Max(s.h.ColBucketFloor, med*s.h.ColBucketScale)

	stableSortBy(frags, func(a, b models.Fragment) bool {
		ca := -int(math.Floor(float64(a.Left) / colBucket))
		cb := -int(math.Floor(float64(b.Left) / colBucket))
		if ca != cb {
			return ca < cb
		}
		if a.Top != b.Top {
			return a.Top < b.Top
		}
		return a.Left > b.Left
	})
}

// stableSortBy keeps input order for equal keys, which together with the
// final tie-break in each key makes re-runs byte-identical.
func stableSortBy(frags []models.Fragment, less func(a, b models.Fragment) bool) {
	sort.SliceStable(frags, func(i, j int) bool { return less(frags[i], frags[j]) })
}
