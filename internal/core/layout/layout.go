// Package layout orders recognized text fragments into reading order and
// infers the reading direction of a page when the caller did not pin one.
//
// Both pieces work from the same primitive: a bucket size derived from the
// median fragment dimension on the page, used to cluster fragments into rows
// (horizontal text) or columns (vertical text).
package layout

import "sort"

// Heuristics holds the tunable constants behind classification and ordering.
// The values are calibrated against real scanned documents; treat them as
// configuration, not as derived quantities.
type Heuristics struct {
	// VerticalAspect is the height/width ratio above which a fragment counts
	// as vertical-like (tall narrow glyph runs typical of vertical script).
	VerticalAspect float64

	// VerticalRatioCutoff is the minimum fraction of vertical-like fragments
	// for a page to classify as vertical-rtl.
	VerticalRatioCutoff float64

	// MinBands is the minimum number of distinct horizontal bands a page's
	// left coordinates must span to classify as vertical-rtl. Guards against
	// a single centered vertical line.
	MinBands int

	// ClassifyBandFloor / ClassifyBandScale derive the band width used during
	// classification: max(floor, median(widths)*scale).
	ClassifyBandFloor float64
	ClassifyBandScale float64

	// RowBucketFloor / RowBucketScale derive the row height used to group
	// horizontal text into lines: max(floor, median(heights)*scale).
	RowBucketFloor float64
	RowBucketScale float64

	// ColBucketFloor / ColBucketScale derive the column width used to group
	// vertical text into columns: max(floor, median(widths)*scale).
	ColBucketFloor float64
	ColBucketScale float64

	// FallbackMedian stands in for the median when no fragment has a positive
	// dimension.
	FallbackMedian float64

	// FallbackBand stands in for the classification band width before any
	// positive width has been observed.
	FallbackBand float64
}

// DefaultHeuristics returns the calibrated constants.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		VerticalAspect:      1.15,
		VerticalRatioCutoff: 0.6,
		MinBands:            2,
		ClassifyBandFloor:   20.0,
		ClassifyBandScale:   1.8,
		RowBucketFloor:      8.0,
		RowBucketScale:      0.8,
		ColBucketFloor:      12.0,
		ColBucketScale:      1.2,
		FallbackMedian:      20.0,
		FallbackBand:        40.0,
	}
}

// median returns the statistical median of vals. vals must be non-empty;
// the slice is not modified.
func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
