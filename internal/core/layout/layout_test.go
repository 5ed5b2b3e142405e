package layout

import (
	"reflect"
	"testing"

	"github.com/pagelens/pagelens/internal/models"
)

// makeFragment creates a test fragment.
func makeFragment(text string, left, top, width, height int) models.Fragment {
	return models.Fragment{Left: left, Top: top, Width: width, Height: height, Text: text}
}

func texts(frags []models.Fragment) []string {
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		out = append(out, f.Text)
	}
	return out
}

func TestSorter_DropsBlankFragments(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	frags := []models.Fragment{
		makeFragment("keep", 0, 0, 100, 20),
		makeFragment("", 0, 30, 100, 20),
		makeFragment("   ", 0, 60, 100, 20),
		makeFragment("also", 0, 90, 100, 20),
	}

	got := texts(s.Sort(frags, models.LayoutHorizontal))
	want := []string{"keep", "also"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSorter_SingleFragmentUnchanged(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	frags := []models.Fragment{makeFragment("only", 5, 5, 10, 10)}

	got := s.Sort(frags, models.LayoutVerticalRTL)
	if len(got) != 1 || got[0].Text != "only" {
		t.Errorf("expected single fragment unchanged, got %v", got)
	}
}

func TestSorter_HorizontalReadingOrder(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	// Two lines of two fragments each, recognized out of order. Heights of 20
	// give a row bucket of 16, so tops 0 and 30 land in distinct bands.
	frags := []models.Fragment{
		makeFragment("b2", 200, 32, 100, 20),
		makeFragment("a1", 0, 0, 100, 20),
		makeFragment("b1", 0, 30, 100, 20),
		makeFragment("a2", 200, 2, 100, 20),
	}

	got := texts(s.Sort(frags, models.LayoutHorizontal))
	want := []string{"a1", "a2", "b1", "b2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSorter_HorizontalTwoLines(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	frags := []models.Fragment{
		makeFragment("a", 0, 0, 100, 20),
		makeFragment("b", 0, 30, 100, 20),
	}

	got := texts(s.Sort(frags, models.LayoutHorizontal))
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSorter_VerticalRTLReadsRightColumnFirst(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	// Two columns of narrow fragments; the right column (left=100) must come
	// first, read top to bottom.
	frags := []models.Fragment{
		makeFragment("left-top", 0, 0, 10, 50),
		makeFragment("right-bottom", 100, 60, 10, 50),
		makeFragment("left-bottom", 0, 60, 10, 50),
		makeFragment("right-top", 100, 0, 10, 55),
	}

	got := texts(s.Sort(frags, models.LayoutVerticalRTL))
	want := []string{"right-top", "right-bottom", "left-top", "left-bottom"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSorter_Deterministic(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	frags := []models.Fragment{
		makeFragment("c", 40, 11, 30, 9),
		makeFragment("a", 10, 10, 30, 10),
		makeFragment("d", 40, 40, 30, 10),
		makeFragment("b", 10, 12, 30, 11),
	}

	first := texts(s.Sort(append([]models.Fragment(nil), frags...), models.LayoutHorizontal))
	for i := 0; i < 10; i++ {
		again := texts(s.Sort(append([]models.Fragment(nil), frags...), models.LayoutHorizontal))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed: %v vs %v", i, first, again)
		}
	}
}

func TestSorter_ZeroHeightFallback(t *testing.T) {
	s := NewSorter(DefaultHeuristics())
	frags := []models.Fragment{
		makeFragment("second", 0, 40, 100, 0),
		makeFragment("first", 0, 0, 100, 0),
	}

	got := texts(s.Sort(frags, models.LayoutHorizontal))
	want := []string{"first", "second"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestClassifier_ExplicitOverrideWins(t *testing.T) {
	c := NewClassifier(DefaultHeuristics())
	// Strongly vertical geometry, but the caller pinned horizontal.
	frags := []models.Fragment{
		makeFragment("x", 0, 0, 10, 50),
		makeFragment("y", 100, 0, 10, 50),
	}

	if got := c.Classify(frags, models.LayoutHorizontal); got != models.LayoutHorizontal {
		t.Errorf("expected horizontal, got %s", got)
	}
	if got := c.Classify(nil, models.LayoutVerticalRTL); got != models.LayoutVerticalRTL {
		t.Errorf("expected vertical-rtl, got %s", got)
	}
}

func TestClassifier_TooFewFragments(t *testing.T) {
	c := NewClassifier(DefaultHeuristics())
	frags := []models.Fragment{makeFragment("x", 0, 0, 10, 50)}

	if got := c.Classify(frags, models.LayoutAuto); got != models.LayoutHorizontal {
		t.Errorf("expected horizontal for single fragment, got %s", got)
	}
}

func TestClassifier_VerticalTwoBands(t *testing.T) {
	c := NewClassifier(DefaultHeuristics())
	// All tall/narrow, spanning two bands of left coordinates.
	frags := []models.Fragment{
		makeFragment("a", 0, 0, 10, 50),
		makeFragment("b", 0, 60, 10, 50),
		makeFragment("c", 100, 0, 10, 55),
		makeFragment("d", 100, 60, 10, 50),
	}

	if got := c.Classify(frags, models.LayoutAuto); got != models.LayoutVerticalRTL {
		t.Errorf("expected vertical-rtl, got %s", got)
	}
}

func TestClassifier_HorizontalWideFragments(t *testing.T) {
	c := NewClassifier(DefaultHeuristics())
	frags := []models.Fragment{
		makeFragment("a", 0, 0, 100, 20),
		makeFragment("b", 0, 30, 100, 20),
	}

	if got := c.Classify(frags, models.LayoutAuto); got != models.LayoutHorizontal {
		t.Errorf("expected horizontal, got %s", got)
	}
}

func TestClassifier_SingleColumnStaysHorizontal(t *testing.T) {
	c := NewClassifier(DefaultHeuristics())
	// Vertical-like glyphs but all in one band: the MinBands guard must keep
	// this horizontal.
	frags := []models.Fragment{
		makeFragment("a", 0, 0, 10, 50),
		makeFragment("b", 2, 60, 10, 50),
		makeFragment("c", 4, 120, 10, 50),
	}

	if got := c.Classify(frags, models.LayoutAuto); got != models.LayoutHorizontal {
		t.Errorf("expected horizontal for single-band page, got %s", got)
	}
}
