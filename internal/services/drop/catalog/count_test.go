package catalog

import (
	"math"
	"testing"
)

func optionsN(n int) []ImageOption {
	opts := make([]ImageOption, n)
	for i := range opts {
		opts[i] = ImageOption{Weight: 100 / float64(n)}
	}
	return opts
}

func TestCountTwoLayers(t *testing.T) {
	cat := &Catalog{
		LayerSets: []LayerSet{{
			Name:   "base",
			Weight: 100,
			Layers: []Layer{{Options: optionsN(3)}, {Options: optionsN(4)}},
		}},
	}
	if got := Count(cat); got != 12 {
		t.Fatalf("Count() = %d, want 12", got)
	}
}

func TestCountSumsLayerSets(t *testing.T) {
	cat := &Catalog{
		LayerSets: []LayerSet{
			{Name: "a", Weight: 60, Layers: []Layer{{Options: optionsN(2)}, {Options: optionsN(5)}}},
			{Name: "b", Weight: 40, Layers: []Layer{{Options: optionsN(3)}}},
		},
	}
	if got := Count(cat); got != 13 {
		t.Fatalf("Count() = %d, want 13", got)
	}
}

func TestCountCardEditions(t *testing.T) {
	cat := &Catalog{Cards: []Card{{ID: "1", Count: 10}, {ID: "2", Count: 5}}}
	if got := Count(cat); got != 15 {
		t.Fatalf("Count() = %d, want 15", got)
	}
}

func TestCombinationsSaturates(t *testing.T) {
	layers := make([]Layer, 40)
	for i := range layers {
		layers[i] = Layer{Options: optionsN(10)}
	}
	if got := Combinations(LayerSet{Layers: layers}); got != math.MaxInt64 {
		t.Fatalf("Combinations() = %d, want saturation", got)
	}
}

func TestCountNil(t *testing.T) {
	if got := Count(nil); got != 0 {
		t.Fatalf("Count(nil) = %d", got)
	}
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Fatalf("FormatCount() = %q", got)
	}
}
