// Package sampler resolves weighted draws against option lists.
package sampler

import (
	"fmt"

	apperrors "github.com/thecardroom/nftgen/internal/platform/errors"
	"github.com/thecardroom/nftgen/internal/random"
)

// Weighted is anything carrying a selection weight in [0, 100].
type Weighted interface {
	SelectionWeight() float64
}

// Select draws r uniformly from [0, 100) and returns the first option whose
// cumulative upper bound is >= r.
//
// Weights are assumed to sum to 100; catalogs are validated before any draw.
// If floating-point accumulation never reaches r, Select fails with
// SELECTION_FAILED instead of silently picking the last option.
//
// Every call consumes exactly one value from src, so for a fixed seed and a
// fixed sequence of option lists the returned indices are reproducible.
func Select[T Weighted](src random.Source, options []T) (int, T, error) {
	var zero T
	if len(options) == 0 {
		return -1, zero, apperrors.New(apperrors.CodeSelectionFailed, "no options to select from")
	}
	r := src.Uniform100()
	sum := 0.0
	for i, opt := range options {
		sum += opt.SelectionWeight()
		if r <= sum {
			return i, opt, nil
		}
	}
	return -1, zero, apperrors.WithMetadata(
		apperrors.CodeSelectionFailed,
		fmt.Sprintf("weighted draw %.6f exceeds cumulative weight %.6f", r, sum),
		map[string]string{"options": fmt.Sprint(len(options))},
	)
}
