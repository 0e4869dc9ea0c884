package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	tolerance = decimal.NewFromFloat(WeightTolerance)
)

// Violation is one broken catalog invariant.
type Violation struct {
	// File is the definition file the violation was found in.
	File    string
	Message string
}

func (v Violation) String() string {
	if v.File == "" {
		return v.Message
	}
	return v.File + ": " + v.Message
}

// ValidationError lists every violation found while loading a catalog.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return strings.Join(lines, "; ")
}

// weightSumOK reports whether sum lies within WeightTolerance of 100.
func weightSumOK(sum decimal.Decimal) bool {
	return sum.Sub(hundred).Abs().LessThanOrEqual(tolerance)
}

func checkWeight(w decimal.Decimal) error {
	if w.IsNegative() || w.GreaterThan(hundred) {
		return fmt.Errorf("weight %s outside [0, 100]", w.String())
	}
	return nil
}

func reservedKey(key string) bool {
	for _, k := range ReservedKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
