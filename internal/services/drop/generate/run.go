package generate

import (
	"github.com/thecardroom/nftgen/internal/platform/id"
	"github.com/thecardroom/nftgen/internal/random"
)

// Run is the mutable state of one generation run. It is owned by a single
// generator call and must not be shared.
type Run struct {
	ID     string
	Seed   int64
	Source random.Source
	Guard  *Guard

	accepted int
	rejected int
}

// NewRun starts a run with a fresh id and a PCG source for seed.
func NewRun(seed int64) (*Run, error) {
	runID, err := id.NewID()
	if err != nil {
		return nil, err
	}
	return NewRunWithSource(runID, seed, random.NewPCG(seed)), nil
}

// NewRunWithSource starts a run drawing from src. seed is informational.
func NewRunWithSource(runID string, seed int64, src random.Source) *Run {
	return &Run{ID: runID, Seed: seed, Source: src, Guard: NewGuard()}
}

// Accepted is the number of assets emitted so far.
func (r *Run) Accepted() int { return r.accepted }

// Rejected is the number of samples discarded as duplicates.
func (r *Run) Rejected() int { return r.rejected }

// Retry budget bounds for consecutive rejected samples in a random drop.
const (
	MinRetryBudget = 1000
	MaxRetryBudget = 1_000_000
	retryFactor    = 20
)

// RetryBudget derives the consecutive-rejection ceiling from the number of
// distinct combinations a catalog can produce.
func RetryBudget(combinations int64) int {
	if combinations <= 0 {
		return MinRetryBudget
	}
	if combinations > MaxRetryBudget/retryFactor {
		return MaxRetryBudget
	}
	return max(MinRetryBudget, int(combinations)*retryFactor)
}
