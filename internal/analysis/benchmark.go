package analysis

import (
	"fmt"
	"math"
)

// BenchmarkCurve maps a search-result rank position to the CTR expected
// at that position. It is an explicit, immutable value carried in the
// engine config so concurrent runs with different curves cannot interfere.
type BenchmarkCurve struct {
	// ByPosition holds expected CTR for positions 1..len(ByPosition).
	ByPosition []float64
	// Tail is the expected CTR for any position beyond the table.
	Tail float64
}

// DefaultBenchmark returns the industry-average curve used when a caller
// does not supply their own.
func DefaultBenchmark() BenchmarkCurve {
	return BenchmarkCurve{
		ByPosition: []float64{0.32, 0.24, 0.18, 0.13, 0.10, 0.07, 0.06, 0.05, 0.04, 0.03},
		Tail:       0.02,
	}
}

// ExpectedCTR returns the benchmark CTR for a (possibly fractional)
// position. Positions are rounded to the nearest rank; anything below 1
// is treated as position 1.
func (b BenchmarkCurve) ExpectedCTR(position float64) float64 {
	pos := int(math.Round(position))
	if pos < 1 {
		pos = 1
	}
	if pos > len(b.ByPosition) {
		return b.Tail
	}
	return b.ByPosition[pos-1]
}

// Validate rejects empty or non-monotonic curves. Expected CTR must never
// increase as position worsens; a curve that violates this would produce
// nonsensical underperformance scores.
func (b BenchmarkCurve) Validate() error {
	if len(b.ByPosition) == 0 {
		return &ConfigurationError{Field: "benchmark", Reason: "curve has no positions"}
	}
	for i, ctr := range b.ByPosition {
		if ctr < 0 || ctr > 1 {
			return &ConfigurationError{Field: "benchmark", Reason: fmt.Sprintf("CTR %v at position %d is outside [0,1]", ctr, i+1)}
		}
		if i > 0 && ctr > b.ByPosition[i-1] {
			return &ConfigurationError{Field: "benchmark", Reason: fmt.Sprintf("curve increases from position %d to %d", i, i+1)}
		}
	}
	if b.Tail < 0 || b.Tail > b.ByPosition[len(b.ByPosition)-1] {
		return &ConfigurationError{Field: "benchmark", Reason: "tail CTR exceeds last tabulated position"}
	}
	return nil
}
