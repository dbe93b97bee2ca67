package config

import (
	"fmt"
	"math"
)

// MinSpan is the smallest gap kept between the bounds of a Range when edited.
const MinSpan = 0.01

// Range is a closed numeric interval [Lo, Hi] with Lo < Hi.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Validate returns ErrInvalidRange unless both bounds are finite and Lo < Hi.
func (r Range) Validate() error {
	if !finite(r.Lo) || !finite(r.Hi) || !(r.Lo < r.Hi) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidRange, r.Lo, r.Hi)
	}
	return nil
}

// SetLo sets the lower bound, clamped to stay at least MinSpan below Hi.
func (r *Range) SetLo(v float64) {
	r.Lo = min(v, r.Hi-MinSpan)
}

// SetHi sets the upper bound, clamped to stay at least MinSpan above Lo.
func (r *Range) SetHi(v float64) {
	r.Hi = max(v, r.Lo+MinSpan)
}

// Span returns Hi - Lo.
func (r Range) Span() float64 {
	return r.Hi - r.Lo
}

// Union returns the smallest range containing both r and o.
func (r Range) Union(o Range) Range {
	return Range{Lo: min(r.Lo, o.Lo), Hi: max(r.Hi, o.Hi)}
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}
