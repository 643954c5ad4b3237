// Package mesh projects arbitrary dimensional points onto the feasible region
// of a search space.
package mesh

import (
	"errors"
	"fmt"
	"math"
)

var ErrBounds = errors.New("invalid bounds")

// Mesh is an interface for projecting arbitrary dimensional points onto some
// kind of (potentially bounded) region.
type Mesh interface {
	// Nearest returns the point in the region nearest to p.
	Nearest(p []float64) []float64
}

// Bounded is a continuous box defined by per-dimension closed intervals
// [Lower[i], Upper[i]].
type Bounded struct {
	Lower []float64
	Upper []float64
}

// NewBounded checks that lower and upper describe a non-empty box and returns
// it.
func NewBounded(lower, upper []float64) (*Bounded, error) {
	if len(lower) != len(upper) {
		return nil, fmt.Errorf("%w: lower has %v dims, upper has %v", ErrBounds, len(lower), len(upper))
	} else if len(lower) == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", ErrBounds)
	}
	for i := range lower {
		if math.IsNaN(lower[i]) || math.IsNaN(upper[i]) || lower[i] > upper[i] {
			return nil, fmt.Errorf("%w: dimension %v has lower %v > upper %v", ErrBounds, i, lower[i], upper[i])
		}
	}
	return &Bounded{
		Lower: append([]float64{}, lower...),
		Upper: append([]float64{}, upper...),
	}, nil
}

func (m *Bounded) Dims() int { return len(m.Lower) }

// Nearest returns the nearest point inside the box to p by sliding each
// dimensional position to the nearest value inside bounds.
func (m *Bounded) Nearest(p []float64) []float64 {
	pdup := make([]float64, len(p))
	copy(pdup, p)
	m.Clip(pdup)
	return pdup
}

// Clip is Nearest without the copy: p is modified in place.
func (m *Bounded) Clip(p []float64) {
	for i := range p {
		p[i] = math.Max(m.Lower[i], p[i])
		p[i] = math.Min(m.Upper[i], p[i])
	}
}

// Contains reports whether every coordinate of p lies within its closed
// interval.
func (m *Bounded) Contains(p []float64) bool {
	if len(p) != len(m.Lower) {
		return false
	}
	for i := range p {
		if p[i] < m.Lower[i] || p[i] > m.Upper[i] {
			return false
		}
	}
	return true
}
