// Package penalty converts constrained minimization problems into
// unconstrained ones with a static quadratic penalty:
//
//    score(x) = f(x) + R * (sum_i h_i(x)^2 + sum_j max(0, g_j(x))^2)
//
// for equality constraints h_i(x) = 0 and inequality constraints g_j(x) <= 0.
// R stays fixed for the whole run.
package penalty

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultR is the penalty weight used when Problem.R is zero.
const DefaultR = 1e5

var ErrNonFinite = errors.New("objective is not finite")

// Constraint returns the constraint function value at x.  Its meaning
// (h(x) = 0 or g(x) <= 0) depends on which Problem list it is placed in.
type Constraint func(x []float64) float64

type Problem struct {
	// Func is the raw function to minimize.
	Func func(x []float64) float64
	// Equality holds constraints of the form h(x) = 0.
	Equality []Constraint
	// Inequality holds constraints of the form g(x) <= 0.
	Inequality []Constraint
	R          float64
}

func (p Problem) weight() float64 {
	if p.R == 0 {
		return DefaultR
	}
	return p.R
}

// Violation returns the unweighted sum of squared constraint violations at x.
func (p Problem) Violation(x []float64) float64 {
	tot := 0.0
	for _, h := range p.Equality {
		v := h(x)
		tot += v * v
	}
	for _, g := range p.Inequality {
		v := math.Max(0, g(x))
		tot += v * v
	}
	return tot
}

// Feasible reports whether x violates no constraint by more than tol.
func (p Problem) Feasible(x []float64, tol float64) bool {
	for _, h := range p.Equality {
		if math.Abs(h(x)) > tol {
			return false
		}
	}
	for _, g := range p.Inequality {
		if g(x) > tol {
			return false
		}
	}
	return true
}

// Score returns the penalized objective without any finiteness check.
func (p Problem) Score(x []float64) float64 {
	return p.Func(x) + p.weight()*p.Violation(x)
}

// Objective implements psosearch.Objectiver.  NaN or infinite scores are
// returned as +infinity together with ErrNonFinite.
func (p Problem) Objective(x []float64) (float64, error) {
	val := p.Score(x)
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return math.Inf(1), fmt.Errorf("%w: %v at %v", ErrNonFinite, val, x)
	}
	return val, nil
}

// ObjectiveBatch implements psosearch.BatchObjectiver.
func (p Problem) ObjectiveBatch(x *mat.Dense) ([]float64, error) {
	r, _ := x.Dims()
	vals := make([]float64, r)
	for i := 0; i < r; i++ {
		val, err := p.Objective(x.RawRowView(i))
		vals[i] = val
		if err != nil {
			return vals, err
		}
	}
	return vals, nil
}
