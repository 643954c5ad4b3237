// Package space generates swarm hyperparameter combinations from a discrete
// grid, either exhaustively (grid search) or by sampling without replacement
// (random search).
package space

import (
	"errors"
	"fmt"

	"github.com/samtorrez84/psosearch"
	"gonum.org/v1/gonum/stat/combin"
)

var (
	ErrEmpty     = errors.New("parameter space has an empty axis")
	ErrParticles = errors.New("particle counts must be positive")
)

// Space is the cartesian product of four hyperparameter axes.
type Space struct {
	Particles []int     `mapstructure:"particles" yaml:"particles"`
	Inertia   []float64 `mapstructure:"inertia" yaml:"inertia"`
	Cognition []float64 `mapstructure:"cognition" yaml:"cognition"`
	Social    []float64 `mapstructure:"social" yaml:"social"`
}

// Default returns the reference grid of 5*5*5*5 = 625 combinations.
func Default() Space {
	return Space{
		Particles: []int{10, 20, 30, 40, 50},
		Inertia:   []float64{0.1, 0.3, 0.5, 0.7, 0.9},
		Cognition: []float64{0.5, 1.0, 1.5, 2.0, 2.5},
		Social:    []float64{0.5, 1.0, 1.5, 2.0, 2.5},
	}
}

func (s Space) dims() []int {
	return []int{len(s.Particles), len(s.Inertia), len(s.Cognition), len(s.Social)}
}

func (s Space) Validate() error {
	for i, n := range s.dims() {
		if n == 0 {
			return fmt.Errorf("%w: axis %v", ErrEmpty, i)
		}
	}
	for _, n := range s.Particles {
		if n < 1 {
			return fmt.Errorf("%w: got %v", ErrParticles, n)
		}
	}
	return nil
}

// Len returns the number of combinations in the full product.
func (s Space) Len() int {
	n := 1
	for _, d := range s.dims() {
		n *= d
	}
	return n
}

func (s Space) combo(sub []int) psosearch.Combination {
	return psosearch.Combination{
		Particles: s.Particles[sub[0]],
		Inertia:   s.Inertia[sub[1]],
		Cognition: s.Cognition[sub[2]],
		Social:    s.Social[sub[3]],
	}
}

// At returns combination i of the product in the order used by All.
func (s Space) At(i int) psosearch.Combination {
	return s.combo(combin.SubFor(nil, i, s.dims()))
}

// All returns the full product with the social axis varying fastest and the
// particle axis slowest.
func (s Space) All() []psosearch.Combination {
	if s.Len() == 0 {
		return nil
	}
	subs := combin.Cartesian(s.dims())
	combos := make([]psosearch.Combination, len(subs))
	for i, sub := range subs {
		combos[i] = s.combo(sub)
	}
	return combos
}

// Sample draws min(n, Len()) distinct combinations uniformly at random
// without replacement.
func (s Space) Sample(n int, rng psosearch.Rng) []psosearch.Combination {
	tot := s.Len()
	if n > tot {
		n = tot
	}
	if n <= 0 {
		return nil
	}

	idxs := rng.Perm(tot)[:n]
	combos := make([]psosearch.Combination, n)
	for i, idx := range idxs {
		combos[i] = s.At(idx)
	}
	return combos
}
