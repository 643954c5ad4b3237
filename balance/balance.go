// Package balance splits weighted hyperparameter combinations across a fixed
// number of workers using the Longest-Processing-Time-first heuristic: items
// are taken heaviest first and each goes to the worker with the smallest
// accumulated weight.  The resulting makespan is within one item weight of
// optimal.
package balance

import (
	"errors"
	"fmt"
	"sort"

	"github.com/petar/GoLLRB/llrb"
	"github.com/samtorrez84/psosearch"
)

var ErrWorkers = errors.New("worker count must be positive")

// CostFunc estimates the relative cost of optimizing with a combination.
type CostFunc func(c psosearch.Combination) float64

// SquaredParticles estimates cost as the square of the particle count.
func SquaredParticles(c psosearch.Combination) float64 {
	n := float64(c.Particles)
	return n * n
}

// LinearParticles estimates cost as the particle count, i.e. proportional to
// evaluations for a fixed iteration count.
func LinearParticles(c psosearch.Combination) float64 {
	return float64(c.Particles)
}

// CostByName returns the cost model registered under name ("squared" or
// "linear").
func CostByName(name string) (CostFunc, error) {
	switch name {
	case "squared", "":
		return SquaredParticles, nil
	case "linear":
		return LinearParticles, nil
	}
	return nil, fmt.Errorf("unknown cost model %q", name)
}

type Item struct {
	Combo  psosearch.Combination
	Weight float64
}

// Weigh pairs every combination with its estimated cost.
func Weigh(combos []psosearch.Combination, cost CostFunc) []Item {
	items := make([]Item, len(combos))
	for i, c := range combos {
		items[i] = Item{Combo: c, Weight: cost(c)}
	}
	return items
}

// WorkItem is the ordered list of combinations assigned to one worker.
// Weight is the accumulated estimate and only used for balancing.
type WorkItem struct {
	Combos []psosearch.Combination
	Weight float64
}

type load struct {
	idx    int
	weight float64
}

// Less orders loads by weight, then by worker index.
func (l load) Less(than llrb.Item) bool {
	o := than.(load)
	if l.weight != o.weight {
		return l.weight < o.weight
	}
	return l.idx < o.idx
}

// Partition assigns items to k workers.  Items are considered in order of
// descending weight (ties keep their input order) and each goes to the
// currently lightest worker, ties broken by lowest worker index.  When k
// exceeds the number of items some work items are empty.
func Partition(items []Item, k int) ([]WorkItem, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %v", ErrWorkers, k)
	}

	sorted := append([]Item{}, items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	work := make([]WorkItem, k)
	loads := llrb.New()
	for i := 0; i < k; i++ {
		loads.InsertNoReplace(load{idx: i})
	}

	for _, item := range sorted {
		l := loads.DeleteMin().(load)
		work[l.idx].Combos = append(work[l.idx].Combos, item.Combo)
		work[l.idx].Weight += item.Weight
		l.weight = work[l.idx].Weight
		loads.InsertNoReplace(l)
	}
	return work, nil
}
