// Package report analyzes recorded search runs: how runtime scales with the
// number of workers and which hyperparameters most often produce the best
// scores.
package report

import (
	"errors"
	"math"
	"sort"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/record"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNoRows     = errors.New("no rows to analyze")
	ErrNoBaseline = errors.New("no single worker runs to compare against")
)

// Scaling summarizes every run made with the same number of workers.
type Scaling struct {
	Workers int
	Runs    int
	// Mean is the mean runtime in seconds.
	Mean float64
	// SpeedUp is the single worker mean divided by Mean.
	SpeedUp float64
	// Efficiency is SpeedUp divided by Workers.
	Efficiency float64
}

// Summarize groups rows by worker count, ascending.  If no row used a single
// worker the means are still returned, with NaN speed-up and efficiency, along
// with ErrNoBaseline.
func Summarize(rows []record.Row) ([]Scaling, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	times := map[int][]float64{}
	for _, r := range rows {
		times[r.Workers] = append(times[r.Workers], r.Elapsed)
	}

	summary := make([]Scaling, 0, len(times))
	for w, ts := range times {
		summary = append(summary, Scaling{Workers: w, Runs: len(ts), Mean: stat.Mean(ts, nil)})
	}
	sort.Slice(summary, func(i, j int) bool { return summary[i].Workers < summary[j].Workers })

	base, ok := times[1]
	t1 := math.NaN()
	if ok {
		t1 = stat.Mean(base, nil)
	}
	for i := range summary {
		s := &summary[i]
		s.SpeedUp = t1 / s.Mean
		s.Efficiency = s.SpeedUp / float64(s.Workers)
	}
	if !ok {
		return summary, ErrNoBaseline
	}
	return summary, nil
}

// Tally counts how often each value of one hyperparameter occurs.  Values are
// ascending.
type Tally struct {
	Name   string
	Values []float64
	Counts []float64
}

func tally(name string, xs []float64) Tally {
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)

	t := Tally{Name: name}
	for i, x := range sorted {
		if i == 0 || x != sorted[i-1] {
			t.Values = append(t.Values, x)
			t.Counts = append(t.Counts, 0)
		}
		t.Counts[len(t.Counts)-1]++
	}
	return t
}

// Mode returns the most frequent value, the lowest one on ties.
func (t Tally) Mode() float64 {
	if len(t.Values) == 0 {
		return math.NaN()
	}
	return t.Values[floats.MaxIdx(t.Counts)]
}

// Params tallies the hyperparameters of the best rows.
type Params struct {
	// N is the number of rows within tolerance of the best score.
	N         int
	Best      float64
	Particles Tally
	Inertia   Tally
	Cognition Tally
	Social    Tally
}

func (p Params) Tallies() []Tally {
	return []Tally{p.Particles, p.Inertia, p.Cognition, p.Social}
}

// Combination returns the modal value of every hyperparameter.
func (p Params) Combination() psosearch.Combination {
	return psosearch.Combination{
		Particles: int(p.Particles.Mode()),
		Inertia:   p.Inertia.Mode(),
		Cognition: p.Cognition.Mode(),
		Social:    p.Social.Mode(),
	}
}

// BestParams tallies the combinations of every row whose score is within tol
// of the lowest score.
func BestParams(rows []record.Row, tol float64) (Params, error) {
	if len(rows) == 0 {
		return Params{}, ErrNoRows
	}

	best := math.Inf(1)
	for _, r := range rows {
		best = math.Min(best, r.Score)
	}
	if math.IsInf(best, 1) {
		return Params{}, ErrNoRows
	}

	var np, w, c1, c2 []float64
	for _, r := range rows {
		if r.Score-best > tol {
			continue
		}
		np = append(np, float64(r.Combo.Particles))
		w = append(w, r.Combo.Inertia)
		c1 = append(c1, r.Combo.Cognition)
		c2 = append(c2, r.Combo.Social)
	}
	return Params{
		N:         len(np),
		Best:      best,
		Particles: tally("particles", np),
		Inertia:   tally("inertia", w),
		Cognition: tally("cognition", c1),
		Social:    tally("social", c2),
	}, nil
}
