// Package search runs a parallel hyperparameter search: combinations are
// balanced across a fixed number of workers, each worker optimizes its
// combinations one after another with its own swarm and random source, and
// the workers' local bests are folded into one global best.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/balance"
	"github.com/samtorrez84/psosearch/mesh"
	"github.com/samtorrez84/psosearch/space"
	"github.com/samtorrez84/psosearch/swarm"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoFeasible     = errors.New("no feasible result found")
	ErrNoCombinations = errors.New("no combinations to evaluate")
	ErrPanic          = errors.New("objective panicked")
)

// Record is a best score together with the combination and the solution
// that produced it.
type Record struct {
	Val   float64
	Combo psosearch.Combination
	Pos   []float64
}

// Aggregator holds the global best record and the number of finished
// workers.  Both are only touched under mu.
type Aggregator struct {
	mu        sync.Mutex
	best      Record
	completed int
}

func NewAggregator() *Aggregator {
	return &Aggregator{best: Record{Val: math.Inf(1)}}
}

// Report counts one finished worker and replaces the global best if local is
// non-nil and strictly better.
func (a *Aggregator) Report(local *Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.completed++
	if local != nil && local.Val < a.best.Val {
		a.best = Record{
			Val:   local.Val,
			Combo: local.Combo,
			Pos:   append([]float64{}, local.Pos...),
		}
	}
}

// Best returns the global best record and false if no worker has reported a
// finite result.
func (a *Aggregator) Best() (Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	best := a.best
	best.Pos = append([]float64{}, a.best.Pos...)
	return best, !math.IsInf(best.Val, 1)
}

func (a *Aggregator) Completed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completed
}

// Worker optimizes every combination of its work item in order.  Obj must be
// safe for concurrent use when several workers share it; Rng must not be
// shared.
type Worker struct {
	Id           int
	Work         balance.WorkItem
	Obj          psosearch.Objectiver
	Lower, Upper []float64
	MaxIter      int
	Rng          psosearch.Rng
	// Evaler is passed to the swarm; nil means serial evaluation.
	Evaler psosearch.Evaler
	Log    logrus.FieldLogger
	// Nfail counts skipped combinations after Run returns.
	Nfail int
}

// Run returns the lowest scoring result over the worker's combinations, or
// nil if every combination failed.  A failing combination is logged and
// skipped.  ctx is only checked between combinations.
func (w *Worker) Run(ctx context.Context) (*Record, error) {
	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("worker", w.Id)
	log.Debugf("evaluating %v combinations", len(w.Work.Combos))

	var best *Record
	for _, c := range w.Work.Combos {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		p, err := w.optimize(c)
		if err != nil {
			w.Nfail++
			log.WithField("combination", c.String()).WithError(err).Warn("combination failed, skipping")
			continue
		}
		if best == nil || p.Val < best.Val {
			best = &Record{Val: p.Val, Combo: c, Pos: p.Pos()}
		}
	}
	return best, nil
}

func (w *Worker) optimize(c psosearch.Combination) (p psosearch.Point, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = psosearch.Point{Val: math.Inf(1)}
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	opts := []swarm.Option{swarm.Rand(w.Rng)}
	if w.Evaler != nil {
		opts = append(opts, swarm.Evaler(w.Evaler))
	}
	return swarm.Optimize(w.Obj, w.Lower, w.Upper, c, w.MaxIter, opts...)
}

// Search configures a parallel hyperparameter search.
type Search struct {
	Obj          psosearch.Objectiver
	Lower, Upper []float64
	MaxIter      int
	Workers      int
	// Cost estimates per-combination cost for balancing.  Nil means
	// balance.SquaredParticles.
	Cost balance.CostFunc
	// Seed makes runs reproducible: sampling uses Seed and worker i uses
	// Seed+1+i.  Zero means seeds are taken from the clock.
	Seed int64
	// NewEvaler builds the evaluator for each worker.  Nil means serial.
	NewEvaler func() psosearch.Evaler
	Log       logrus.FieldLogger
}

type Result struct {
	Best      Record
	Workers   int
	Completed int
	// Failed is the number of skipped combinations across all workers.
	Failed  int
	Elapsed time.Duration
}

func (s *Search) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

func (s *Search) seed() int64 {
	if s.Seed == 0 {
		s.Seed = psosearch.TimeSeed()
	}
	return s.Seed
}

func (s *Search) validate(combos []psosearch.Combination) error {
	if s.Workers <= 0 {
		return fmt.Errorf("%w: got %v", balance.ErrWorkers, s.Workers)
	} else if len(combos) == 0 {
		return ErrNoCombinations
	} else if s.MaxIter < 0 {
		return fmt.Errorf("%w: got %v", swarm.ErrIterations, s.MaxIter)
	}
	_, err := mesh.NewBounded(s.Lower, s.Upper)
	return err
}

// Grid searches every combination of sp.
func (s *Search) Grid(ctx context.Context, sp space.Space) (Result, error) {
	if err := sp.Validate(); err != nil {
		return Result{Workers: s.Workers, Best: Record{Val: math.Inf(1)}}, err
	}
	return s.Run(ctx, sp.All())
}

// Random searches n combinations of sp drawn without replacement.
func (s *Search) Random(ctx context.Context, sp space.Space, n int) (Result, error) {
	if err := sp.Validate(); err != nil {
		return Result{Workers: s.Workers, Best: Record{Val: math.Inf(1)}}, err
	}
	return s.Run(ctx, sp.Sample(n, psosearch.NewRand(s.seed())))
}

// Run balances combos across s.Workers workers, runs them in parallel and
// waits for all of them.  Misconfiguration is reported before any worker
// starts.  If no combination succeeded the result is returned with
// ErrNoFeasible.
func (s *Search) Run(ctx context.Context, combos []psosearch.Combination) (Result, error) {
	res := Result{Workers: s.Workers, Best: Record{Val: math.Inf(1)}}
	if err := s.validate(combos); err != nil {
		return res, err
	}

	cost := s.Cost
	if cost == nil {
		cost = balance.SquaredParticles
	}
	work, err := balance.Partition(balance.Weigh(combos, cost), s.Workers)
	if err != nil {
		return res, err
	}

	log := s.log()
	for i, w := range work {
		log.WithFields(logrus.Fields{"worker": i, "combinations": len(w.Combos), "weight": w.Weight}).Debug("work assigned")
	}

	start := time.Now()
	agg := NewAggregator()
	locals := make(chan *Record, len(work))
	folded := make(chan struct{})
	go func() {
		defer close(folded)
		for local := range locals {
			agg.Report(local)
			log.WithField("completed", agg.Completed()).Info("worker finished")
		}
	}()

	var nfail atomic.Int64
	seed := s.seed()
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range work {
		w := &Worker{
			Id:      i,
			Work:    item,
			Obj:     s.Obj,
			Lower:   s.Lower,
			Upper:   s.Upper,
			MaxIter: s.MaxIter,
			Rng:     psosearch.NewRand(seed + 1 + int64(i)),
			Log:     log,
		}
		if s.NewEvaler != nil {
			w.Evaler = s.NewEvaler()
		}
		g.Go(func() error {
			local, err := w.Run(gctx)
			nfail.Add(int64(w.Nfail))
			if err != nil {
				return err
			}
			locals <- local
			return nil
		})
	}

	err = g.Wait()
	close(locals)
	<-folded

	res.Elapsed = time.Since(start)
	res.Completed = agg.Completed()
	res.Failed = int(nfail.Load())
	if err != nil {
		return res, err
	}

	best, ok := agg.Best()
	res.Best = best
	if !ok {
		return res, ErrNoFeasible
	}
	return res, nil
}
