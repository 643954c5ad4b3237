// Package psosearch holds the types shared by the particle swarm optimizer and
// the parallel hyperparameter search built on top of it: points, objectives,
// evaluators and hyperparameter combinations.
package psosearch

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/mat"
)

type Point struct {
	pos []float64
	Val float64
}

func NewPoint(pos []float64, val float64) Point {
	cpos := make([]float64, len(pos))
	copy(cpos, pos)
	return Point{pos: cpos, Val: val}
}

func (p Point) At(i int) float64 { return p.pos[i] }

func (p Point) Len() int { return len(p.pos) }

func (p Point) Pos() []float64 {
	pos := make([]float64, len(p.pos))
	copy(pos, p.pos)
	return pos
}

// Combination is one set of swarm hyperparameters: the number of particles,
// the inertia weight w and the cognitive (c1) and social (c2) learning
// factors.
type Combination struct {
	Particles int
	Inertia   float64
	Cognition float64
	Social    float64
}

func (c Combination) String() string {
	return fmt.Sprintf("{particles:%d w:%g c1:%g c2:%g}", c.Particles, c.Inertia, c.Cognition, c.Social)
}

type Objectiver interface {
	// Objective evaluates the variables in v and returns the objective
	// function value.  The objective function must be framed so that lower
	// values are better. If the evaluation fails, positive infinity should be
	// returned along with an error.
	Objective(v []float64) (float64, error)
}

// BatchObjectiver evaluates a whole population at once.  Row i of x is the
// position of particle i and vals[i] must equal what a per-point Objective
// call would return for that row.
type BatchObjectiver interface {
	ObjectiveBatch(x *mat.Dense) (vals []float64, err error)
}

type Evaler interface {
	// Eval evaluates each point using obj and returns the values and number
	// of function evaluations n.  Unevaluated points should not be returned
	// in the results slice.
	Eval(obj Objectiver, points ...Point) (results []Point, n int, err error)
}

type SerialEvaler struct {
	ContinueOnErr bool
}

func (ev SerialEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	results = make([]Point, 0, len(points))
	for _, p := range points {
		p.Val, err = obj.Objective(p.Pos())
		results = append(results, p)
		if err != nil && !ev.ContinueOnErr {
			return results, len(results), err
		}
	}
	return results, len(results), nil
}

// BatchEvaler packs all points into one matrix and evaluates them with a
// single call.  Objectives that do not implement BatchObjectiver are
// evaluated row by row.
type BatchEvaler struct{}

func (ev BatchEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	if len(points) == 0 {
		return nil, 0, nil
	}

	bobj, ok := obj.(BatchObjectiver)
	if !ok {
		bobj = Batch(obj)
	}

	x := mat.NewDense(len(points), points[0].Len(), nil)
	for i, p := range points {
		x.SetRow(i, p.pos)
	}

	vals, err := bobj.ObjectiveBatch(x)
	if err != nil {
		return nil, len(points), err
	} else if len(vals) != len(points) {
		return nil, len(points), fmt.Errorf("batch objective returned %v values for %v points", len(vals), len(points))
	}

	results = make([]Point, len(points))
	for i, p := range points {
		p.Val = vals[i]
		results[i] = p
	}
	return results, len(results), nil
}

// ParallelEvaler evaluates points concurrently on a bounded goroutine pool.
// The objective must be safe for concurrent use.  On failure the results up
// to and including the first failing point (in input order) are returned.
type ParallelEvaler struct {
	// MaxGoroutines bounds the pool size; zero means GOMAXPROCS.
	MaxGoroutines int
}

func (ev ParallelEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	max := ev.MaxGoroutines
	if max <= 0 {
		max = runtime.GOMAXPROCS(0)
	}

	results = make([]Point, len(points))
	errs := make([]error, len(points))

	p := pool.New().WithMaxGoroutines(max)
	for i, pt := range points {
		i, pt := i, pt
		p.Go(func() {
			pt.Val, errs[i] = obj.Objective(pt.Pos())
			results[i] = pt
		})
	}
	p.Wait()

	for i, err := range errs {
		if err != nil {
			return results[:i+1], len(points), err
		}
	}
	return results, len(points), nil
}

type SimpleObjectiver func([]float64) float64

func (so SimpleObjectiver) Objective(v []float64) (float64, error) { return so(v), nil }

type rowObjectiver struct {
	Objectiver
}

// Batch adapts obj to BatchObjectiver by evaluating each row in turn.
func Batch(obj Objectiver) BatchObjectiver { return rowObjectiver{obj} }

func (ro rowObjectiver) ObjectiveBatch(x *mat.Dense) ([]float64, error) {
	r, _ := x.Dims()
	vals := make([]float64, r)
	for i := 0; i < r; i++ {
		val, err := ro.Objective(x.RawRowView(i))
		vals[i] = val
		if err != nil {
			return vals[:i+1], err
		}
	}
	return vals, nil
}

// ObjectiveLogger wraps an Objectiver and logs every evaluation at debug
// level.  It is safe for concurrent use if the wrapped Objectiver is.
type ObjectiveLogger struct {
	Objectiver
	Log   logrus.FieldLogger
	count atomic.Int64
}

func NewObjectiveLogger(obj Objectiver, log logrus.FieldLogger) *ObjectiveLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ObjectiveLogger{Objectiver: obj, Log: log}
}

func (ol *ObjectiveLogger) Objective(v []float64) (float64, error) {
	val, err := ol.Objectiver.Objective(v)
	n := ol.count.Add(1)
	ol.Log.WithFields(logrus.Fields{"eval": n, "x": v, "val": val}).Debug("objective evaluated")
	return val, err
}

// Count returns the number of evaluations performed so far.
func (ol *ObjectiveLogger) Count() int64 { return ol.count.Load() }
