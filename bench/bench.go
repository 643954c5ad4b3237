// Package bench provides the objective functions searched by psosearch: the
// constrained problems the search was built for plus classic test functions
// from http://en.wikipedia.org/wiki/Test_functions_for_optimization.
package bench

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/penalty"
)

var (
	sin  = math.Sin
	abs  = math.Abs
	sqrt = math.Sqrt
)

var ErrUnknown = errors.New("unknown benchmark function")

var AllFuncs = []Func{
	Quadratic{},
	Parabola{},
	Sphere3{},
	Himmelblau{},
	Ackley{},
	Eggholder{},
	Styblinski{NDim: 2},
	Styblinski{NDim: 10},
	Rosenbrock{NDim: 2},
	Rosenbrock{NDim: 10},
}

type Func interface {
	Eval(v []float64) float64
	Bounds() (low, up []float64)
	Optima() []psosearch.Point
	Name() string
}

// Constrained is implemented by functions whose Eval is a penalized score.
type Constrained interface {
	Func
	Problem() penalty.Problem
}

// ByName looks a function up in AllFuncs, ignoring case.
func ByName(name string) (Func, error) {
	for _, fn := range AllFuncs {
		if strings.EqualFold(fn.Name(), name) {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w %q (have %v)", ErrUnknown, name, strings.Join(Names(), ", "))
}

func Names() []string {
	names := make([]string, len(AllFuncs))
	for i, fn := range AllFuncs {
		names[i] = fn.Name()
	}
	sort.Strings(names)
	return names
}

// Objective adapts fn for the optimizer.  Constrained functions are
// evaluated through their penalty.Problem so non-finite scores surface as
// errors.
func Objective(fn Func) psosearch.Objectiver {
	if c, ok := fn.(Constrained); ok {
		return c.Problem()
	}
	return psosearch.SimpleObjectiver(fn.Eval)
}

func InsideBounds(p []float64, fn Func) bool {
	low, up := fn.Bounds()
	for i := range p {
		if p[i] < low[i] || p[i] > up[i] {
			return false
		}
	}
	return true
}

func fill(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

// Quadratic is the unconstrained reference problem (x0-3)^2 + (x1+1)^2.
type Quadratic struct{}

func (fn Quadratic) Name() string { return "Quadratic" }

func (fn Quadratic) Eval(v []float64) float64 {
	return (v[0]-3)*(v[0]-3) + (v[1]+1)*(v[1]+1)
}

func (fn Quadratic) Bounds() (low, up []float64) {
	return []float64{-10, -10}, []float64{10, 10}
}

func (fn Quadratic) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{3, -1}, 0),
	}
}

// Parabola minimizes x0^2 + (x1-1)^2 on the curve x1 = x0^2.
type Parabola struct{}

func (fn Parabola) Name() string { return "Parabola" }

func (fn Parabola) Problem() penalty.Problem {
	return penalty.Problem{
		Func: func(x []float64) float64 { return x[0]*x[0] + (x[1]-1)*(x[1]-1) },
		Equality: []penalty.Constraint{
			func(x []float64) float64 { return x[1] - x[0]*x[0] },
		},
	}
}

func (fn Parabola) Eval(v []float64) float64 { return fn.Problem().Score(v) }

func (fn Parabola) Bounds() (low, up []float64) {
	return []float64{-1, -1}, []float64{1, 1}
}

func (fn Parabola) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{math.Sqrt2 / 2, 0.5}, 0.75),
		psosearch.NewPoint([]float64{-math.Sqrt2 / 2, 0.5}, 0.75),
	}
}

// Sphere3 minimizes 1000 - x0^2 - 2x1^2 - x2^2 - x0x1 - x0x2 on the
// intersection of the sphere |x| = 5 with the plane 8x0 + 14x1 + 7x2 = 56.
type Sphere3 struct{}

func (fn Sphere3) Name() string { return "Sphere3" }

func (fn Sphere3) Problem() penalty.Problem {
	return penalty.Problem{
		Func: func(x []float64) float64 {
			return 1000 - x[0]*x[0] - 2*x[1]*x[1] - x[2]*x[2] - x[0]*x[1] - x[0]*x[2]
		},
		Equality: []penalty.Constraint{
			func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] + x[2]*x[2] - 25 },
			func(x []float64) float64 { return 8*x[0] + 14*x[1] + 7*x[2] - 56 },
		},
	}
}

func (fn Sphere3) Eval(v []float64) float64 { return fn.Problem().Score(v) }

func (fn Sphere3) Bounds() (low, up []float64) {
	return fill(3, 0), fill(3, 10)
}

func (fn Sphere3) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{3.512, 0.217, 3.552}, 961.715),
	}
}

// Himmelblau is the five variable, six inequality problem from Himmelblau's
// "Applied Nonlinear Programming".
type Himmelblau struct{}

func (fn Himmelblau) Name() string { return "Himmelblau" }

func (fn Himmelblau) Problem() penalty.Problem {
	// u, v and w are the three constrained quantities; each must lie in a band.
	u := func(x []float64) float64 {
		return 85.334407 + 0.0056858*x[1]*x[4] + 0.0006262*x[0]*x[3] - 0.0022053*x[2]*x[4]
	}
	v := func(x []float64) float64 {
		return 80.51249 + 0.0071317*x[1]*x[4] + 0.0029955*x[0]*x[1] + 0.0021813*x[2]*x[2]
	}
	w := func(x []float64) float64 {
		return 9.300961 + 0.0047026*x[2]*x[4] + 0.0012547*x[0]*x[2] + 0.0019085*x[2]*x[3]
	}
	return penalty.Problem{
		Func: func(x []float64) float64 {
			return 5.3578547*x[2]*x[2] + 0.8356891*x[0]*x[4] + 37.293239*x[0] - 40792.141
		},
		Inequality: []penalty.Constraint{
			func(x []float64) float64 { return u(x) - 92 },
			func(x []float64) float64 { return -u(x) },
			func(x []float64) float64 { return v(x) - 110 },
			func(x []float64) float64 { return 90 - v(x) },
			func(x []float64) float64 { return w(x) - 25 },
			func(x []float64) float64 { return 20 - w(x) },
		},
	}
}

func (fn Himmelblau) Eval(v []float64) float64 { return fn.Problem().Score(v) }

func (fn Himmelblau) Bounds() (low, up []float64) {
	return []float64{78, 33, 27, 27, 27}, []float64{102, 45, 45, 45, 45}
}

func (fn Himmelblau) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{78, 33, 29.995, 45, 36.7758}, -30665.539),
	}
}

type Ackley struct{}

func (fn Ackley) Name() string { return "Ackley" }

func (fn Ackley) Eval(v []float64) float64 {
	if !InsideBounds(v, fn) {
		return math.Inf(1)
	}

	x := v[0]
	y := v[1]
	return -20*math.Exp(-0.2*math.Sqrt(0.5*(x*x+y*y))) -
		math.Exp(0.5*(math.Cos(2*math.Pi*x)+math.Cos(2*math.Pi*y))) +
		20 + math.E
}

func (fn Ackley) Bounds() (low, up []float64) {
	return []float64{-5, -5}, []float64{5, 5}
}

func (fn Ackley) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{0, 0}, 0),
	}
}

type Eggholder struct{}

func (fn Eggholder) Name() string { return "Eggholder" }

func (fn Eggholder) Eval(v []float64) float64 {
	if !InsideBounds(v, fn) {
		return math.Inf(1)
	}

	x := v[0]
	y := v[1]
	return -(y+47)*sin(sqrt(abs(y+x/2+47))) - x*sin(sqrt(abs(x-(y+47))))
}

func (fn Eggholder) Bounds() (low, up []float64) {
	return []float64{-512, -512}, []float64{512, 512}
}

func (fn Eggholder) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint([]float64{512, 404.2319}, -959.6407),
	}
}

type Styblinski struct {
	NDim int
}

func (fn Styblinski) Name() string { return fmt.Sprintf("Styblinski_%vD", fn.NDim) }

func (fn Styblinski) Eval(x []float64) float64 {
	if !InsideBounds(x, fn) {
		return math.Inf(1)
	}

	tot := 0.0
	for _, v := range x {
		tot += math.Pow(v, 4) - 16*math.Pow(v, 2) + 5*v
	}
	return tot / 2
}

func (fn Styblinski) Bounds() (low, up []float64) {
	return fill(fn.NDim, -5), fill(fn.NDim, 5)
}

func (fn Styblinski) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint(fill(fn.NDim, -2.903534), -39.16599*float64(fn.NDim)),
	}
}

type Rosenbrock struct {
	NDim int
}

func (fn Rosenbrock) Name() string { return fmt.Sprintf("Rosenbrock_%vD", fn.NDim) }

func (fn Rosenbrock) Eval(x []float64) float64 {
	if !InsideBounds(x, fn) {
		return math.Inf(1)
	}

	tot := 0.0
	for i := 0; i < fn.NDim-1; i++ {
		tot += 100*math.Pow(x[i+1]-x[i]*x[i], 2) + math.Pow(x[i]-1, 2)
	}
	return tot
}

func (fn Rosenbrock) Bounds() (low, up []float64) {
	return fill(fn.NDim, -30), fill(fn.NDim, 30)
}

func (fn Rosenbrock) Optima() []psosearch.Point {
	return []psosearch.Point{
		psosearch.NewPoint(fill(fn.NDim, 1), 0),
	}
}
