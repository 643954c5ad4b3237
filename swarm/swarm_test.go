package swarm

import (
	"database/sql"
	"errors"
	"math"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/mesh"
)

const seed = 7

var quadratic = psosearch.SimpleObjectiver(func(x []float64) float64 {
	return (x[0]-3)*(x[0]-3) + (x[1]+1)*(x[1]+1)
})

var reference = psosearch.Combination{Particles: 30, Inertia: 0.7, Cognition: 1.5, Social: 1.5}

func buildIter(t *testing.T, obj psosearch.Objectiver, low, up []float64, c psosearch.Combination, opts ...Option) *Iterator {
	m, err := mesh.NewBounded(low, up)
	if err != nil {
		t.Fatal(err)
	}
	it, err := New(obj, m, c, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return it
}

func TestBoundsInvariant(t *testing.T) {
	low := []float64{-1, 2, -0.5}
	up := []float64{1, 3, 0.5}
	// a large inertia and factors throw particles far outside the box
	c := psosearch.Combination{Particles: 25, Inertia: 1.5, Cognition: 3, Social: 3}
	obj := psosearch.SimpleObjectiver(func(x []float64) float64 { return -x[0] - x[1] + x[2] })

	it := buildIter(t, obj, low, up, c, Rand(psosearch.NewRand(seed)))
	m := it.Mesh.(*mesh.Bounded)
	for iter := 0; iter < 100; iter++ {
		if _, _, err := it.Iterate(); err != nil {
			t.Fatal(err)
		}
		for _, p := range it.Pop {
			if !m.Contains(p.Pos()) {
				t.Fatalf("iter %v: particle %v at %v outside bounds", iter, p.Id, p.Pos())
			}
		}
	}
}

func TestMonotonicBests(t *testing.T) {
	it := buildIter(t, quadratic, []float64{-10, -10}, []float64{10, 10}, reference, Rand(psosearch.NewRand(seed)))

	prevBest := it.Best().Val
	prevPersonal := make([]float64, len(it.Pop))
	for i, p := range it.Pop {
		prevPersonal[i] = p.Best.Val
	}

	for iter := 0; iter < 50; iter++ {
		best, _, err := it.Iterate()
		if err != nil {
			t.Fatal(err)
		}
		if best.Val > prevBest {
			t.Errorf("iter %v: global best rose from %v to %v", iter, prevBest, best.Val)
		}
		prevBest = best.Val

		for i, p := range it.Pop {
			if p.Best.Val > prevPersonal[i] {
				t.Errorf("iter %v: particle %v personal best rose from %v to %v", iter, i, prevPersonal[i], p.Best.Val)
			}
			if p.Best.Val < best.Val {
				t.Errorf("iter %v: particle %v personal best %v below global best %v", iter, i, p.Best.Val, best.Val)
			}
			prevPersonal[i] = p.Best.Val
		}
	}
}

func TestInitialBestFirstOnTies(t *testing.T) {
	flat := psosearch.SimpleObjectiver(func(x []float64) float64 { return 1 })
	points := []psosearch.Point{
		psosearch.NewPoint([]float64{1, 1}, math.Inf(1)),
		psosearch.NewPoint([]float64{2, 2}, math.Inf(1)),
		psosearch.NewPoint([]float64{3, 3}, math.Inf(1)),
	}
	rng := psosearch.NewRand(seed)
	it, err := NewIterator(flat, nil, NewPopulation(points, rng), Rand(rng))
	if err != nil {
		t.Fatal(err)
	}
	if best := it.Best(); best.At(0) != 1 || best.Val != 1 {
		t.Errorf("want first particle as best on ties, got %v (val %v)", best.Pos(), best.Val)
	}
}

func TestZeroIterations(t *testing.T) {
	c := psosearch.Combination{Particles: 10, Inertia: 0.5, Cognition: 1, Social: 1}
	best, err := Optimize(quadratic, []float64{-10, -10}, []float64{10, 10}, c, 0, Rand(psosearch.NewRand(seed)))
	if err != nil {
		t.Fatal(err)
	}

	// the same seed reproduces the initial population
	it := buildIter(t, quadratic, []float64{-10, -10}, []float64{10, 10}, c, Rand(psosearch.NewRand(seed)))
	min := math.Inf(1)
	for _, p := range it.Pop {
		min = math.Min(min, p.Val)
	}
	if best.Val != min {
		t.Errorf("zero iterations: want initial minimum %v, got %v", min, best.Val)
	}
}

func TestOptimizeConvergence(t *testing.T) {
	ntrials := 10
	nsuccess := 0
	for i := 0; i < ntrials; i++ {
		best, err := Optimize(quadratic, []float64{-10, -10}, []float64{10, 10}, reference, 50,
			Rand(psosearch.NewRand(int64(seed+i))))
		if err != nil {
			t.Fatal(err)
		}
		if best.Val <= 1e-2 && math.Abs(best.At(0)-3) < 0.1 && math.Abs(best.At(1)+1) < 0.1 {
			nsuccess++
		} else {
			t.Logf("[INFO] trial %v: got %v at %v", i, best.Val, best.Pos())
		}
	}
	if nsuccess < 8 {
		t.Errorf("only %v/%v trials converged to (3, -1)", nsuccess, ntrials)
	}
}

func TestEvalersGiveSameRun(t *testing.T) {
	low, up := []float64{-10, -10}, []float64{10, 10}
	evalers := []psosearch.Evaler{
		psosearch.BatchEvaler{},
		psosearch.ParallelEvaler{MaxGoroutines: 3},
	}

	want, err := Optimize(quadratic, low, up, reference, 20, Rand(psosearch.NewRand(seed)))
	if err != nil {
		t.Fatal(err)
	}
	for _, ev := range evalers {
		got, err := Optimize(quadratic, low, up, reference, 20, Rand(psosearch.NewRand(seed)), Evaler(ev))
		if err != nil {
			t.Fatal(err)
		}
		if got.Val != want.Val || got.At(0) != want.At(0) || got.At(1) != want.At(1) {
			t.Errorf("%T: want %v at %v, got %v at %v", ev, want.Val, want.Pos(), got.Val, got.Pos())
		}
	}
}

func TestOptimizeInvalid(t *testing.T) {
	c := psosearch.Combination{Particles: 5, Inertia: 0.5, Cognition: 1, Social: 1}

	if _, err := Optimize(quadratic, []float64{0, 0}, []float64{1, -1}, c, 10); !errors.Is(err, mesh.ErrBounds) {
		t.Errorf("inverted bounds: want ErrBounds, got %v", err)
	}
	if _, err := Optimize(quadratic, []float64{0, 0}, []float64{1, 1}, c, -1); !errors.Is(err, ErrIterations) {
		t.Errorf("negative maxiter: want ErrIterations, got %v", err)
	}
	c.Particles = 0
	if _, err := Optimize(quadratic, []float64{0, 0}, []float64{1, 1}, c, 10); !errors.Is(err, ErrParticles) {
		t.Errorf("zero particles: want ErrParticles, got %v", err)
	}
}

func TestObjectiveErrPropagates(t *testing.T) {
	fail := errors.New("overflow")
	count := 0
	obj := objFunc(func(x []float64) (float64, error) {
		count++
		if count > 15 {
			return math.Inf(1), fail
		}
		return x[0] * x[0], nil
	})

	_, err := Optimize(obj, []float64{-1}, []float64{1}, psosearch.Combination{Particles: 10, Inertia: 0.5, Cognition: 1, Social: 1}, 5,
		Rand(psosearch.NewRand(seed)))
	if !errors.Is(err, fail) {
		t.Errorf("want objective error to propagate, got %v", err)
	}
}

type objFunc func([]float64) (float64, error)

func (f objFunc) Objective(v []float64) (float64, error) { return f(v) }

func TestDb(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	c := psosearch.Combination{Particles: 6, Inertia: 0.7, Cognition: 1.5, Social: 1.5}
	niter := 4
	best, err := Optimize(quadratic, []float64{-10, -10}, []float64{10, 10}, c, niter,
		Rand(psosearch.NewRand(seed)), DB(db))
	if err != nil {
		t.Fatal(err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM " + TblParticles).Scan(&count)
	if err != nil {
		t.Errorf("[ERROR] particles table query failed: %v", err)
	} else if want := c.Particles * (niter + 1); count != want {
		t.Errorf("[ERROR] particles table has %v rows, want %v", count, want)
	}

	err = db.QueryRow("SELECT COUNT(*) FROM " + TblParticlesBest).Scan(&count)
	if err != nil {
		t.Errorf("[ERROR] particle best table query failed: %v", err)
	} else if count == 0 {
		t.Errorf("[ERROR] particle best table has no rows")
	}

	var val float64
	err = db.QueryRow("SELECT val FROM " + TblBest + " ORDER BY iter DESC LIMIT 1").Scan(&val)
	if err != nil {
		t.Errorf("[ERROR] best table query failed: %v", err)
	} else if val != best.Val {
		t.Errorf("[ERROR] last recorded best %v != returned best %v", val, best.Val)
	}
}
