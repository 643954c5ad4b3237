package psosearch

import (
	"errors"
	"math"
	"sync"
	"testing"
)

const errcount = 3

type ErrObj struct {
	mu    sync.Mutex
	count int
}

func (o *ErrObj) Objective(x []float64) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.count++
	if o.count >= errcount {
		return math.Inf(1), errors.New("fake error")
	}
	return 0, nil
}

func TestSerialEvalerErr(t *testing.T) {
	obj := &ErrObj{}
	ev := SerialEvaler{}

	results, n, err := ev.Eval(obj, Point{}, Point{}, Point{}, Point{}, Point{})
	if len(results) != errcount {
		t.Errorf("returned wrong number of results: expected %v, got %v", errcount, len(results))
	}
	if n != errcount {
		t.Errorf("returned wrong evaluation count: expected %v, got %v", errcount, n)
	}
	if err == nil {
		t.Errorf("did not propogate error through return")
	}
}

func TestBatchEvalerErr(t *testing.T) {
	obj := &ErrObj{}
	points := RandPop(5, []float64{0, 0}, []float64{1, 1}, NewRand(1))

	_, _, err := BatchEvaler{}.Eval(obj, points...)
	if err == nil {
		t.Errorf("did not propogate error through return")
	}
}

func TestParallelEvalerErr(t *testing.T) {
	fail := errors.New("fake error")
	obj := SimpleObjectiverErr(func(v []float64) (float64, error) {
		if v[0] > 0.5 {
			return math.Inf(1), fail
		}
		return v[0], nil
	})
	points := []Point{
		NewPoint([]float64{0.1}, math.Inf(1)),
		NewPoint([]float64{0.9}, math.Inf(1)),
		NewPoint([]float64{0.2}, math.Inf(1)),
	}

	results, _, err := ParallelEvaler{MaxGoroutines: 2}.Eval(obj, points...)
	if !errors.Is(err, fail) {
		t.Errorf("want error %v, got %v", fail, err)
	}
	if len(results) != 2 {
		t.Errorf("want results up to the failing point (2), got %v", len(results))
	}
}

type SimpleObjectiverErr func([]float64) (float64, error)

func (so SimpleObjectiverErr) Objective(v []float64) (float64, error) { return so(v) }

func TestEvalersAgree(t *testing.T) {
	fn := SimpleObjectiver(func(v []float64) float64 {
		return (v[0]-3)*(v[0]-3) + (v[1]+1)*(v[1]+1) + v[2]*v[0]
	})
	points := RandPop(40, []float64{-10, -10, -10}, []float64{10, 10, 10}, NewRand(7))

	serial, _, err := SerialEvaler{}.Eval(fn, points...)
	if err != nil {
		t.Fatal(err)
	}
	batch, _, err := BatchEvaler{}.Eval(fn, points...)
	if err != nil {
		t.Fatal(err)
	}
	par, _, err := ParallelEvaler{MaxGoroutines: 4}.Eval(fn, points...)
	if err != nil {
		t.Fatal(err)
	}

	for i := range serial {
		if serial[i].Val != batch[i].Val {
			t.Errorf("point %v: serial %v != batch %v", i, serial[i].Val, batch[i].Val)
		}
		if serial[i].Val != par[i].Val {
			t.Errorf("point %v: serial %v != parallel %v", i, serial[i].Val, par[i].Val)
		}
	}
}

func TestEvalersCopyPositions(t *testing.T) {
	// overwrites its argument, like an objective that projects in place
	fn := SimpleObjectiver(func(v []float64) float64 {
		for i := range v {
			v[i] = 1e9
		}
		return 0
	})

	evalers := []Evaler{SerialEvaler{}, BatchEvaler{}, ParallelEvaler{MaxGoroutines: 2}}
	for _, ev := range evalers {
		points := RandPop(8, []float64{-1, -1}, []float64{1, 1}, NewRand(3))
		want := make([][]float64, len(points))
		for i, p := range points {
			want[i] = p.Pos()
		}

		results, _, err := ev.Eval(fn, points...)
		if err != nil {
			t.Fatal(err)
		}
		for i := range points {
			for j, x := range want[i] {
				if points[i].At(j) != x {
					t.Errorf("%T: input point %v changed to %v", ev, i, points[i].Pos())
				}
				if results[i].At(j) != x {
					t.Errorf("%T: result %v moved to %v, want %v", ev, i, results[i].Pos(), want[i])
				}
			}
		}
	}
}

func TestRandPopBounds(t *testing.T) {
	low := []float64{-1, 5, 0}
	up := []float64{1, 6, 0}
	for _, p := range RandPop(200, low, up, NewRand(3)) {
		if !math.IsInf(p.Val, 1) {
			t.Errorf("initial value should be +Inf, got %v", p.Val)
		}
		for i := 0; i < p.Len(); i++ {
			if p.At(i) < low[i] || p.At(i) > up[i] {
				t.Errorf("coordinate %v = %v outside [%v, %v]", i, p.At(i), low[i], up[i])
			}
		}
	}
}

func TestNewRandSeeded(t *testing.T) {
	a, b := NewRand(42), NewRand(42)
	for i := 0; i < 10; i++ {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %v: same seed gave %v and %v", i, x, y)
		}
	}
	if NewRand(1).Float64() == NewRand(2).Float64() {
		t.Errorf("different seeds gave identical first draw")
	}
}

func TestObjectiveLoggerCounts(t *testing.T) {
	ol := NewObjectiveLogger(SimpleObjectiver(func(v []float64) float64 { return v[0] }), nil)
	points := RandPop(9, []float64{0}, []float64{1}, NewRand(5))
	if _, _, err := (ParallelEvaler{}).Eval(ol, points...); err != nil {
		t.Fatal(err)
	}
	if ol.Count() != 9 {
		t.Errorf("want 9 evaluations, got %v", ol.Count())
	}
}
