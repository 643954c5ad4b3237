// Package swarm implements a global-best particle swarm optimizer over a
// box-bounded continuous space.
//
// Each iteration moves every particle with the classic inertia-weight velocity
// update
//
//    v_next = w*v_curr + c1*r1*(p_personal-x) + c2*r2*(p_glob-x)
//
// where r1 and r2 are drawn uniformly from [0, 1) for every particle and
// dimension, clips the new positions back into the bounds, re-evaluates the
// objective and updates personal and global bests on strict improvement.
package swarm

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/samtorrez84/psosearch"
	"github.com/samtorrez84/psosearch/mesh"
	"gonum.org/v1/gonum/floats"
)

// These params are calculated using a constriction factor originally
// described in:
//
//     Clerc and M.  “The swarm and the queen: towards a deterministic and
//     adaptive particle swarm optimization” Proc. 1999 Congress on
//     Evolutionary Computation, pp. 1951-1957
//
// They are only used by NewIterator when no learning factors or inertia are
// given.
const (
	DefaultCognition = 1.496179765663133
	DefaultSocial    = 1.496179765663133
	DefaultInertia   = 0.7298437881283576
)

const (
	// TblParticles is the name of the sql database table that contains
	// positions and values for particles for each iteration.
	TblParticles = "swarmparticles"
	// TblParticlesBest is the name of the sql database table that contains
	// each particle's personal best position at each iteration.
	TblParticlesBest = "swarmparticlesbest"
	// TblBest is the name of the sql database table that contains
	// the best position for the entire swarm at each iteration.
	TblBest = "swarmbest"
)

var (
	ErrParticles  = errors.New("swarm needs at least one particle")
	ErrIterations = errors.New("iteration count must not be negative")
)

type Particle struct {
	Id int
	psosearch.Point
	Vel  []float64
	Best psosearch.Point
}

// Move updates p's velocity and position toward its personal best and gbest
// and projects the new position onto m.  The new position's value is
// +infinity until it is evaluated.
func (p *Particle) Move(gbest psosearch.Point, m mesh.Mesh, inertia, social, cognition float64, rng psosearch.Rng) {
	// update velocity
	for i, currv := range p.Vel {
		// random numbers r1 and r2 MUST go inside this loop and be generated
		// uniquely for each dimension of p's velocity.
		r1 := rng.Float64()
		r2 := rng.Float64()
		p.Vel[i] = inertia*currv +
			cognition*r1*(p.Best.At(i)-p.At(i)) +
			social*r2*(gbest.At(i)-p.At(i))
	}

	// update position
	pos := make([]float64, p.Len())
	for i := range pos {
		pos[i] = p.At(i) + p.Vel[i]
	}
	if m != nil {
		pos = m.Nearest(pos)
	}
	p.Point = psosearch.NewPoint(pos, math.Inf(1))
}

// Update records the evaluated value of p's current position and replaces
// its personal best only on strict improvement.
func (p *Particle) Update(newp psosearch.Point) {
	p.Val = newp.Val
	if p.Val < p.Best.Val {
		p.Best = newp
	}
}

type Population []*Particle

// NewPopulation initializes a population of particles using the given points
// and generates velocities for each dimension initialized to uniform random
// values between -1 and 1.
func NewPopulation(points []psosearch.Point, rng psosearch.Rng) Population {
	pop := make(Population, len(points))
	for i, p := range points {
		pop[i] = &Particle{
			Id:    i,
			Point: p,
			Best:  p,
			Vel:   make([]float64, p.Len()),
		}
	}
	for _, p := range pop {
		for j := range p.Vel {
			p.Vel[j] = psosearch.Uniform(rng, -1, 1)
		}
	}
	return pop
}

// NewPopulationRand creates a population of randomly positioned particles
// uniformly distributed in the box-bounds described by low and up.
func NewPopulationRand(n int, low, up []float64, rng psosearch.Rng) Population {
	points := psosearch.RandPop(n, low, up, rng)
	return NewPopulation(points, rng)
}

func (pop Population) Points() []psosearch.Point {
	points := make([]psosearch.Point, 0, len(pop))
	for _, p := range pop {
		points = append(points, p.Point)
	}
	return points
}

// Best returns the particle with the lowest personal best value.  Ties go to
// the earliest particle.
func (pop Population) Best() *Particle {
	if len(pop) == 0 {
		return nil
	}

	best := pop[0]
	for _, p := range pop[1:] {
		if p.Best.Val < best.Best.Val {
			best = p
		}
	}
	return best
}

type Option func(*Iterator)

// LearnFactors sets the cognitive (c1) and social (c2) coefficients.
func LearnFactors(cognition, social float64) Option {
	return func(it *Iterator) {
		it.Cognition = cognition
		it.Social = social
	}
}

func FixedInertia(v float64) Option {
	return func(it *Iterator) {
		it.Inertia = v
	}
}

// Evaler sets how particle positions are evaluated.  The default is
// psosearch.SerialEvaler{}.
func Evaler(ev psosearch.Evaler) Option {
	return func(it *Iterator) {
		it.Evaler = ev
	}
}

// Rand sets the random source used for initialization and for the r1 and r2
// draws.  The iterator must be the only user of rng.
func Rand(rng psosearch.Rng) Option {
	return func(it *Iterator) {
		it.Rng = rng
	}
}

// DB makes the iterator record every particle's position and personal best
// and the swarm's global best for each iteration into db.
func DB(db *sql.DB) Option {
	return func(it *Iterator) {
		it.Db = db
	}
}

type Iterator struct {
	Pop Population
	Obj psosearch.Objectiver
	psosearch.Evaler
	Mesh      mesh.Mesh
	Cognition float64
	Social    float64
	Inertia   float64
	Rng       psosearch.Rng
	Db        *sql.DB
	count     int
	neval     int
	best      psosearch.Point
}

func newIterator(obj psosearch.Objectiver, m mesh.Mesh, opts []Option) *Iterator {
	it := &Iterator{
		Obj:       obj,
		Evaler:    psosearch.SerialEvaler{},
		Mesh:      m,
		Cognition: DefaultCognition,
		Social:    DefaultSocial,
		Inertia:   DefaultInertia,
		best:      psosearch.Point{Val: math.Inf(1)},
	}
	for _, opt := range opts {
		opt(it)
	}
	if it.Rng == nil {
		it.Rng = psosearch.NewRand(psosearch.TimeSeed())
	}
	return it
}

// New creates a swarm of c.Particles randomly placed particles inside m and
// evaluates their initial positions.  The inertia and learning factors are
// taken from c.
func New(obj psosearch.Objectiver, m *mesh.Bounded, c psosearch.Combination, opts ...Option) (*Iterator, error) {
	if c.Particles < 1 {
		return nil, fmt.Errorf("%w: got %v", ErrParticles, c.Particles)
	}

	it := newIterator(obj, m, opts)
	it.Inertia = c.Inertia
	it.Cognition = c.Cognition
	it.Social = c.Social
	it.Pop = NewPopulationRand(c.Particles, m.Lower, m.Upper, it.Rng)

	if err := it.init(); err != nil {
		return nil, err
	}
	return it, nil
}

// NewIterator wraps an existing population.  The initial positions are
// evaluated before NewIterator returns.
func NewIterator(obj psosearch.Objectiver, m mesh.Mesh, pop Population, opts ...Option) (*Iterator, error) {
	if len(pop) == 0 {
		return nil, ErrParticles
	}
	it := newIterator(obj, m, opts)
	it.Pop = pop
	if err := it.init(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *Iterator) init() error {
	results, n, err := it.Evaler.Eval(it.Obj, it.Pop.Points()...)
	it.neval += n
	if err != nil {
		return err
	} else if len(results) != len(it.Pop) {
		return fmt.Errorf("evaluated %v of %v particles", len(results), len(it.Pop))
	}
	for i := range results {
		it.Pop[i].Update(results[i])
	}
	it.best = it.Pop.Best().Best

	if err := it.initdb(); err != nil {
		return err
	}
	return it.updateDb()
}

// Iterate runs a single iteration: move, clip, evaluate and update bests.  It
// returns the global best after the iteration and the number of objective
// evaluations performed.  Objective errors are returned unchanged and leave
// the global best untouched.
func (it *Iterator) Iterate() (best psosearch.Point, neval int, err error) {
	it.count++

	for _, p := range it.Pop {
		p.Move(it.best, it.Mesh, it.Inertia, it.Social, it.Cognition, it.Rng)
	}

	results, n, err := it.Evaler.Eval(it.Obj, it.Pop.Points()...)
	it.neval += n
	if err != nil {
		return it.best, n, err
	} else if len(results) != len(it.Pop) {
		return it.best, n, fmt.Errorf("evaluated %v of %v particles", len(results), len(it.Pop))
	}

	vals := make([]float64, len(results))
	for i := range results {
		it.Pop[i].Update(results[i])
		vals[i] = results[i].Val
	}

	if imin := floats.MinIdx(vals); vals[imin] < it.best.Val {
		it.best = results[imin]
	}

	if err := it.updateDb(); err != nil {
		return it.best, n, err
	}
	return it.best, n, nil
}

// Best returns a copy of the swarm's global best point.
func (it *Iterator) Best() psosearch.Point {
	return psosearch.NewPoint(it.best.Pos(), it.best.Val)
}

// Niter returns the number of completed iterations.
func (it *Iterator) Niter() int { return it.count }

// Neval returns the number of objective evaluations so far, including the
// initial population.
func (it *Iterator) Neval() int { return it.neval }

// Optimize runs one complete swarm optimization of obj over the box [low, up]
// with the hyperparameters in c for exactly maxiter iterations and returns
// the best point found.  The dimensionality is len(low).
func Optimize(obj psosearch.Objectiver, low, up []float64, c psosearch.Combination, maxiter int, opts ...Option) (psosearch.Point, error) {
	fail := psosearch.Point{Val: math.Inf(1)}
	if maxiter < 0 {
		return fail, fmt.Errorf("%w: got %v", ErrIterations, maxiter)
	}

	m, err := mesh.NewBounded(low, up)
	if err != nil {
		return fail, err
	}

	it, err := New(obj, m, c, opts...)
	if err != nil {
		return fail, err
	}

	for i := 0; i < maxiter; i++ {
		if _, _, err := it.Iterate(); err != nil {
			return it.Best(), err
		}
	}
	return it.Best(), nil
}

func (it *Iterator) initdb() error {
	if it.Db == nil {
		return nil
	}

	s := "CREATE TABLE IF NOT EXISTS " + TblParticles + " (particle INTEGER, iter INTEGER, val REAL"
	s += it.xdbsql("define")
	s += ");"
	if _, err := it.Db.Exec(s); err != nil {
		return err
	}

	s = "CREATE TABLE IF NOT EXISTS " + TblParticlesBest + " (particle INTEGER, iter INTEGER, best REAL"
	s += it.xdbsql("define")
	s += ");"
	if _, err := it.Db.Exec(s); err != nil {
		return err
	}

	s = "CREATE TABLE IF NOT EXISTS " + TblBest + " (iter INTEGER, val REAL"
	s += it.xdbsql("define")
	s += ");"
	_, err := it.Db.Exec(s)
	return err
}

func (it *Iterator) xdbsql(op string) string {
	s := ""
	for i := 0; i < it.Pop[0].Len(); i++ {
		switch op {
		case "?":
			s += ",?"
		case "define":
			s += fmt.Sprintf(",x%v REAL", i)
		case "x":
			s += fmt.Sprintf(",x%v", i)
		default:
			panic("invalid db op " + op)
		}
	}
	return s
}

func pos2iface(pos []float64) []interface{} {
	iface := make([]interface{}, 0, len(pos))
	for _, v := range pos {
		iface = append(iface, v)
	}
	return iface
}

func (it *Iterator) updateDb() (err error) {
	if it.Db == nil {
		return nil
	}

	tx, err := it.Db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	s0 := "INSERT INTO " + TblParticles + " (particle,iter,val" + it.xdbsql("x") + ") VALUES (?,?,?" + it.xdbsql("?") + ");"
	s1 := "INSERT INTO " + TblParticlesBest + " (particle,iter,best" + it.xdbsql("x") + ") VALUES (?,?,?" + it.xdbsql("?") + ");"
	for _, p := range it.Pop {
		args := []interface{}{p.Id, it.count, p.Val}
		args = append(args, pos2iface(p.Pos())...)
		if _, err = tx.Exec(s0, args...); err != nil {
			return err
		}

		args = []interface{}{p.Id, it.count, p.Best.Val}
		args = append(args, pos2iface(p.Best.Pos())...)
		if _, err = tx.Exec(s1, args...); err != nil {
			return err
		}
	}

	s2 := "INSERT INTO " + TblBest + " (iter,val" + it.xdbsql("x") + ") VALUES (?,?" + it.xdbsql("?") + ");"
	args := []interface{}{it.count, it.best.Val}
	args = append(args, pos2iface(it.best.Pos())...)
	_, err = tx.Exec(s2, args...)
	return err
}
