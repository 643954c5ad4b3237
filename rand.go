package psosearch

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mathext/prng"
)

// Rng is the subset of *rand.Rand used by the swarm and the samplers.  A Rng
// is never shared between goroutines; every worker owns its own.
type Rng interface {
	Float64() float64
	Intn(n int) int
	Perm(n int) []int
}

// mtSource adapts gonum's Mersenne twister to math/rand.Source.
type mtSource struct {
	mt *prng.MT19937
}

func (s mtSource) Int63() int64 { return int64(s.mt.Uint64() >> 1) }

func (s mtSource) Uint64() uint64 { return s.mt.Uint64() }

func (s mtSource) Seed(seed int64) { s.mt.Seed(uint64(seed)) }

// NewRand returns a Mersenne twister backed generator seeded with seed.
func NewRand(seed int64) *rand.Rand {
	mt := prng.NewMT19937()
	mt.Seed(uint64(seed))
	return rand.New(mtSource{mt: mt})
}

// TimeSeed returns a seed derived from the wall clock for runs that do not
// need to be reproducible.
func TimeSeed() int64 { return time.Now().UnixNano() }

// Uniform returns a uniform random value in [low, up].
func Uniform(rng Rng, low, up float64) float64 {
	return low + rng.Float64()*(up-low)
}
