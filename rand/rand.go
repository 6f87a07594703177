package rand

import (
	"math"

	"github.com/seehuhn/mt19937"
)

// A Generator uses a goroutine to populate batches of random numbers
// from a Mersenne twister. Each chain owns its own Generator so the hot
// path never shares a PRNG across goroutines.
type Generator struct {
	ch chan int64

	normSpare    float64
	hasNormSpare bool
}

// NewGenerator starts a new background PRNG based on the given seed
func NewGenerator(seed int64) (*Generator, error) {
	numChan := make(chan int64, 1024)

	go func() {
		r := mt19937.New()
		r.Seed(seed)
		for {
			numChan <- r.Int63()
		}
	}()

	g := &Generator{
		ch: numChan,
	}

	return g, nil
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return <-g.ch
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard-normal draw via the Marsaglia polar
// method, built on the generator's own uniforms so a seed fully
// determines the stream. Not safe for concurrent use on one Generator.
func (g *Generator) NormFloat64() float64 {
	if g.hasNormSpare {
		g.hasNormSpare = false
		return g.normSpare
	}

	for {
		u := 2*g.Float64() - 1
		v := 2*g.Float64() - 1
		s := u*u + v*v
		if s >= 1 || s == 0 {
			continue
		}
		f := math.Sqrt(-2 * math.Log(s) / s)
		g.normSpare = v * f
		g.hasNormSpare = true
		return u * f
	}
}
