// Package rng provides the random number sources a simulation can choose from.
//
// A source is owned by a single simulation
// and must never be shared between goroutines.
package rng

import (
	mathrand "math/rand"
	"time"

	"github.com/valyala/fastrand"
	"golang.org/x/exp/rand"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
)

// Type names a random number generator.
type Type string

const (
	PCG      Type = "PCG"
	GoRand   Type = "GoRand"
	FastRand Type = "FastRand"
)

// Source returns uniform numbers in [0,1).
type Source interface {
	Float64() float64
}

// New returns a source of the given type.
// A negative seed picks one from the clock.
func New(t Type, seed int64) (Source, error) {
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	switch t {
	case PCG, "":
		src := &rand.PCGSource{}
		src.Seed(uint64(seed))
		return rand.New(src), nil
	case GoRand:
		return mathrand.New(mathrand.NewSource(seed)), nil
	case FastRand:
		r := &fastRand{}
		r.rng.Seed(uint32(seed) ^ uint32(seed>>32))
		return r, nil
	}
	return nil, errs.Configuration("unknown random number generator %q", t)
}

type fastRand struct {
	rng fastrand.RNG
}

func (f *fastRand) Float64() float64 {
	hi := uint64(f.rng.Uint32())
	lo := uint64(f.rng.Uint32())
	return float64(hi<<21|lo>>11) / (1 << 53)
}
