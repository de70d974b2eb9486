package utils

import (
	"math"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
)

type Number interface {
	constraints.Float | constraints.Integer
}

// Product multiplies the elements of arr, 1 for an empty slice.
func Product[T Number](arr []T) T {
	r := T(1)
	for i := range arr {
		r *= arr[i]
	}
	return r
}

// UniformOnDisk samples a point uniformly in the disk of radius r.
func UniformOnDisk(src rng.Source, r float64) (a, b float64) {
	a, b = 2.*src.Float64()-1., 2.*src.Float64()-1.
	for a*a+b*b > 1. {
		a, b = 2.*src.Float64()-1., 2.*src.Float64()-1.
	}
	a *= r
	b *= r
	return
}

// UniformOnSphere samples a direction uniformly.
func UniformOnSphere(src rng.Source) (ux, uy, uz float64) {
	uz = 2.*src.Float64() - 1.
	phi := 2. * math.Pi * src.Float64()
	s := math.Sqrt(math.FMA(uz, -uz, 1.))
	return s * math.Cos(phi), s * math.Sin(phi), uz
}

// bits serves a simulation source to gonum's distributions.
// Seeding is left to the simulation that owns the source.
type bits struct{ rng.Source }

func (b bits) Uint64() uint64 { return uint64(b.Float64()*(1<<53)) << 11 }

func (bits) Seed(uint64) {}

// Gaussian samples the standard normal distribution.
func Gaussian(src rng.Source) float64 {
	s, ok := src.(rand.Source)
	if !ok {
		s = bits{src}
	}
	return distuv.Normal{Mu: 0, Sigma: 1, Src: s}.Rand()
}
