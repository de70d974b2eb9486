package rng_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
)

func TestSources(t *testing.T) {
	for _, typ := range []rng.Type{rng.PCG, rng.GoRand, rng.FastRand} {
		r, err := rng.New(typ, 7)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		x := make([]float64, 20000)
		for i := range x {
			x[i] = r.Float64()
			if x[i] < 0 || x[i] >= 1 {
				t.Fatalf("%s: value %v outside [0,1)", typ, x[i])
			}
		}
		mean, std := stat.MeanStdDev(x, nil)
		if math.Abs(mean-0.5) > 0.01 {
			t.Errorf("%s: mean %.4f, want 0.5", typ, mean)
		}
		if math.Abs(std-math.Sqrt(1./12.)) > 0.01 {
			t.Errorf("%s: std %.4f, want %.4f", typ, std, math.Sqrt(1./12.))
		}
	}
}

func TestSameSeed(t *testing.T) {
	a, _ := rng.New(rng.PCG, 42)
	b, _ := rng.New(rng.PCG, 42)
	for i := range 100 {
		if x, y := a.Float64(), b.Float64(); x != y {
			t.Fatalf("draw %d: %v != %v", i, x, y)
		}
	}
}

func TestUnknown(t *testing.T) {
	if _, err := rng.New("Mersenne", 0); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
}
