package optics

import (
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
)

// Input is the configuration form of OpticalProperties.
// Either Mus or Musp may be given;
// when both are given they must agree with G.
type Input struct {
	Mua  float64  `toml:"Mua" yaml:"mua"`
	Mus  *float64 `toml:"Mus,omitempty" yaml:"mus,omitempty"`
	Musp *float64 `toml:"Musp,omitempty" yaml:"musp,omitempty"`
	G    float64  `toml:"G" yaml:"g"`
	N    float64  `toml:"N" yaml:"n"`
}

const consistencyTolerance = 1e-6

// Build validates the input and returns the optical properties.
func (in Input) Build() (OpticalProperties, error) {
	var op OpticalProperties
	switch {
	case in.Mus != nil && in.Musp != nil:
		want := *in.Mus * (1 - in.G)
		if math.Abs(want-*in.Musp) > consistencyTolerance*max(1, math.Abs(*in.Musp)) {
			return op, errs.Configuration("mus %v and musp %v disagree for g %v", *in.Mus, *in.Musp, in.G)
		}
		op = NewFromMus(in.Mua, *in.Mus, in.G, in.N)
	case in.Mus != nil:
		op = NewFromMus(in.Mua, *in.Mus, in.G, in.N)
	case in.Musp != nil:
		if in.G == 1 && *in.Musp != 0 {
			return op, errs.Configuration("musp %v with g = 1", *in.Musp)
		}
		op = New(in.Mua, *in.Musp, in.G, in.N)
	default:
		op = NewFromMus(in.Mua, 0, in.G, in.N)
	}
	if err := op.Validate(); err != nil {
		return op, err
	}
	return op, nil
}

// InputFrom returns the musp-based input of op.
func InputFrom(op OpticalProperties) Input {
	musp := op.Musp()
	return Input{Mua: op.mua, Musp: &musp, G: op.g, N: op.n}
}
