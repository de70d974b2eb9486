package photon

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// AbsorptionWeightingType selects how the photon weight decreases.
type AbsorptionWeightingType string

const (
	// Analog absorbs the whole packet with probability mua/mut at a collision.
	Analog AbsorptionWeightingType = "Analog"
	// Discrete removes the fraction mua/mut of the weight at every collision.
	Discrete AbsorptionWeightingType = "Discrete"
	// Continuous attenuates the weight by exp(-mua*l) along every segment.
	Continuous AbsorptionWeightingType = "Continuous"
)

func (a AbsorptionWeightingType) Validate() error {
	switch a {
	case Analog, Discrete, Continuous:
		return nil
	}
	return errs.Configuration("unknown absorption weighting type %q", a)
}

// StepCoefficient is the interaction coefficient the free path is sampled from.
func (a AbsorptionWeightingType) StepCoefficient(ops optics.OpticalProperties) float64 {
	if a == Continuous {
		return ops.Mus()
	}
	return ops.Mut()
}

// SupportsPerturbation reports whether recorded weights can be re-weighted
// for other optical properties.
func (a AbsorptionWeightingType) SupportsPerturbation() bool {
	return a != Analog
}

// UsesRoulette reports whether low weight photons play Russian roulette.
func (a AbsorptionWeightingType) UsesRoulette() bool {
	return a != Analog
}

// AbsorbedWeight is the weight deposited along the segment prev -> curr
// travelled inside a region with properties ops.
func (a AbsorptionWeightingType) AbsorbedWeight(prev, curr DataPoint, ops optics.OpticalProperties) float64 {
	switch a {
	case Analog:
		if curr.StateFlag.Has(Absorbed) {
			return prev.Weight
		}
	case Discrete:
		if curr.StateFlag.Has(PseudoCollision) && ops.Mut() > 0 {
			return prev.Weight * ops.Mua() / ops.Mut()
		}
	case Continuous:
		if ops.Mua() > 0 {
			s := r3.Norm(r3.Sub(curr.Position, prev.Position))
			return prev.Weight * -math.Expm1(-ops.Mua()*s)
		}
	}
	return 0
}

// Fluence is the fluence estimate of the segment prev -> curr.
// Collision based types score weight/mut at collisions,
// the continuous type scores the attenuated track length.
func (a AbsorptionWeightingType) Fluence(prev, curr DataPoint, ops optics.OpticalProperties) float64 {
	switch a {
	case Analog:
		if curr.StateFlag.Has(Absorbed) && ops.Mua() > 0 {
			return prev.Weight / ops.Mua()
		}
	case Discrete:
		if curr.StateFlag.Has(PseudoCollision) && ops.Mut() > 0 {
			return prev.Weight / ops.Mut()
		}
	case Continuous:
		s := r3.Norm(r3.Sub(curr.Position, prev.Position))
		if ops.Mua() > 0 {
			return prev.Weight * -math.Expm1(-ops.Mua()*s) / ops.Mua()
		}
		return prev.Weight * s
	}
	return 0
}
