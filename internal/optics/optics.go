// Package optics defines the optical properties of a tissue region
// and the axis ranges used to bin detector tallies.
package optics

import (
	"fmt"
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
)

// OpticalProperties of a homogeneous medium.
// All coefficients are in [1/mm].
//
// The reduced scattering coefficient is derived:
// Musp() == Mus()*(1-G()) holds after any setter returns.
type OpticalProperties struct {
	mua float64
	mus float64
	g   float64
	n   float64
}

// New returns optical properties from the reduced scattering coefficient.
func New(mua, musp, g, n float64) OpticalProperties {
	op := OpticalProperties{mua: mua, g: g, n: n}
	if g == 1 {
		op.mus = 0
	} else {
		op.mus = musp / (1 - g)
	}
	return op
}

// NewFromMus returns optical properties from the scattering coefficient.
func NewFromMus(mua, mus, g, n float64) OpticalProperties {
	return OpticalProperties{mua: mua, mus: mus, g: g, n: n}
}

func (op OpticalProperties) Mua() float64  { return op.mua }
func (op OpticalProperties) Mus() float64  { return op.mus }
func (op OpticalProperties) G() float64    { return op.g }
func (op OpticalProperties) N() float64    { return op.n }
func (op OpticalProperties) Musp() float64 { return op.mus * (1 - op.g) }

// Mut is the total interaction coefficient mua+mus.
func (op OpticalProperties) Mut() float64 { return op.mua + op.mus }

// Albedo is mus/(mua+mus), zero for a non-interacting medium.
func (op OpticalProperties) Albedo() float64 {
	if op.Mut() == 0 {
		return 0
	}
	return op.mus / op.Mut()
}

func (op *OpticalProperties) SetMua(mua float64) { op.mua = mua }
func (op *OpticalProperties) SetN(n float64)     { op.n = n }

// SetMus keeps g and so changes musp.
func (op *OpticalProperties) SetMus(mus float64) { op.mus = mus }

// SetG keeps mus and so changes musp.
func (op *OpticalProperties) SetG(g float64) { op.g = g }

// SetMusp keeps g and recomputes mus.
// With g == 1 only a zero musp is consistent.
func (op *OpticalProperties) SetMusp(musp float64) error {
	if op.g == 1 {
		if musp != 0 {
			return errs.Configuration("musp %v with g = 1", musp)
		}
		return nil
	}
	op.mus = musp / (1 - op.g)
	return nil
}

// Validate checks the physical ranges.
func (op OpticalProperties) Validate() error {
	switch {
	case op.mua < 0 || math.IsNaN(op.mua):
		return errs.Configuration("mua %v must be non-negative", op.mua)
	case op.mus < 0 || math.IsNaN(op.mus):
		return errs.Configuration("mus %v must be non-negative", op.mus)
	case op.g < -1 || op.g > 1 || math.IsNaN(op.g):
		return errs.Configuration("g %v outside [-1,1]", op.g)
	case !(op.n > 0):
		return errs.Configuration("n %v must be positive", op.n)
	}
	return nil
}

func (op OpticalProperties) String() string {
	return fmt.Sprintf("mua=%g musp=%g g=%g n=%g", op.mua, op.Musp(), op.g, op.n)
}
