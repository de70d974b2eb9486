// Package phase samples scattering angles and rotates photon directions.
package phase

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
)

// Type names a phase function.
type Type string

const (
	HenyeyGreenstein        Type = "HenyeyGreenstein"
	TwoTermHenyeyGreenstein Type = "TwoTermHenyeyGreenstein"
	Isotropic               Type = "Isotropic"
)

// Function samples the polar and azimuthal scattering angles.
type Function interface {
	SampleScatteringAngle(r rng.Source) (cosTheta, phi float64)

	// G is the mean cosine of the scattering angle.
	G() float64
}

// Params are the extra parameters of a phase function.
// Only the two-term Henyey-Greenstein function reads them.
type Params struct {
	ForwardG  float64 `toml:"ForwardG" yaml:"forwardG"`
	BackwardG float64 `toml:"BackwardG" yaml:"backwardG"`
	Fraction  float64 `toml:"Fraction" yaml:"fraction"`
}

// New returns the phase function named by t.
// g is the anisotropy of the region.
func New(t Type, g float64, p Params) (Function, error) {
	switch t {
	case HenyeyGreenstein, "":
		return HG{g: g}, nil
	case Isotropic:
		return HG{g: 0}, nil
	case TwoTermHenyeyGreenstein:
		if p.Fraction < 0 || p.Fraction > 1 {
			return nil, errs.Configuration("two-term phase function: fraction %v outside [0,1]", p.Fraction)
		}
		if math.Abs(p.ForwardG) > 1 || math.Abs(p.BackwardG) > 1 {
			return nil, errs.Configuration("two-term phase function: lobe anisotropy outside [-1,1]")
		}
		return TwoTermHG{Forward: HG{g: p.ForwardG}, Backward: HG{g: p.BackwardG}, Fraction: p.Fraction}, nil
	}
	return nil, errs.Configuration("unknown phase function %q", t)
}

// HG is the Henyey-Greenstein phase function.
type HG struct {
	g float64
}

func NewHG(g float64) HG { return HG{g: g} }

func (h HG) G() float64 { return h.g }

func (h HG) SampleScatteringAngle(r rng.Source) (cosTheta, phi float64) {
	cosTheta = hgCosTheta(h.g, r.Float64())
	phi = 2 * math.Pi * r.Float64()
	return cosTheta, phi
}

// inverse of the Henyey-Greenstein cumulative distribution
func hgCosTheta(g, xi float64) float64 {
	if math.Abs(g) < 1e-12 {
		return 2*xi - 1
	}
	t := (1 - g*g) / (1 - g + 2*g*xi)
	cosTheta := (1 + g*g - t*t) / (2 * g)
	return max(-1, min(1, cosTheta))
}

// TwoTermHG mixes two Henyey-Greenstein lobes.
// The forward lobe is chosen with probability Fraction.
type TwoTermHG struct {
	Forward  HG
	Backward HG
	Fraction float64
}

func (t TwoTermHG) G() float64 {
	return t.Fraction*t.Forward.g + (1-t.Fraction)*t.Backward.g
}

func (t TwoTermHG) SampleScatteringAngle(r rng.Source) (cosTheta, phi float64) {
	if r.Float64() < t.Fraction {
		return t.Forward.SampleScatteringAngle(r)
	}
	return t.Backward.SampleScatteringAngle(r)
}

// Rotate turns the unit vector dir by the polar angle acos(cosTheta)
// and the azimuth phi measured in the local frame of dir.
func Rotate(dir r3.Vec, cosTheta, phi float64) r3.Vec {
	sinTheta := math.Sqrt(math.FMA(cosTheta, -cosTheta, 1.))
	sinPhi, cosPhi := math.Sincos(phi)
	ux, uy, uz := dir.X, dir.Y, dir.Z
	if math.Abs(uz) > 1-1e-10 {
		return r3.Vec{
			X: sinTheta * cosPhi,
			Y: sinTheta * sinPhi,
			Z: math.Copysign(cosTheta, uz),
		}
	}
	sinNormal := math.Sqrt(math.FMA(uz, -uz, 1.))
	out := r3.Vec{
		X: sinTheta*(ux*uz*cosPhi-uy*sinPhi)/sinNormal + ux*cosTheta,
		Y: sinTheta*(uy*uz*cosPhi+ux*sinPhi)/sinNormal + uy*cosTheta,
		Z: -sinTheta*cosPhi*sinNormal + uz*cosTheta,
	}
	return r3.Unit(out)
}

// Scatter samples f and returns the new direction.
func Scatter(f Function, dir r3.Vec, r rng.Source) r3.Vec {
	cosTheta, phi := f.SampleScatteringAngle(r)
	return Rotate(dir, cosTheta, phi)
}
