package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// Region is a piece of the tissue with homogeneous optical properties.
type Region interface {
	Contains(p r3.Vec) bool
	OnBoundary(p r3.Vec) bool

	// DistanceToBoundary is the distance along the unit vector d
	// from p to the region surface,
	// or +Inf if the ray never reaches it.
	// inside tells whether the ray travels within the region.
	DistanceToBoundary(p, d r3.Vec, inside bool) float64

	// Normal is the outward unit normal of the surface point closest to p.
	Normal(p r3.Vec) r3.Vec

	OpticalProperties() optics.OpticalProperties
	PhaseFunctionKey() string
}

type medium struct {
	ops optics.OpticalProperties
	key string
}

func (m medium) OpticalProperties() optics.OpticalProperties { return m.ops }
func (m medium) PhaseFunctionKey() string                    { return m.key }

// LayerRegion is the slab Top <= z < Bottom, unbounded in x and y.
type LayerRegion struct {
	medium
	Top, Bottom float64
}

func NewLayer(top, bottom float64, ops optics.OpticalProperties, phaseKey string) *LayerRegion {
	return &LayerRegion{medium: medium{ops: ops, key: phaseKey}, Top: top, Bottom: bottom}
}

func (l *LayerRegion) Contains(p r3.Vec) bool {
	return l.Top <= p.Z && p.Z < l.Bottom
}

func (l *LayerRegion) OnBoundary(p r3.Vec) bool {
	return nearlyEqual(p.Z, l.Top) || nearlyEqual(p.Z, l.Bottom)
}

func (l *LayerRegion) DistanceToBoundary(p, d r3.Vec, inside bool) float64 {
	var dist float64
	switch {
	case d.Z > 0:
		dist = (l.Bottom - p.Z) / d.Z
	case d.Z < 0:
		dist = (l.Top - p.Z) / d.Z
	default:
		return math.Inf(1)
	}
	if math.IsNaN(dist) {
		return math.Inf(1)
	}
	return max(dist, 0)
}

func (l *LayerRegion) Normal(p r3.Vec) r3.Vec {
	return r3.Vec{Z: 1}
}

func nearlyEqual(a, b float64) bool {
	if math.IsInf(b, 0) {
		return a == b
	}
	return math.Abs(a-b) <= constants.BoundaryEpsilon*max(1, math.Abs(b))
}

// smallest root of a*t^2 + b*t + c beyond eps,
// or the largest one when inside is set.
func quadraticDistance(a, b, c float64, inside bool) float64 {
	if a == 0 {
		return math.Inf(1)
	}
	disc := b*b - 4*a*c
	if disc < 0 {
		return math.Inf(1)
	}
	sq := math.Sqrt(disc)
	t1 := (-b - sq) / (2 * a)
	t2 := (-b + sq) / (2 * a)
	if inside {
		return max(t2, 0)
	}
	if t1 > constants.BoundaryEpsilon {
		return t1
	}
	return math.Inf(1)
}
