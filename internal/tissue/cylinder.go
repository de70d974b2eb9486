package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// CylinderRegion is a cylinder with its axis along z,
// spanning Height around Center.Z.
// A capless cylinder only bounds laterally.
type CylinderRegion struct {
	medium
	Center r3.Vec
	Radius float64
	Height float64
	Capped bool
}

func NewCylinder(center r3.Vec, radius, height float64, capped bool, ops optics.OpticalProperties, phaseKey string) *CylinderRegion {
	return &CylinderRegion{medium: medium{ops: ops, key: phaseKey}, Center: center, Radius: radius, Height: height, Capped: capped}
}

func (c *CylinderRegion) zmin() float64 { return c.Center.Z - c.Height/2 }
func (c *CylinderRegion) zmax() float64 { return c.Center.Z + c.Height/2 }

func (c *CylinderRegion) radial(p r3.Vec) float64 {
	x, y := p.X-c.Center.X, p.Y-c.Center.Y
	return math.Sqrt(x*x + y*y)
}

func (c *CylinderRegion) Contains(p r3.Vec) bool {
	if c.radial(p) >= c.Radius {
		return false
	}
	return !c.Capped || (c.zmin() < p.Z && p.Z < c.zmax())
}

func (c *CylinderRegion) OnBoundary(p r3.Vec) bool {
	r := c.radial(p)
	if !c.Capped {
		return nearlyEqual(r, c.Radius)
	}
	inZ := c.zmin()-constants.BoundaryEpsilon <= p.Z && p.Z <= c.zmax()+constants.BoundaryEpsilon
	if nearlyEqual(r, c.Radius) && inZ {
		return true
	}
	onCap := nearlyEqual(p.Z, c.zmin()) || nearlyEqual(p.Z, c.zmax())
	return onCap && r <= c.Radius*(1+constants.BoundaryEpsilon)
}

func (c *CylinderRegion) lateral(p, d r3.Vec, inside bool) float64 {
	x, y := p.X-c.Center.X, p.Y-c.Center.Y
	a := d.X*d.X + d.Y*d.Y
	b := 2 * (x*d.X + y*d.Y)
	cc := x*x + y*y - c.Radius*c.Radius
	return quadraticDistance(a, b, cc, inside)
}

func (c *CylinderRegion) DistanceToBoundary(p, d r3.Vec, inside bool) float64 {
	if !c.Capped {
		return c.lateral(p, d, inside)
	}
	if inside {
		dist := c.lateral(p, d, true)
		switch {
		case d.Z > 0:
			dist = min(dist, max((c.zmax()-p.Z)/d.Z, 0))
		case d.Z < 0:
			dist = min(dist, max((c.zmin()-p.Z)/d.Z, 0))
		}
		return dist
	}

	// entering: the first surface point reached whose hit lies on the solid
	best := math.Inf(1)
	if t := c.lateral(p, d, false); !math.IsInf(t, 1) {
		z := p.Z + t*d.Z
		if c.zmin() <= z && z <= c.zmax() {
			best = t
		}
	}
	for _, zc := range []float64{c.zmin(), c.zmax()} {
		if d.Z == 0 {
			break
		}
		t := (zc - p.Z) / d.Z
		if t <= constants.BoundaryEpsilon || t >= best {
			continue
		}
		hit := r3.Add(p, r3.Scale(t, d))
		if c.radial(hit) <= c.Radius {
			best = t
		}
	}
	return best
}

func (c *CylinderRegion) Normal(p r3.Vec) r3.Vec {
	r := c.radial(p)
	if c.Capped {
		dr := math.Abs(r - c.Radius)
		if dz := math.Abs(p.Z - c.zmax()); dz < dr {
			return r3.Vec{Z: 1}
		}
		if dz := math.Abs(p.Z - c.zmin()); dz < dr {
			return r3.Vec{Z: -1}
		}
	}
	if r == 0 {
		return r3.Vec{X: 1}
	}
	return r3.Vec{X: (p.X - c.Center.X) / r, Y: (p.Y - c.Center.Y) / r}
}

// InfiniteCylinderRegion is a cylinder with its axis along y.
type InfiniteCylinderRegion struct {
	medium
	Center r3.Vec
	Radius float64
}

func NewInfiniteCylinder(center r3.Vec, radius float64, ops optics.OpticalProperties, phaseKey string) *InfiniteCylinderRegion {
	return &InfiniteCylinderRegion{medium: medium{ops: ops, key: phaseKey}, Center: center, Radius: radius}
}

func (c *InfiniteCylinderRegion) radial(p r3.Vec) float64 {
	x, z := p.X-c.Center.X, p.Z-c.Center.Z
	return math.Sqrt(x*x + z*z)
}

func (c *InfiniteCylinderRegion) Contains(p r3.Vec) bool {
	return c.radial(p) < c.Radius
}

func (c *InfiniteCylinderRegion) OnBoundary(p r3.Vec) bool {
	return nearlyEqual(c.radial(p), c.Radius)
}

func (c *InfiniteCylinderRegion) DistanceToBoundary(p, d r3.Vec, inside bool) float64 {
	x, z := p.X-c.Center.X, p.Z-c.Center.Z
	a := d.X*d.X + d.Z*d.Z
	b := 2 * (x*d.X + z*d.Z)
	cc := x*x + z*z - c.Radius*c.Radius
	return quadraticDistance(a, b, cc, inside)
}

func (c *InfiniteCylinderRegion) Normal(p r3.Vec) r3.Vec {
	r := c.radial(p)
	if r == 0 {
		return r3.Vec{Z: 1}
	}
	return r3.Vec{X: (p.X - c.Center.X) / r, Z: (p.Z - c.Center.Z) / r}
}
