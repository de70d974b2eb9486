package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// EllipsoidRegion is an axis aligned ellipsoid with semi-axes Dx, Dy, Dz.
type EllipsoidRegion struct {
	medium
	Center     r3.Vec
	Dx, Dy, Dz float64
}

func NewEllipsoid(center r3.Vec, dx, dy, dz float64, ops optics.OpticalProperties, phaseKey string) *EllipsoidRegion {
	return &EllipsoidRegion{medium: medium{ops: ops, key: phaseKey}, Center: center, Dx: dx, Dy: dy, Dz: dz}
}

func (e *EllipsoidRegion) level(p r3.Vec) float64 {
	x := (p.X - e.Center.X) / e.Dx
	y := (p.Y - e.Center.Y) / e.Dy
	z := (p.Z - e.Center.Z) / e.Dz
	return x*x + y*y + z*z
}

func (e *EllipsoidRegion) Contains(p r3.Vec) bool {
	return e.level(p) < 1
}

func (e *EllipsoidRegion) OnBoundary(p r3.Vec) bool {
	return math.Abs(e.level(p)-1) < 1e-9
}

func (e *EllipsoidRegion) DistanceToBoundary(p, d r3.Vec, inside bool) float64 {
	ax, ay, az := 1/(e.Dx*e.Dx), 1/(e.Dy*e.Dy), 1/(e.Dz*e.Dz)
	q := r3.Sub(p, e.Center)
	a := d.X*d.X*ax + d.Y*d.Y*ay + d.Z*d.Z*az
	b := 2 * (q.X*d.X*ax + q.Y*d.Y*ay + q.Z*d.Z*az)
	c := q.X*q.X*ax + q.Y*q.Y*ay + q.Z*q.Z*az - 1
	return quadraticDistance(a, b, c, inside)
}

func (e *EllipsoidRegion) Normal(p r3.Vec) r3.Vec {
	q := r3.Sub(p, e.Center)
	return r3.Unit(r3.Vec{
		X: q.X / (e.Dx * e.Dx),
		Y: q.Y / (e.Dy * e.Dy),
		Z: q.Z / (e.Dz * e.Dz),
	})
}
