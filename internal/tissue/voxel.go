package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// VoxelRegion is the axis aligned box [Min, Max].
type VoxelRegion struct {
	medium
	Min, Max r3.Vec
}

func NewVoxel(lo, hi r3.Vec, ops optics.OpticalProperties, phaseKey string) *VoxelRegion {
	return &VoxelRegion{medium: medium{ops: ops, key: phaseKey}, Min: lo, Max: hi}
}

func (v *VoxelRegion) Contains(p r3.Vec) bool {
	return v.Min.X < p.X && p.X < v.Max.X &&
		v.Min.Y < p.Y && p.Y < v.Max.Y &&
		v.Min.Z < p.Z && p.Z < v.Max.Z
}

func (v *VoxelRegion) OnBoundary(p r3.Vec) bool {
	e := constants.BoundaryEpsilon
	in := v.Min.X-e <= p.X && p.X <= v.Max.X+e &&
		v.Min.Y-e <= p.Y && p.Y <= v.Max.Y+e &&
		v.Min.Z-e <= p.Z && p.Z <= v.Max.Z+e
	if !in {
		return false
	}
	return nearlyEqual(p.X, v.Min.X) || nearlyEqual(p.X, v.Max.X) ||
		nearlyEqual(p.Y, v.Min.Y) || nearlyEqual(p.Y, v.Max.Y) ||
		nearlyEqual(p.Z, v.Min.Z) || nearlyEqual(p.Z, v.Max.Z)
}

func slab(p, d, lo, hi float64) (near, far float64) {
	if d == 0 {
		if p < lo || p > hi {
			return math.Inf(1), math.Inf(-1)
		}
		return math.Inf(-1), math.Inf(1)
	}
	t1, t2 := (lo-p)/d, (hi-p)/d
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	return t1, t2
}

func (v *VoxelRegion) DistanceToBoundary(p, d r3.Vec, inside bool) float64 {
	nx, fx := slab(p.X, d.X, v.Min.X, v.Max.X)
	ny, fy := slab(p.Y, d.Y, v.Min.Y, v.Max.Y)
	nz, fz := slab(p.Z, d.Z, v.Min.Z, v.Max.Z)
	near := max(nx, ny, nz)
	far := min(fx, fy, fz)
	if inside {
		return max(far, 0)
	}
	if near > far || near <= constants.BoundaryEpsilon {
		return math.Inf(1)
	}
	return near
}

func (v *VoxelRegion) Normal(p r3.Vec) r3.Vec {
	faces := []struct {
		dist float64
		n    r3.Vec
	}{
		{math.Abs(p.X - v.Min.X), r3.Vec{X: -1}},
		{math.Abs(p.X - v.Max.X), r3.Vec{X: 1}},
		{math.Abs(p.Y - v.Min.Y), r3.Vec{Y: -1}},
		{math.Abs(p.Y - v.Max.Y), r3.Vec{Y: 1}},
		{math.Abs(p.Z - v.Min.Z), r3.Vec{Z: -1}},
		{math.Abs(p.Z - v.Max.Z), r3.Vec{Z: 1}},
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.dist < best.dist {
			best = f
		}
	}
	return best.n
}
