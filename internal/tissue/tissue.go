// Package tissue partitions space into regions of homogeneous optical properties
// and answers the geometric queries of the photon random walk.
//
// Every tissue is a stack of layers along z:
// the first layer is the medium above the tissue surface
// and the last one the medium below it.
// A point on a boundary belongs to the region its direction of travel enters.
package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
)

// Exit classifies a region change.
type Exit int

const (
	Interior Exit = iota
	ExitTop
	ExitBottom
	ExitBoundingVolume
)

// Tissue is a set of regions that partition space.
type Tissue interface {
	Regions() []Region

	// RegionIndex returns the region holding p.
	RegionIndex(p r3.Vec) (int, error)

	// RegionIndexAlong is RegionIndex with boundary points
	// resolved to the region entered by the direction d.
	RegionIndexAlong(p, d r3.Vec) (int, error)

	// DistanceToBoundary is the distance along d
	// to the closest boundary of region, +Inf if there is none.
	DistanceToBoundary(p, d r3.Vec, region int) float64

	// NeighborRegionIndex is the region on the other side
	// of the boundary at p.
	NeighborRegionIndex(p, d r3.Vec, region int) int

	// Normal is the unit normal of the boundary at p.
	Normal(p r3.Vec, region int) r3.Vec

	OnDomainBoundary(p r3.Vec) bool
	Exit(from, to int) Exit
	PhaseFunction(region int) phase.Function

	// SurfaceZ and BottomZ are the depths of the top and bottom tissue surfaces.
	SurfaceZ() float64
	BottomZ() float64
}

type layered struct {
	layers  []*LayerRegion
	regions []Region
	phase   []phase.Function
}

func (l *layered) Regions() []Region { return l.regions }

func (l *layered) PhaseFunction(region int) phase.Function { return l.phase[region] }

func (l *layered) SurfaceZ() float64 { return l.layers[0].Bottom }
func (l *layered) BottomZ() float64  { return l.layers[len(l.layers)-1].Top }

func (l *layered) layerAt(z float64) int {
	if math.IsNaN(z) {
		return -1
	}
	for i, ly := range l.layers {
		if ly.Contains(r3.Vec{Z: z}) {
			return i
		}
	}
	if z == math.Inf(1) {
		return len(l.layers) - 1
	}
	return -1
}

func (l *layered) layerAlong(p, d r3.Vec) int {
	i := l.layerAt(p.Z)
	if i < 0 {
		return i
	}
	if i > 0 && nearlyEqual(p.Z, l.layers[i].Top) && d.Z < 0 {
		return i - 1
	}
	if i < len(l.layers)-1 && nearlyEqual(p.Z, l.layers[i].Bottom) && d.Z > 0 {
		return i + 1
	}
	return i
}

func (l *layered) layerDistance(p, d r3.Vec, layer int) float64 {
	return l.layers[layer].DistanceToBoundary(p, d, true)
}

func (l *layered) layerNeighbor(d r3.Vec, layer int) int {
	if d.Z > 0 {
		return min(layer+1, len(l.layers)-1)
	}
	return max(layer-1, 0)
}

func (l *layered) layerExit(to int) Exit {
	switch to {
	case 0:
		return ExitTop
	case len(l.layers) - 1:
		return ExitBottom
	}
	return Interior
}

func (l *layered) onSurfaces(p r3.Vec) bool {
	return nearlyEqual(p.Z, l.SurfaceZ()) || nearlyEqual(p.Z, l.BottomZ())
}

func (l *layered) resolveError(p r3.Vec) error {
	return errs.Geometry("position (%g, %g, %g) is not inside any region", p.X, p.Y, p.Z)
}

// MultiLayer is a stack of infinite slabs.
type MultiLayer struct {
	layered
}

func (m *MultiLayer) RegionIndex(p r3.Vec) (int, error) {
	i := m.layerAt(p.Z)
	if i < 0 {
		return i, m.resolveError(p)
	}
	return i, nil
}

func (m *MultiLayer) RegionIndexAlong(p, d r3.Vec) (int, error) {
	i := m.layerAlong(p, d)
	if i < 0 {
		return i, m.resolveError(p)
	}
	return i, nil
}

func (m *MultiLayer) DistanceToBoundary(p, d r3.Vec, region int) float64 {
	return m.layerDistance(p, d, region)
}

func (m *MultiLayer) NeighborRegionIndex(p, d r3.Vec, region int) int {
	return m.layerNeighbor(d, region)
}

func (m *MultiLayer) Normal(p r3.Vec, region int) r3.Vec { return r3.Vec{Z: 1} }

func (m *MultiLayer) OnDomainBoundary(p r3.Vec) bool { return m.onSurfaces(p) }

func (m *MultiLayer) Exit(from, to int) Exit { return m.layerExit(to) }

// SingleInclusion is a layer stack with one closed region
// embedded in one of the tissue layers.
type SingleInclusion struct {
	layered
	inclusion Region
	index     int // region index of the inclusion
	host      int // layer holding the inclusion
}

func (s *SingleInclusion) Inclusion() Region { return s.inclusion }

func (s *SingleInclusion) RegionIndex(p r3.Vec) (int, error) {
	if s.inclusion.Contains(p) {
		return s.index, nil
	}
	i := s.layerAt(p.Z)
	if i < 0 {
		return i, s.resolveError(p)
	}
	return i, nil
}

func (s *SingleInclusion) RegionIndexAlong(p, d r3.Vec) (int, error) {
	if s.inclusion.OnBoundary(p) {
		if r3.Dot(d, s.inclusion.Normal(p)) < 0 {
			return s.index, nil
		}
		return s.host, nil
	}
	if s.inclusion.Contains(p) {
		return s.index, nil
	}
	i := s.layerAlong(p, d)
	if i < 0 {
		return i, s.resolveError(p)
	}
	return i, nil
}

func (s *SingleInclusion) DistanceToBoundary(p, d r3.Vec, region int) float64 {
	if region == s.index {
		return s.inclusion.DistanceToBoundary(p, d, true)
	}
	dist := s.layerDistance(p, d, region)
	if region == s.host {
		dist = min(dist, s.inclusion.DistanceToBoundary(p, d, false))
	}
	return dist
}

func (s *SingleInclusion) NeighborRegionIndex(p, d r3.Vec, region int) int {
	if region == s.index {
		return s.host
	}
	if region == s.host && s.inclusion.OnBoundary(p) {
		return s.index
	}
	return s.layerNeighbor(d, region)
}

func (s *SingleInclusion) Normal(p r3.Vec, region int) r3.Vec {
	if (region == s.index || region == s.host) && s.inclusion.OnBoundary(p) {
		return s.inclusion.Normal(p)
	}
	return r3.Vec{Z: 1}
}

func (s *SingleInclusion) OnDomainBoundary(p r3.Vec) bool { return s.onSurfaces(p) }

func (s *SingleInclusion) Exit(from, to int) Exit {
	if to == s.index || from == s.index {
		return Interior
	}
	return s.layerExit(to)
}

// BoundingCylinder is a layer stack laterally bounded by a capless cylinder.
// Photons reaching the cylinder wall leave the domain.
type BoundingCylinder struct {
	layered
	cylinder *CylinderRegion
	index    int
}

func (b *BoundingCylinder) Cylinder() *CylinderRegion { return b.cylinder }

func (b *BoundingCylinder) tissueLayer(i int) bool {
	return i > 0 && i < len(b.layers)-1
}

func (b *BoundingCylinder) RegionIndex(p r3.Vec) (int, error) {
	i := b.layerAt(p.Z)
	if i < 0 {
		return i, b.resolveError(p)
	}
	if b.tissueLayer(i) && !b.cylinder.Contains(p) && !b.cylinder.OnBoundary(p) {
		return b.index, nil
	}
	return i, nil
}

func (b *BoundingCylinder) RegionIndexAlong(p, d r3.Vec) (int, error) {
	i := b.layerAlong(p, d)
	if i < 0 {
		return i, b.resolveError(p)
	}
	if !b.tissueLayer(i) {
		return i, nil
	}
	if b.cylinder.OnBoundary(p) {
		if r3.Dot(d, b.cylinder.Normal(p)) > 0 {
			return b.index, nil
		}
		return i, nil
	}
	if !b.cylinder.Contains(p) {
		return b.index, nil
	}
	return i, nil
}

func (b *BoundingCylinder) DistanceToBoundary(p, d r3.Vec, region int) float64 {
	if region == b.index {
		return math.Inf(1)
	}
	dist := b.layerDistance(p, d, region)
	if b.tissueLayer(region) {
		dist = min(dist, b.cylinder.DistanceToBoundary(p, d, true))
	}
	return dist
}

func (b *BoundingCylinder) NeighborRegionIndex(p, d r3.Vec, region int) int {
	if b.tissueLayer(region) && b.cylinder.OnBoundary(p) && !b.onSurfaces(p) {
		return b.index
	}
	return b.layerNeighbor(d, region)
}

func (b *BoundingCylinder) Normal(p r3.Vec, region int) r3.Vec {
	if b.tissueLayer(region) && b.cylinder.OnBoundary(p) && !b.onSurfaces(p) {
		return b.cylinder.Normal(p)
	}
	return r3.Vec{Z: 1}
}

func (b *BoundingCylinder) OnDomainBoundary(p r3.Vec) bool {
	if b.onSurfaces(p) {
		return true
	}
	return p.Z > b.SurfaceZ() && p.Z < b.BottomZ() && b.cylinder.OnBoundary(p)
}

func (b *BoundingCylinder) Exit(from, to int) Exit {
	if to == b.index {
		return ExitBoundingVolume
	}
	return b.layerExit(to)
}
