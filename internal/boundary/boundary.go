// Package boundary holds the virtual boundaries: measurement surfaces
// that hand photon data points to their detectors.
package boundary

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// VirtualBoundary feeds the detectors of one surface or volume.
type VirtualBoundary interface {
	Type() detector.VirtualBoundaryType

	// StateFlag marks the data points tallied on this boundary.
	StateFlag() photon.StateFlag

	// Terminal boundaries see photons once they left the tissue,
	// the others are crossed during the walk.
	Terminal() bool

	// IsCrossing reports whether the segment prev -> curr goes through the boundary.
	IsCrossing(prev, curr r3.Vec) bool

	// DistanceTo is the distance along the direction of dp
	// to the boundary, +Inf when it is not reached.
	DistanceTo(dp photon.DataPoint) float64

	Controller() *detector.Controller
}

// planar is a z plane; terminal ones are matched by the tissue exit flag.
type planar struct {
	typ        detector.VirtualBoundaryType
	flag       photon.StateFlag
	trigger    photon.StateFlag
	z          float64
	terminal   bool
	controller *detector.Controller
}

func (b *planar) Type() detector.VirtualBoundaryType { return b.typ }
func (b *planar) StateFlag() photon.StateFlag        { return b.flag }
func (b *planar) Terminal() bool                     { return b.terminal }
func (b *planar) Controller() *detector.Controller   { return b.controller }

func (b *planar) IsCrossing(prev, curr r3.Vec) bool {
	return (prev.Z-b.z)*(curr.Z-b.z) <= 0 && prev.Z != curr.Z
}

func (b *planar) DistanceTo(dp photon.DataPoint) float64 {
	if dp.Direction.Z == 0 {
		return math.Inf(1)
	}
	d := (b.z - dp.Position.Z) / dp.Direction.Z
	if d <= constants.BoundaryEpsilon {
		return math.Inf(1)
	}
	return d
}

// Matches reports whether a dead photon ends on this terminal boundary.
func (b *planar) Matches(dp photon.DataPoint) bool {
	return b.terminal && b.trigger != photon.None && dp.StateFlag.Has(b.trigger)
}

// volume sees whole photon histories, or photons killed at the bounding volume.
type volume struct {
	typ        detector.VirtualBoundaryType
	flag       photon.StateFlag
	trigger    photon.StateFlag
	controller *detector.Controller
}

func (b *volume) Type() detector.VirtualBoundaryType { return b.typ }
func (b *volume) StateFlag() photon.StateFlag        { return b.flag }
func (b *volume) Terminal() bool                     { return true }
func (b *volume) Controller() *detector.Controller   { return b.controller }
func (b *volume) IsCrossing(prev, curr r3.Vec) bool  { return false }

func (b *volume) DistanceTo(dp photon.DataPoint) float64 { return math.Inf(1) }

func (b *volume) Matches(dp photon.DataPoint) bool {
	return b.trigger != photon.None && dp.StateFlag.Has(b.trigger)
}

// New returns the virtual boundary of type typ for tissue t.
// zDepth is read by the surface radiance boundary only.
func New(typ detector.VirtualBoundaryType, t tissue.Tissue, zDepth float64) VirtualBoundary {
	c := detector.NewController()
	switch typ {
	case detector.DiffuseReflectance:
		return &planar{typ: typ, flag: photon.PseudoDiffuseReflectanceVirtualBoundary, trigger: photon.PseudoReflectedTissueBoundary,
			z: t.SurfaceZ(), terminal: true, controller: c}
	case detector.PMCDiffuseReflectance:
		return &planar{typ: typ, flag: photon.PseudoDiffuseReflectanceVirtualBoundary, trigger: photon.PseudoReflectedTissueBoundary,
			z: t.SurfaceZ(), terminal: true, controller: c}
	case detector.DiffuseTransmittance:
		return &planar{typ: typ, flag: photon.PseudoDiffuseTransmittanceVirtualBoundary, trigger: photon.PseudoTransmittedTissueBoundary,
			z: t.BottomZ(), terminal: true, controller: c}
	case detector.PMCDiffuseTransmittance:
		return &planar{typ: typ, flag: photon.PseudoDiffuseTransmittanceVirtualBoundary, trigger: photon.PseudoTransmittedTissueBoundary,
			z: t.BottomZ(), terminal: true, controller: c}
	case detector.SpecularReflectance:
		return &planar{typ: typ, flag: photon.PseudoSpecularReflectanceVirtualBoundary, trigger: photon.PseudoSpecularTissueBoundary,
			z: t.SurfaceZ(), terminal: true, controller: c}
	case detector.SurfaceRadiance:
		return &planar{typ: typ, flag: photon.PseudoSurfaceRadianceVirtualBoundary, z: zDepth, controller: c}
	case detector.BoundingVolume:
		return &volume{typ: typ, flag: photon.PseudoBoundingVolumeVirtualBoundary, trigger: photon.PseudoBoundingVolumeTissueBoundary, controller: c}
	}
	return &volume{typ: detector.GenericVolumeBoundary, controller: c}
}
