package tissue

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
)

// Kind names a tissue geometry.
type Kind string

const (
	MultiLayerKind       Kind = "MultiLayer"
	SingleInclusionKind  Kind = "SingleInclusion"
	BoundingCylinderKind Kind = "BoundingCylinder"
)

// Shape names a region geometry.
type Shape string

const (
	Layer            Shape = "Layer"
	Ellipsoid        Shape = "Ellipsoid"
	Cylinder         Shape = "Cylinder"
	CaplessCylinder  Shape = "CaplessCylinder"
	InfiniteCylinder Shape = "InfiniteCylinder"
	Voxel            Shape = "Voxel"
)

// RegionInput describes one region.
// Only the fields of its shape are read.
type RegionInput struct {
	Shape Shape `toml:"Shape" yaml:"shape"`

	// Layer
	ZStart float64 `toml:"ZStart,omitempty" yaml:"zStart,omitempty"`
	ZStop  float64 `toml:"ZStop,omitempty" yaml:"zStop,omitempty"`

	// Ellipsoid, cylinders
	Center r3.Vec  `toml:"Center,omitempty" yaml:"center,omitempty"`
	Dx     float64 `toml:"Dx,omitempty" yaml:"dx,omitempty"`
	Dy     float64 `toml:"Dy,omitempty" yaml:"dy,omitempty"`
	Dz     float64 `toml:"Dz,omitempty" yaml:"dz,omitempty"`
	Radius float64 `toml:"Radius,omitempty" yaml:"radius,omitempty"`
	Height float64 `toml:"Height,omitempty" yaml:"height,omitempty"`

	// Voxel
	Min r3.Vec `toml:"Min,omitempty" yaml:"min,omitempty"`
	Max r3.Vec `toml:"Max,omitempty" yaml:"max,omitempty"`

	Ops              optics.Input `toml:"RegionOP" yaml:"regionOP"`
	PhaseFunctionKey string       `toml:"PhaseFunctionKey,omitempty" yaml:"phaseFunctionKey,omitempty"`
}

// PhaseFunctionInput is a named phase function of the tissue.
type PhaseFunctionInput struct {
	Type   phase.Type   `toml:"Type" yaml:"type"`
	Params phase.Params `toml:"Params,omitempty" yaml:"params,omitempty"`
}

// Input describes a tissue.
// Layers always go from -Inf to +Inf;
// Inclusion is read by SingleInclusion, BoundingCylinder by BoundingCylinder.
type Input struct {
	Kind             Kind                          `toml:"Kind" yaml:"kind"`
	Layers           []RegionInput                 `toml:"Layers" yaml:"layers"`
	Inclusion        *RegionInput                  `toml:"Inclusion,omitempty" yaml:"inclusion,omitempty"`
	BoundingCylinder *RegionInput                  `toml:"BoundingCylinder,omitempty" yaml:"boundingCylinder,omitempty"`
	PhaseFunctions   map[string]PhaseFunctionInput `toml:"PhaseFunctions,omitempty" yaml:"phaseFunctions,omitempty"`
}

// New builds a tissue.
// Regions without a phase function key use defaultPhase.
func New(in Input, defaultPhase phase.Type) (Tissue, error) {
	layers, err := buildLayers(in.Layers)
	if err != nil {
		return nil, err
	}
	base := layered{layers: layers}
	for _, l := range layers {
		base.regions = append(base.regions, l)
	}

	var t Tissue
	switch in.Kind {
	case MultiLayerKind, "":
		t = &MultiLayer{layered: base}
	case SingleInclusionKind:
		if in.Inclusion == nil {
			return nil, errs.Configuration("single inclusion tissue without inclusion")
		}
		inc, err := NewRegion(*in.Inclusion)
		if err != nil {
			return nil, err
		}
		zmin, zmax := zExtent(*in.Inclusion)
		host := -1
		for i := 1; i < len(layers)-1; i++ {
			if layers[i].Top <= zmin && zmax <= layers[i].Bottom {
				host = i
				break
			}
		}
		if host < 0 {
			return nil, errs.Configuration("inclusion [%g, %g] is not inside a single tissue layer", zmin, zmax)
		}
		s := &SingleInclusion{layered: base, inclusion: inc, index: len(base.regions), host: host}
		s.regions = append(s.regions, inc)
		t = s
	case BoundingCylinderKind:
		if in.BoundingCylinder == nil {
			return nil, errs.Configuration("bounding cylinder tissue without cylinder")
		}
		bc := *in.BoundingCylinder
		bc.Shape = CaplessCylinder
		reg, err := NewRegion(bc)
		if err != nil {
			return nil, err
		}
		b := &BoundingCylinder{layered: base, cylinder: reg.(*CylinderRegion), index: len(base.regions)}
		b.regions = append(b.regions, reg)
		t = b
	default:
		return nil, errs.Configuration("unknown tissue kind %q", in.Kind)
	}

	regionInputs := append([]RegionInput{}, in.Layers...)
	switch {
	case in.Kind == SingleInclusionKind:
		regionInputs = append(regionInputs, *in.Inclusion)
	case in.Kind == BoundingCylinderKind:
		regionInputs = append(regionInputs, *in.BoundingCylinder)
	}
	functions := make([]phase.Function, len(regionInputs))
	for i, ri := range regionInputs {
		g := t.Regions()[i].OpticalProperties().G()
		if ri.PhaseFunctionKey == "" {
			functions[i], err = phase.New(defaultPhase, g, phase.Params{})
		} else {
			pf, ok := in.PhaseFunctions[ri.PhaseFunctionKey]
			if !ok {
				return nil, errs.Configuration("region %d: unknown phase function key %q", i, ri.PhaseFunctionKey)
			}
			functions[i], err = phase.New(pf.Type, g, pf.Params)
		}
		if err != nil {
			return nil, err
		}
	}
	switch v := t.(type) {
	case *MultiLayer:
		v.phase = functions
	case *SingleInclusion:
		v.phase = functions
	case *BoundingCylinder:
		v.phase = functions
	}
	return t, nil
}

func buildLayers(in []RegionInput) ([]*LayerRegion, error) {
	if len(in) < 3 {
		return nil, errs.Configuration("tissue needs at least 3 layers (medium above, tissue, medium below), got %d", len(in))
	}
	layers := make([]*LayerRegion, len(in))
	for i, ri := range in {
		if ri.Shape != Layer && ri.Shape != "" {
			return nil, errs.Configuration("layer %d: shape %q is not a layer", i, ri.Shape)
		}
		ri.Shape = Layer
		r, err := NewRegion(ri)
		if err != nil {
			return nil, errs.Configuration("layer %d: %v", i, err)
		}
		layers[i] = r.(*LayerRegion)
		if !(layers[i].Bottom > layers[i].Top) {
			return nil, errs.Configuration("layer %d: empty z range [%g, %g]", i, ri.ZStart, ri.ZStop)
		}
		if i > 0 && layers[i].Top != layers[i-1].Bottom {
			return nil, errs.Configuration("layer %d starts at %g, previous ends at %g", i, layers[i].Top, layers[i-1].Bottom)
		}
	}
	if !math.IsInf(layers[0].Top, -1) || !math.IsInf(layers[len(layers)-1].Bottom, 1) {
		return nil, errs.Configuration("first layer must start at -inf and last layer end at +inf")
	}
	return layers, nil
}

// NewRegion builds a standalone region from its input.
func NewRegion(ri RegionInput) (Region, error) {
	ops, err := ri.Ops.Build()
	if err != nil {
		return nil, err
	}
	switch ri.Shape {
	case Layer:
		return NewLayer(ri.ZStart, ri.ZStop, ops, ri.PhaseFunctionKey), nil
	case Ellipsoid:
		if !(ri.Dx > 0 && ri.Dy > 0 && ri.Dz > 0) {
			return nil, errs.Configuration("ellipsoid semi-axes must be positive")
		}
		return NewEllipsoid(ri.Center, ri.Dx, ri.Dy, ri.Dz, ops, ri.PhaseFunctionKey), nil
	case Cylinder, CaplessCylinder:
		if !(ri.Radius > 0) || (ri.Shape == Cylinder && !(ri.Height > 0)) {
			return nil, errs.Configuration("cylinder radius and height must be positive")
		}
		return NewCylinder(ri.Center, ri.Radius, ri.Height, ri.Shape == Cylinder, ops, ri.PhaseFunctionKey), nil
	case InfiniteCylinder:
		if !(ri.Radius > 0) {
			return nil, errs.Configuration("cylinder radius must be positive")
		}
		return NewInfiniteCylinder(ri.Center, ri.Radius, ops, ri.PhaseFunctionKey), nil
	case Voxel:
		if !(ri.Max.X > ri.Min.X && ri.Max.Y > ri.Min.Y && ri.Max.Z > ri.Min.Z) {
			return nil, errs.Configuration("voxel max must exceed min on every axis")
		}
		return NewVoxel(ri.Min, ri.Max, ops, ri.PhaseFunctionKey), nil
	}
	return nil, errs.Configuration("unknown region shape %q", ri.Shape)
}

func zExtent(ri RegionInput) (zmin, zmax float64) {
	switch ri.Shape {
	case Ellipsoid:
		return ri.Center.Z - ri.Dz, ri.Center.Z + ri.Dz
	case Cylinder:
		return ri.Center.Z - ri.Height/2, ri.Center.Z + ri.Height/2
	case InfiniteCylinder:
		return ri.Center.Z - ri.Radius, ri.Center.Z + ri.Radius
	case Voxel:
		return ri.Min.Z, ri.Max.Z
	}
	return math.Inf(-1), math.Inf(1)
}

// LayerInput is a shorthand for a layer region input.
func LayerInput(top, bottom float64, ops optics.OpticalProperties) RegionInput {
	return RegionInput{Shape: Layer, ZStart: top, ZStop: bottom, Ops: optics.InputFrom(ops)}
}

// OpticalProperties lists the properties of every region in index order.
func OpticalProperties(t Tissue) []optics.OpticalProperties {
	ops := make([]optics.OpticalProperties, len(t.Regions()))
	for i, r := range t.Regions() {
		ops[i] = r.OpticalProperties()
	}
	return ops
}
