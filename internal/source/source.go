// Package source launches photons.
//
// A source owns whatever sampling state it needs and is confined
// to the goroutine of its simulation.
package source

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

// Source samples the initial state of a photon and the region it starts in.
type Source interface {
	NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error)
}

// Kind names a source.
type Kind string

const (
	DirectionalPoint       Kind = "DirectionalPoint"
	IsotropicPoint         Kind = "IsotropicPoint"
	CustomPoint            Kind = "CustomPoint"
	DirectionalCircular    Kind = "DirectionalCircular"
	DirectionalRectangular Kind = "DirectionalRectangular"
	IsotropicVolumetric    Kind = "IsotropicVolumetric"
	FluorescenceEmission   Kind = "FluorescenceEmission"
)

// Profile is the transverse beam profile of a surface source.
type Profile string

const (
	Flat     Profile = "Flat"
	Gaussian Profile = "Gaussian"
)

// Input describes a source.
// Only the fields of its kind are read.
type Input struct {
	Kind Kind `toml:"Kind" yaml:"kind"`

	// Points and surfaces. Direction is the beam axis; a tilted axis tilts the beam.
	Position  r3.Vec `toml:"Position" yaml:"position"`
	Direction r3.Vec `toml:"Direction" yaml:"direction"`

	// CustomPoint, radians around Direction
	PolarAngle     optics.DoubleRange `toml:"PolarAngle,omitempty" yaml:"polarAngle,omitempty"`
	AzimuthalAngle optics.DoubleRange `toml:"AzimuthalAngle,omitempty" yaml:"azimuthalAngle,omitempty"`

	// DirectionalCircular, DirectionalRectangular
	Profile          Profile `toml:"Profile,omitempty" yaml:"profile,omitempty"`
	InnerRadius      float64 `toml:"InnerRadius,omitempty" yaml:"innerRadius,omitempty"`
	OuterRadius      float64 `toml:"OuterRadius,omitempty" yaml:"outerRadius,omitempty"`
	BeamDiameterFWHM float64 `toml:"BeamDiameterFWHM,omitempty" yaml:"beamDiameterFWHM,omitempty"`
	LengthX          float64 `toml:"LengthX,omitempty" yaml:"lengthX,omitempty"`
	WidthY           float64 `toml:"WidthY,omitempty" yaml:"widthY,omitempty"`

	// IsotropicVolumetric
	Region *tissue.RegionInput `toml:"Region,omitempty" yaml:"region,omitempty"`

	// FluorescenceEmission
	InputFolder  string   `toml:"InputFolder,omitempty" yaml:"inputFolder,omitempty"`
	DetectorName string   `toml:"DetectorName,omitempty" yaml:"detectorName,omitempty"`
	Sampling     Sampling `toml:"Sampling,omitempty" yaml:"sampling,omitempty"`
}

// DefaultInput is a pencil beam entering the tissue at the origin.
func DefaultInput() Input {
	return Input{Kind: DirectionalPoint, Direction: r3.Vec{Z: 1}}
}

// New builds the source described by in.
func New(in Input) (Source, error) {
	axis, err := beamAxis(in.Direction)
	if err != nil {
		return nil, err
	}
	switch in.Kind {
	case DirectionalPoint:
		return &point{pos: in.Position, dir: axis}, nil
	case IsotropicPoint:
		return &point{pos: in.Position, isotropic: true}, nil
	case CustomPoint:
		return newCustomPoint(in, axis)
	case DirectionalCircular:
		return newCircular(in, axis)
	case DirectionalRectangular:
		return newRectangular(in, axis)
	case IsotropicVolumetric:
		return newVolumetric(in)
	case FluorescenceEmission:
		return newFluorescence(in)
	}
	return nil, errs.Configuration("unknown source kind %q", in.Kind)
}

func beamAxis(d r3.Vec) (r3.Vec, error) {
	if d == (r3.Vec{}) {
		return r3.Vec{Z: 1}, nil
	}
	n := r3.Norm(d)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return d, errs.Configuration("invalid source direction %v", d)
	}
	return r3.Scale(1/n, d), nil
}

func launch(t tissue.Tissue, pos, dir r3.Vec) (photon.DataPoint, int, error) {
	dp := photon.NewDataPoint(pos, dir, 1, 0, photon.Alive)
	region, err := t.RegionIndexAlong(pos, dir)
	if err != nil {
		return dp, 0, err
	}
	return dp, region, nil
}

func isotropic(r rng.Source) r3.Vec {
	ux, uy, uz := utils.UniformOnSphere(r)
	return r3.Vec{X: ux, Y: uy, Z: uz}
}

type point struct {
	pos       r3.Vec
	dir       r3.Vec
	isotropic bool
}

func (s *point) NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error) {
	dir := s.dir
	if s.isotropic {
		dir = isotropic(r)
	}
	return launch(t, s.pos, dir)
}

// customPoint emits uniformly in solid angle within polar and azimuthal ranges
// measured around its axis.
type customPoint struct {
	pos          r3.Vec
	axis         r3.Vec
	cosLo, cosHi float64
	phiLo, phiHi float64
}

func newCustomPoint(in Input, axis r3.Vec) (*customPoint, error) {
	p, a := in.PolarAngle, in.AzimuthalAngle
	if p.Start < 0 || p.Stop > math.Pi || p.Start > p.Stop {
		return nil, errs.Configuration("polar angle range [%v, %v] outside [0, pi]", p.Start, p.Stop)
	}
	if a.Start > a.Stop {
		return nil, errs.Configuration("azimuthal angle range [%v, %v] is reversed", a.Start, a.Stop)
	}
	if a == (optics.DoubleRange{}) {
		a.Stop = 2 * math.Pi
	}
	return &customPoint{
		pos:   in.Position,
		axis:  axis,
		cosLo: math.Cos(p.Stop),
		cosHi: math.Cos(p.Start),
		phiLo: a.Start,
		phiHi: a.Stop,
	}, nil
}

func (s *customPoint) NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error) {
	cosTheta := s.cosLo + (s.cosHi-s.cosLo)*r.Float64()
	phi := s.phiLo + (s.phiHi-s.phiLo)*r.Float64()
	return launch(t, s.pos, phase.Rotate(s.axis, cosTheta, phi))
}

// sigma converts a full width at half maximum to a standard deviation.
func sigma(fwhm float64) float64 {
	return fwhm / (2 * math.Sqrt(2*math.Ln2))
}

// truncatedGaussian samples a centred normal of standard deviation s
// restricted to [lo, hi].
func truncatedGaussian(r rng.Source, s, lo, hi float64) float64 {
	for {
		v := s * utils.Gaussian(r)
		if v >= lo && v <= hi {
			return v
		}
	}
}

// surface sources emit from a plane through pos along a fixed axis.
type surface struct {
	pos    r3.Vec
	axis   r3.Vec
	sample func(r rng.Source) (x, y float64)
}

func (s *surface) NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error) {
	x, y := s.sample(r)
	pos := r3.Add(s.pos, r3.Vec{X: x, Y: y})
	return launch(t, pos, s.axis)
}

func checkProfile(in Input) error {
	switch in.Profile {
	case Flat, "":
	case Gaussian:
		if !(in.BeamDiameterFWHM > 0) {
			return errs.Configuration("gaussian profile needs a positive BeamDiameterFWHM")
		}
	default:
		return errs.Configuration("unknown beam profile %q", in.Profile)
	}
	return nil
}

func newCircular(in Input, axis r3.Vec) (*surface, error) {
	if err := checkProfile(in); err != nil {
		return nil, err
	}
	ri, ro := in.InnerRadius, in.OuterRadius
	if !(ro > 0) || ri < 0 || ri >= ro {
		return nil, errs.Configuration("circular source needs 0 <= InnerRadius < OuterRadius")
	}
	s := &surface{pos: in.Position, axis: axis}
	switch {
	case in.Profile == Gaussian:
		sd := sigma(in.BeamDiameterFWHM)
		s.sample = func(r rng.Source) (x, y float64) {
			for {
				x, y = sd*utils.Gaussian(r), sd*utils.Gaussian(r)
				if rho := math.Hypot(x, y); rho >= ri && rho <= ro {
					return x, y
				}
			}
		}
	case ri == 0:
		s.sample = func(r rng.Source) (x, y float64) { return utils.UniformOnDisk(r, ro) }
	default:
		s.sample = func(r rng.Source) (x, y float64) {
			rho := math.Sqrt(ri*ri + (ro*ro-ri*ri)*r.Float64())
			sin, cos := math.Sincos(2 * math.Pi * r.Float64())
			return rho * cos, rho * sin
		}
	}
	return s, nil
}

func newRectangular(in Input, axis r3.Vec) (*surface, error) {
	if err := checkProfile(in); err != nil {
		return nil, err
	}
	hx, hy := in.LengthX/2, in.WidthY/2
	if !(hx > 0 && hy > 0) {
		return nil, errs.Configuration("rectangular source needs positive LengthX and WidthY")
	}
	s := &surface{pos: in.Position, axis: axis}
	if in.Profile == Gaussian {
		sd := sigma(in.BeamDiameterFWHM)
		s.sample = func(r rng.Source) (x, y float64) {
			return truncatedGaussian(r, sd, -hx, hx), truncatedGaussian(r, sd, -hy, hy)
		}
		return s, nil
	}
	s.sample = func(r rng.Source) (x, y float64) {
		return hx * (2*r.Float64() - 1), hy * (2*r.Float64() - 1)
	}
	return s, nil
}

// volumetric emits isotropically from points uniform in a region,
// drawn by rejection from its bounding box.
type volumetric struct {
	region tissue.Region
	lo, hi r3.Vec
}

func newVolumetric(in Input) (*volumetric, error) {
	if in.Region == nil {
		return nil, errs.Configuration("volumetric source needs a region")
	}
	ri := *in.Region
	if ri.Ops.N == 0 {
		ri.Ops.N = 1
	}
	var lo, hi r3.Vec
	switch ri.Shape {
	case tissue.Ellipsoid:
		d := r3.Vec{X: ri.Dx, Y: ri.Dy, Z: ri.Dz}
		lo, hi = r3.Sub(ri.Center, d), r3.Add(ri.Center, d)
	case tissue.Voxel:
		lo, hi = ri.Min, ri.Max
	default:
		return nil, errs.Configuration("volumetric source region must be an ellipsoid or a voxel, got %q", ri.Shape)
	}
	region, err := tissue.NewRegion(ri)
	if err != nil {
		return nil, err
	}
	return &volumetric{region: region, lo: lo, hi: hi}, nil
}

func (s *volumetric) NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error) {
	var pos r3.Vec
	for {
		pos = uniformInBox(r, s.lo, s.hi)
		if s.region.Contains(pos) {
			break
		}
	}
	return launch(t, pos, isotropic(r))
}

func uniformInBox(r rng.Source, lo, hi r3.Vec) r3.Vec {
	return r3.Vec{
		X: lo.X + (hi.X-lo.X)*r.Float64(),
		Y: lo.Y + (hi.Y-lo.Y)*r.Float64(),
		Z: lo.Z + (hi.Z-lo.Z)*r.Float64(),
	}
}

// Specular splits a photon launched on the tissue surface towards the tissue
// into the transmitted part and the part reflected by the surface.
// Photons not entering through the top surface are returned unchanged
// with ok false.
func Specular(dp photon.DataPoint, region int, t tissue.Tissue) (launched, reflected photon.DataPoint, ok bool) {
	if dp.Direction.Z <= 0 || math.Abs(dp.Position.Z-t.SurfaceZ()) > constants.BoundaryEpsilon {
		return dp, reflected, false
	}
	if t.Exit(region, region) != tissue.Interior {
		return dp, reflected, false
	}
	regions := t.Regions()
	n0, n1 := regions[0].OpticalProperties().N(), regions[region].OpticalProperties().N()
	normal := r3.Vec{Z: 1}
	rs, cosT := tissue.Fresnel(n0, n1, dp.Direction.Z)

	reflected = dp
	reflected.Direction = tissue.Reflect(dp.Direction, normal)
	reflected.Weight = dp.Weight * rs
	reflected.StateFlag = photon.PseudoSpecularTissueBoundary

	launched = dp
	launched.Weight = dp.Weight * (1 - rs)
	launched.Direction = tissue.Refract(dp.Direction, normal, n0, n1, cosT)
	return launched, reflected, true
}
