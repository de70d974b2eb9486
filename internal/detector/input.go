package detector

import (
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

// Input configures one detector.
// Only the axes of its tally type are read.
type Input struct {
	TallyType         TallyType          `toml:"TallyType" yaml:"tallyType"`
	Name              string             `toml:"Name,omitempty" yaml:"name,omitempty"`
	Rho               optics.DoubleRange `toml:"Rho,omitempty" yaml:"rho,omitempty"`
	Z                 optics.DoubleRange `toml:"Z,omitempty" yaml:"z,omitempty"`
	Time              optics.DoubleRange `toml:"Time,omitempty" yaml:"time,omitempty"`
	Angle             optics.DoubleRange `toml:"Angle,omitempty" yaml:"angle,omitempty"`
	X                 optics.DoubleRange `toml:"X,omitempty" yaml:"x,omitempty"`
	Y                 optics.DoubleRange `toml:"Y,omitempty" yaml:"y,omitempty"`
	Fx                optics.DoubleRange `toml:"Fx,omitempty" yaml:"fx,omitempty"`
	Omega             optics.DoubleRange `toml:"Omega,omitempty" yaml:"omega,omitempty"`
	ZDepth            float64            `toml:"ZDepth,omitempty" yaml:"zDepth,omitempty"`
	TallySecondMoment bool               `toml:"TallySecondMoment,omitempty" yaml:"tallySecondMoment,omitempty"`

	// perturbation detectors
	PerturbedOps            []optics.Input `toml:"PerturbedOps,omitempty" yaml:"perturbedOps,omitempty"`
	PerturbedRegionsIndices []int          `toml:"PerturbedRegionsIndices,omitempty" yaml:"perturbedRegionsIndices,omitempty"`
}

// DetectorName is Name, or the tally type when Name is empty.
func (in Input) DetectorName() string {
	if in.Name == "" {
		return string(in.TallyType)
	}
	return in.Name
}

// Registration binds a tally type to its boundary and constructor.
type Registration struct {
	VirtualBoundary VirtualBoundaryType
	New             func(in Input) (Detector, error)
}

var registry = map[TallyType]Registration{}

// Register adds or replaces a tally type.
// It is meant to be called before any simulation is built.
func Register(t TallyType, r Registration) {
	registry[t] = r
}

func Lookup(t TallyType) (Registration, error) {
	r, ok := registry[t]
	if !ok {
		return r, errs.Configuration("unknown tally type %q", t)
	}
	return r, nil
}

// New builds the detector described by in.
func New(in Input) (Detector, error) {
	r, err := Lookup(in.TallyType)
	if err != nil {
		return nil, err
	}
	return r.New(in)
}

// BoundaryOf is the virtual boundary the tally type listens on.
func BoundaryOf(t TallyType) (VirtualBoundaryType, error) {
	r, err := Lookup(t)
	return r.VirtualBoundary, err
}

// IsPerturbation reports whether the tally type replays a photon database.
func IsPerturbation(t TallyType) bool {
	vb, err := BoundaryOf(t)
	return err == nil && (vb == PMCDiffuseReflectance || vb == PMCDiffuseTransmittance)
}

// checkAxes validates every axis.
func checkAxes(axes ...Axis) ([]Axis, error) {
	for _, a := range axes {
		r := a.Range
		switch {
		case !a.Points:
			if err := r.Validate(a.Name); err != nil {
				return nil, err
			}
		case r.Count < 1:
			return nil, errs.Configuration("axis %s: count %d defines no point", a.Name, r.Count)
		case r.Count > 1 && !(r.Stop > r.Start):
			return nil, errs.Configuration("axis %s: invalid range [%v, %v]", a.Name, r.Start, r.Stop)
		}
	}
	return axes, nil
}
