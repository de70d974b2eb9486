package detector

import (
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
)

const (
	RDiffuse             TallyType = "RDiffuse"
	RSpecular            TallyType = "RSpecular"
	TDiffuse             TallyType = "TDiffuse"
	ROfRho               TallyType = "ROfRho"
	ROfRhoAndTime        TallyType = "ROfRhoAndTime"
	ROfRhoAndAngle       TallyType = "ROfRhoAndAngle"
	ROfAngle             TallyType = "ROfAngle"
	ROfXAndY             TallyType = "ROfXAndY"
	TOfRho               TallyType = "TOfRho"
	TOfAngle             TallyType = "TOfAngle"
	TOfRhoAndAngle       TallyType = "TOfRhoAndAngle"
	RadianceOfRhoAtZ     TallyType = "RadianceOfRhoAtZ"
	ATotalBoundingVolume TallyType = "ATotalBoundingVolume"
)

// surface scores the weight of a data point in the bin picked by bin.
type surface struct {
	base
	bin     func(dp photon.DataPoint) int
	measure func(flat int) float64
}

func (s *surface) TallySingle(dp photon.DataPoint) {
	s.h.add(s.bin(dp), dp.Weight)
}

func (s *surface) Normalize(n int64) {
	s.h.normalize(n, s.measure)
}

func rho(dp photon.DataPoint) float64 {
	return math.Hypot(dp.Position.X, dp.Position.Y)
}

// exit angle from the surface normal; reflected photons travel upwards
func reflectedAngle(dp photon.DataPoint) float64 {
	return math.Acos(max(-1, min(1, -dp.Direction.Z)))
}

func transmittedAngle(dp photon.DataPoint) float64 {
	return math.Acos(max(-1, min(1, dp.Direction.Z)))
}

// ringArea is the area 2*pi*rho*drho of radial bin i.
func ringArea(a Axis, i int) float64 {
	return 2 * math.Pi * a.Value(i) * a.Range.Delta()
}

// solidAngle is 2*pi*sin(theta)*dtheta of angular bin i.
func solidAngle(a Axis, i int) float64 {
	return 2 * math.Pi * math.Sin(a.Value(i)) * a.Range.Delta()
}

func newTotal(in Input, tt TallyType) (Detector, error) {
	return &surface{
		base: base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment)},
		bin:  func(photon.DataPoint) int { return 0 },
	}, nil
}

func newOfRho(in Input, tt TallyType) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho})
	if err != nil {
		return nil, err
	}
	d := &surface{base: base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment, ax...)}}
	d.bin = func(dp photon.DataPoint) int { return WhichBin(rho(dp), in.Rho) }
	d.measure = func(i int) float64 { return ringArea(ax[0], i) }
	return d, nil
}

func newOfAngle(in Input, tt TallyType, angle func(photon.DataPoint) float64) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "Angle", Range: in.Angle})
	if err != nil {
		return nil, err
	}
	d := &surface{base: base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment, ax...)}}
	d.bin = func(dp photon.DataPoint) int { return WhichBin(angle(dp), in.Angle) }
	d.measure = func(i int) float64 { return solidAngle(ax[0], i) }
	return d, nil
}

func newOfRhoAndAngle(in Input, tt TallyType, angle func(photon.DataPoint) float64) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Angle", Range: in.Angle})
	if err != nil {
		return nil, err
	}
	d := &surface{base: base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment, ax...)}}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(rho(dp), in.Rho), WhichBin(angle(dp), in.Angle))
	}
	d.measure = func(i int) float64 {
		idx := d.h.Unflatten(i)
		return ringArea(ax[0], idx[0]) * solidAngle(ax[1], idx[1])
	}
	return d, nil
}

func newROfRhoAndTime(in Input) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Time", Range: in.Time})
	if err != nil {
		return nil, err
	}
	d := &surface{base: base{name: in.DetectorName(), tallyType: ROfRhoAndTime, h: newHistogram(false, in.TallySecondMoment, ax...)}}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(rho(dp), in.Rho), WhichBin(dp.TotalTime, in.Time))
	}
	d.measure = func(i int) float64 {
		idx := d.h.Unflatten(i)
		return ringArea(ax[0], idx[0]) * in.Time.Delta()
	}
	return d, nil
}

func newROfXAndY(in Input) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "X", Range: in.X}, Axis{Name: "Y", Range: in.Y})
	if err != nil {
		return nil, err
	}
	d := &surface{base: base{name: in.DetectorName(), tallyType: ROfXAndY, h: newHistogram(false, in.TallySecondMoment, ax...)}}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(dp.Position.X, in.X), WhichBin(dp.Position.Y, in.Y))
	}
	area := in.X.Delta() * in.Y.Delta()
	d.measure = func(int) float64 { return area }
	return d, nil
}

func init() {
	total := func(tt TallyType) func(Input) (Detector, error) {
		return func(in Input) (Detector, error) { return newTotal(in, tt) }
	}
	ofRho := func(tt TallyType) func(Input) (Detector, error) {
		return func(in Input) (Detector, error) { return newOfRho(in, tt) }
	}
	Register(RDiffuse, Registration{DiffuseReflectance, total(RDiffuse)})
	Register(RSpecular, Registration{SpecularReflectance, total(RSpecular)})
	Register(TDiffuse, Registration{DiffuseTransmittance, total(TDiffuse)})
	Register(ATotalBoundingVolume, Registration{BoundingVolume, total(ATotalBoundingVolume)})
	Register(ROfRho, Registration{DiffuseReflectance, ofRho(ROfRho)})
	Register(TOfRho, Registration{DiffuseTransmittance, ofRho(TOfRho)})
	Register(RadianceOfRhoAtZ, Registration{SurfaceRadiance, ofRho(RadianceOfRhoAtZ)})
	Register(ROfRhoAndTime, Registration{DiffuseReflectance, newROfRhoAndTime})
	Register(ROfXAndY, Registration{DiffuseReflectance, newROfXAndY})
	Register(ROfAngle, Registration{DiffuseReflectance, func(in Input) (Detector, error) {
		return newOfAngle(in, ROfAngle, reflectedAngle)
	}})
	Register(TOfAngle, Registration{DiffuseTransmittance, func(in Input) (Detector, error) {
		return newOfAngle(in, TOfAngle, transmittedAngle)
	}})
	Register(ROfRhoAndAngle, Registration{DiffuseReflectance, func(in Input) (Detector, error) {
		return newOfRhoAndAngle(in, ROfRhoAndAngle, reflectedAngle)
	}})
	Register(TOfRhoAndAngle, Registration{DiffuseTransmittance, func(in Input) (Detector, error) {
		return newOfRhoAndAngle(in, TOfRhoAndAngle, transmittedAngle)
	}})
}
