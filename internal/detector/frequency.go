package detector

import (
	"math"
	"math/cmplx"

	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
)

const (
	// ROfFx is the spatial frequency reflectance, Fx in 1/mm.
	ROfFx TallyType = "ROfFx"
	// ROfRhoAndOmega is the temporal frequency reflectance, Omega in GHz.
	ROfRhoAndOmega TallyType = "ROfRhoAndOmega"
)

// frequency scores weight*exp(-i*phase) for every point of its frequency axis.
type frequency struct {
	base
	values  []float64
	row     func(dp photon.DataPoint) int // bin of the leading axis, -1 without one
	phase   func(dp photon.DataPoint, f float64) float64
	measure func(flat int) float64
}

func (d *frequency) TallySingle(dp photon.DataPoint) {
	d.tallyWeighted(dp, dp.Weight)
}

func (d *frequency) tallyWeighted(dp photon.DataPoint, w float64) {
	first := 0
	if d.row != nil {
		first = d.row(dp) * len(d.values)
	}
	for i, f := range d.values {
		d.h.addComplex(first+i, complex(w, 0)*cmplx.Exp(complex(0, -d.phase(dp, f))))
	}
}

func (d *frequency) Normalize(n int64) {
	d.h.normalize(n, d.measure)
}

func axisValues(a Axis) []float64 {
	v := make([]float64, a.Len())
	for i := range v {
		v[i] = a.Value(i)
	}
	return v
}

func newROfFx(in Input, tt TallyType) (*frequency, error) {
	ax, err := checkAxes(Axis{Name: "Fx", Range: in.Fx, Points: true})
	if err != nil {
		return nil, err
	}
	return &frequency{
		base:   base{name: in.DetectorName(), tallyType: tt, h: newHistogram(true, in.TallySecondMoment, ax...)},
		values: axisValues(ax[0]),
		phase: func(dp photon.DataPoint, fx float64) float64 {
			return 2 * math.Pi * fx * dp.Position.X
		},
	}, nil
}

func newROfRhoAndOmega(in Input) (Detector, error) {
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Omega", Range: in.Omega, Points: true})
	if err != nil {
		return nil, err
	}
	d := &frequency{
		base:   base{name: in.DetectorName(), tallyType: ROfRhoAndOmega, h: newHistogram(true, in.TallySecondMoment, ax...)},
		values: axisValues(ax[1]),
		row:    func(dp photon.DataPoint) int { return WhichBin(rho(dp), in.Rho) },
		phase: func(dp photon.DataPoint, f float64) float64 {
			return 2 * math.Pi * f * dp.TotalTime
		},
	}
	d.measure = func(i int) float64 { return ringArea(ax[0], d.h.Unflatten(i)[0]) }
	return d, nil
}

func init() {
	Register(ROfFx, Registration{DiffuseReflectance, func(in Input) (Detector, error) {
		d, err := newROfFx(in, ROfFx)
		if err != nil {
			return nil, err
		}
		return d, nil
	}})
	Register(ROfRhoAndOmega, Registration{DiffuseReflectance, newROfRhoAndOmega})
}
