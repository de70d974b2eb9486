package detector

import (
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
)

const (
	ATotal                  TallyType = "ATotal"
	AOfRhoAndZ              TallyType = "AOfRhoAndZ"
	AOfXAndYAndZ            TallyType = "AOfXAndYAndZ"
	FluenceOfRhoAndZ        TallyType = "FluenceOfRhoAndZ"
	FluenceOfRhoAndZAndTime TallyType = "FluenceOfRhoAndZAndTime"
	FluenceOfXAndYAndZ      TallyType = "FluenceOfXAndYAndZ"
)

// volume replays a photon history, scoring every segment.
// The second moment is taken over whole photons.
type volume struct {
	base
	score   func(h *photon.History, i int) float64
	bin     func(dp photon.DataPoint) int
	measure func(flat int) float64

	scratch []float64
	touched []int
}

func (d *volume) TallyHistory(h *photon.History) {
	for i := 1; i < h.Len(); i++ {
		w := d.score(h, i)
		if w == 0 {
			continue
		}
		b := d.bin(h.Points[i])
		if !d.h.TallySecondMoment {
			d.h.Mean[b] += w
			continue
		}
		if d.scratch[b] == 0 {
			d.touched = append(d.touched, b)
		}
		d.scratch[b] += w
	}
	for _, b := range d.touched {
		d.h.add(b, d.scratch[b])
		d.scratch[b] = 0
	}
	d.touched = d.touched[:0]
}

func (d *volume) Normalize(n int64) {
	d.h.normalize(n, d.measure)
}

func absorbed(h *photon.History, i int) float64 { return h.AbsorbedWeight(i) }
func fluence(h *photon.History, i int) float64  { return h.Fluence(i) }

func newVolume(in Input, tt TallyType, score func(*photon.History, int) float64, ax ...Axis) (*volume, error) {
	ax, err := checkAxes(ax...)
	if err != nil {
		return nil, err
	}
	d := &volume{
		base:  base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment, ax...)},
		score: score,
	}
	if in.TallySecondMoment {
		d.scratch = make([]float64, d.h.Size())
	}
	return d, nil
}

func newVolumeTotal(in Input) (Detector, error) {
	d, err := newVolume(in, ATotal, absorbed)
	if err != nil {
		return nil, err
	}
	d.bin = func(photon.DataPoint) int { return 0 }
	return d, nil
}

func newVolumeOfRhoAndZ(in Input, tt TallyType, score func(*photon.History, int) float64) (Detector, error) {
	d, err := newVolume(in, tt, score, Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Z", Range: in.Z})
	if err != nil {
		return nil, err
	}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(rho(dp), in.Rho), WhichBin(dp.Position.Z, in.Z))
	}
	d.measure = func(i int) float64 {
		return ringArea(d.h.Axes[0], d.h.Unflatten(i)[0]) * in.Z.Delta()
	}
	return d, nil
}

func newFluenceOfRhoAndZAndTime(in Input) (Detector, error) {
	d, err := newVolume(in, FluenceOfRhoAndZAndTime, fluence,
		Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Z", Range: in.Z}, Axis{Name: "Time", Range: in.Time})
	if err != nil {
		return nil, err
	}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(rho(dp), in.Rho), WhichBin(dp.Position.Z, in.Z), WhichBin(dp.TotalTime, in.Time))
	}
	d.measure = func(i int) float64 {
		return ringArea(d.h.Axes[0], d.h.Unflatten(i)[0]) * in.Z.Delta() * in.Time.Delta()
	}
	return d, nil
}

func newVolumeOfXAndYAndZ(in Input, tt TallyType, score func(*photon.History, int) float64) (Detector, error) {
	d, err := newVolume(in, tt, score, Axis{Name: "X", Range: in.X}, Axis{Name: "Y", Range: in.Y}, Axis{Name: "Z", Range: in.Z})
	if err != nil {
		return nil, err
	}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(dp.Position.X, in.X), WhichBin(dp.Position.Y, in.Y), WhichBin(dp.Position.Z, in.Z))
	}
	vol := math.Abs(in.X.Delta() * in.Y.Delta() * in.Z.Delta())
	d.measure = func(int) float64 { return vol }
	return d, nil
}

func init() {
	Register(ATotal, Registration{GenericVolumeBoundary, newVolumeTotal})
	Register(AOfRhoAndZ, Registration{GenericVolumeBoundary, func(in Input) (Detector, error) {
		return newVolumeOfRhoAndZ(in, AOfRhoAndZ, absorbed)
	}})
	Register(FluenceOfRhoAndZ, Registration{GenericVolumeBoundary, func(in Input) (Detector, error) {
		return newVolumeOfRhoAndZ(in, FluenceOfRhoAndZ, fluence)
	}})
	Register(FluenceOfRhoAndZAndTime, Registration{GenericVolumeBoundary, newFluenceOfRhoAndZAndTime})
	Register(AOfXAndYAndZ, Registration{GenericVolumeBoundary, func(in Input) (Detector, error) {
		return newVolumeOfXAndYAndZ(in, AOfXAndYAndZ, absorbed)
	}})
	Register(FluenceOfXAndYAndZ, Registration{GenericVolumeBoundary, func(in Input) (Detector, error) {
		return newVolumeOfXAndYAndZ(in, FluenceOfXAndYAndZ, fluence)
	}})
}
