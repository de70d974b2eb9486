package optics

import (
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
)

// DoubleRange is an evenly spaced set of Count points from Start to Stop.
// Used as a detector axis it defines Count-1 bins.
type DoubleRange struct {
	Start float64 `toml:"Start" yaml:"start"`
	Stop  float64 `toml:"Stop" yaml:"stop"`
	Count int     `toml:"Count" yaml:"count"`
}

func NewDoubleRange(start, stop float64, count int) DoubleRange {
	return DoubleRange{Start: start, Stop: stop, Count: count}
}

// Delta is the spacing between two consecutive points.
func (r DoubleRange) Delta() float64 {
	if r.Count < 2 {
		return 0
	}
	return (r.Stop - r.Start) / float64(r.Count-1)
}

func (r DoubleRange) BinCount() int {
	return max(r.Count-1, 0)
}

func (r DoubleRange) BinCenter(i int) float64 {
	return r.Start + (float64(i)+0.5)*r.Delta()
}

// Points lists every point of the range.
func (r DoubleRange) Points() []float64 {
	p := make([]float64, r.Count)
	for i := range p {
		p[i] = r.Start + float64(i)*r.Delta()
	}
	return p
}

// Validate rejects ranges that define no bin.
func (r DoubleRange) Validate(axis string) error {
	if r.BinCount() < 1 {
		return errs.Configuration("axis %s: count %d defines no bin", axis, r.Count)
	}
	if !(r.Stop > r.Start) || math.IsInf(r.Start, 0) || math.IsInf(r.Stop, 0) {
		return errs.Configuration("axis %s: invalid range [%v, %v]", axis, r.Start, r.Stop)
	}
	return nil
}
