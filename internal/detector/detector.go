// Package detector accumulates photon contributions into histograms
// and normalises them into physical quantities.
package detector

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

// TallyType names a detector kind.
type TallyType string

// VirtualBoundaryType names the measurement surface a detector listens on.
type VirtualBoundaryType string

const (
	DiffuseReflectance      VirtualBoundaryType = "DiffuseReflectance"
	DiffuseTransmittance    VirtualBoundaryType = "DiffuseTransmittance"
	SpecularReflectance     VirtualBoundaryType = "SpecularReflectance"
	SurfaceRadiance         VirtualBoundaryType = "SurfaceRadiance"
	GenericVolumeBoundary   VirtualBoundaryType = "GenericVolumeBoundary"
	BoundingVolume          VirtualBoundaryType = "BoundingVolume"
	PMCDiffuseReflectance   VirtualBoundaryType = "pMCDiffuseReflectance"
	PMCDiffuseTransmittance VirtualBoundaryType = "pMCDiffuseTransmittance"
)

// Detector is the common part of every tally.
// A detector is confined to the goroutine of its simulation.
type Detector interface {
	Name() string
	TallyType() TallyType
	Initialize(t tissue.Tissue, r rng.Source) error

	// TallyCount is the number of photons the histogram accounts for.
	TallyCount() int64

	// Normalize turns the raw sums into physical units for n photons.
	// It must be called once.
	Normalize(n int64)

	// Merge adds the raw sums of other, a detector of the same input.
	Merge(other Detector) error

	Tally() *Histogram
}

// SurfaceDetector scores the data point of a photon crossing its boundary.
type SurfaceDetector interface {
	Detector
	TallySingle(dp photon.DataPoint)
}

// HistoryDetector scores the whole path of a photon.
type HistoryDetector interface {
	Detector
	TallyHistory(h *photon.History)
}

// PerturbationDetector scores a recorded data point re-weighted
// with its collision info.
type PerturbationDetector interface {
	Detector
	TallyPerturbed(dp photon.DataPoint, info photon.CollisionInfo)
}

// Axis is one histogram dimension.
// A binned axis has Range.Count-1 bins; a point axis has Range.Count values.
type Axis struct {
	Name   string             `toml:"Name"`
	Range  optics.DoubleRange `toml:"Range"`
	Points bool               `toml:"Points"`
}

func (a Axis) Len() int {
	if a.Points {
		return a.Range.Count
	}
	return a.Range.BinCount()
}

// Value is the bin center, or the point value of a point axis.
func (a Axis) Value(i int) float64 {
	if a.Points {
		return a.Range.Start + float64(i)*a.Range.Delta()
	}
	return a.Range.BinCenter(i)
}

// Histogram holds the row-major mean and second moment arrays.
// Before Normalize they hold raw sums.
type Histogram struct {
	Axes                []Axis
	Dims                []int
	Complex             bool
	TallySecondMoment   bool
	Mean                []float64
	SecondMoment        []float64
	ComplexMean         []complex128
	ComplexSecondMoment []complex128
	Count               int64
	Normalized          bool
}

func newHistogram(complexValued, secondMoment bool, axes ...Axis) Histogram {
	h := Histogram{Axes: axes, Complex: complexValued, TallySecondMoment: secondMoment}
	for _, a := range axes {
		h.Dims = append(h.Dims, a.Len())
	}
	size := utils.Product(h.Dims)
	if complexValued {
		h.ComplexMean = make([]complex128, size)
		if secondMoment {
			h.ComplexSecondMoment = make([]complex128, size)
		}
	} else {
		h.Mean = make([]float64, size)
		if secondMoment {
			h.SecondMoment = make([]float64, size)
		}
	}
	return h
}

func (h *Histogram) Size() int {
	if h.Complex {
		return len(h.ComplexMean)
	}
	return len(h.Mean)
}

// Index flattens a multi-index in row-major order.
func (h *Histogram) Index(idx ...int) int {
	flat := 0
	for i, n := range h.Dims {
		flat = flat*n + idx[i]
	}
	return flat
}

// Unflatten is the inverse of Index.
func (h *Histogram) Unflatten(flat int) []int {
	idx := make([]int, len(h.Dims))
	for i := len(h.Dims) - 1; i >= 0; i-- {
		idx[i] = flat % h.Dims[i]
		flat /= h.Dims[i]
	}
	return idx
}

func (h *Histogram) add(i int, w float64) {
	h.Mean[i] += w
	if h.TallySecondMoment {
		h.SecondMoment[i] += w * w
	}
}

func (h *Histogram) addComplex(i int, w complex128) {
	h.ComplexMean[i] += w
	if h.TallySecondMoment {
		h.ComplexSecondMoment[i] += complex(real(w)*real(w), imag(w)*imag(w))
	}
}

// normalize divides every bin by n times its measure.
func (h *Histogram) normalize(n int64, measure func(flat int) float64) {
	for i := range h.Size() {
		meas := 1.
		if measure != nil {
			meas = measure(i)
		}
		m := float64(n) * meas
		mm := m * meas
		if h.Complex {
			h.ComplexMean[i] /= complex(m, 0)
			if h.TallySecondMoment {
				h.ComplexSecondMoment[i] /= complex(mm, 0)
			}
			continue
		}
		h.Mean[i] /= m
		if h.TallySecondMoment {
			h.SecondMoment[i] /= mm
		}
	}
	h.Normalized = true
}

func (h *Histogram) merge(o *Histogram) error {
	if len(h.Dims) != len(o.Dims) || h.Complex != o.Complex || h.TallySecondMoment != o.TallySecondMoment {
		return errs.Configuration("merging histograms of different shapes")
	}
	for i := range h.Dims {
		if h.Dims[i] != o.Dims[i] {
			return errs.Configuration("merging histograms of different shapes")
		}
	}
	if h.Normalized || o.Normalized {
		return errs.Configuration("merging normalized histograms")
	}
	if h.Complex {
		cmplxs.Add(h.ComplexMean, o.ComplexMean)
		if h.TallySecondMoment {
			cmplxs.Add(h.ComplexSecondMoment, o.ComplexSecondMoment)
		}
	} else {
		floats.Add(h.Mean, o.Mean)
		if h.TallySecondMoment {
			floats.Add(h.SecondMoment, o.SecondMoment)
		}
	}
	h.Count += o.Count
	return nil
}

// StandardError of the normalized mean of bin i,
// sqrt((SecondMoment - Mean^2)/N). It is 0 without a second moment.
func (h *Histogram) StandardError(i int) float64 {
	if !h.TallySecondMoment || h.Count == 0 {
		return 0
	}
	if h.Complex {
		m, s := h.ComplexMean[i], h.ComplexSecondMoment[i]
		vr := max(real(s)-real(m)*real(m), 0)
		vi := max(imag(s)-imag(m)*imag(m), 0)
		return math.Sqrt((vr + vi) / float64(h.Count))
	}
	v := h.SecondMoment[i] - h.Mean[i]*h.Mean[i]
	return math.Sqrt(max(v, 0) / float64(h.Count))
}

// Total sums the mean over every bin, the magnitude for complex tallies.
func (h *Histogram) Total() float64 {
	if h.Complex {
		var s float64
		for _, c := range h.ComplexMean {
			s += cmplx.Abs(c)
		}
		return s
	}
	return floats.Sum(h.Mean)
}

// WhichBin maps value to a bin of r.
// Values outside the range are folded into the first or last bin.
func WhichBin(value float64, r optics.DoubleRange) int {
	bins := r.BinCount()
	if bins < 1 {
		return 0
	}
	i := math.Floor((value - r.Start) / r.Delta())
	if math.IsNaN(i) || i < 0 {
		return 0
	}
	if i >= float64(bins) {
		return bins - 1
	}
	return int(i)
}

type base struct {
	name      string
	tallyType TallyType
	h         Histogram
}

func (b *base) Name() string                                   { return b.name }
func (b *base) TallyType() TallyType                           { return b.tallyType }
func (b *base) Initialize(t tissue.Tissue, r rng.Source) error { return nil }
func (b *base) TallyCount() int64                              { return b.h.Count }
func (b *base) Tally() *Histogram                              { return &b.h }

func (b *base) Merge(other Detector) error {
	if other.TallyType() != b.tallyType || other.Name() != b.name {
		return errs.Configuration("merging detector %s into %s", other.Name(), b.name)
	}
	return b.h.merge(other.Tally())
}
