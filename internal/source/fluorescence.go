package source

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Sampling selects how emission voxels are picked.
type Sampling string

const (
	// CDF draws voxels with probability proportional to their absorption.
	CDF Sampling = "CDF"
	// Uniform visits the absorbing voxels in turn, weighting each photon
	// by the absorption of its voxel over that of the most absorbing one.
	Uniform Sampling = "Uniform"
)

// fluorescence emits isotropically from the voxels of an AOfXAndYAndZ
// detector written by an excitation run.
type fluorescence struct {
	axes     [3]detector.Axis
	h        *detector.Histogram
	sampling Sampling

	cdf []float64 // CDF, normalised to 1

	voxels  []int     // Uniform, absorbing voxels in flat order
	weights []float64 // Uniform, photon weight of each voxel
	next    int
}

func newFluorescence(in Input) (*fluorescence, error) {
	if in.DetectorName == "" {
		in.DetectorName = string(detector.AOfXAndYAndZ)
	}
	md, h, err := detector.Read(in.InputFolder, in.DetectorName)
	if err != nil {
		return nil, err
	}
	if md.TallyType != detector.AOfXAndYAndZ || len(h.Axes) != 3 || h.Complex {
		return nil, errs.Configuration("fluorescence source needs an AOfXAndYAndZ detector, %s is %s", in.DetectorName, md.TallyType)
	}
	return newFluorescenceFrom(h, in.Sampling)
}

func newFluorescenceFrom(h *detector.Histogram, sampling Sampling) (*fluorescence, error) {
	s := &fluorescence{h: h, sampling: sampling}
	copy(s.axes[:], h.Axes)
	total := floats.Sum(h.Mean)
	if !(total > 0) {
		return nil, errs.Configuration("fluorescence source: no absorbed weight to emit from")
	}
	switch sampling {
	case CDF, "":
		s.sampling = CDF
		s.cdf = make([]float64, len(h.Mean))
		floats.CumSum(s.cdf, h.Mean)
		floats.Scale(1/total, s.cdf)
	case Uniform:
		for i, a := range h.Mean {
			if a > 0 {
				s.voxels = append(s.voxels, i)
			}
		}
		peak := floats.Max(h.Mean)
		s.weights = make([]float64, len(s.voxels))
		for j, i := range s.voxels {
			s.weights[j] = h.Mean[i] / peak
		}
	default:
		return nil, errs.Configuration("unknown fluorescence sampling %q", sampling)
	}
	return s, nil
}

func (s *fluorescence) NextPhoton(t tissue.Tissue, r rng.Source) (photon.DataPoint, int, error) {
	var flat int
	weight := 1.
	if s.sampling == CDF {
		u := r.Float64()
		flat = sort.Search(len(s.cdf), func(i int) bool { return s.cdf[i] > u })
		flat = min(flat, len(s.cdf)-1)
	} else {
		flat = s.voxels[s.next]
		weight = s.weights[s.next]
		s.next = (s.next + 1) % len(s.voxels)
	}
	idx := s.h.Unflatten(flat)
	var lo, hi [3]float64
	for a, ax := range s.axes {
		d := ax.Range.Delta()
		lo[a] = ax.Range.Start + float64(idx[a])*d
		hi[a] = lo[a] + d
	}
	pos := uniformInBox(r, r3.Vec{X: lo[0], Y: lo[1], Z: lo[2]}, r3.Vec{X: hi[0], Y: hi[1], Z: hi[2]})
	dp, region, err := launch(t, pos, isotropic(r))
	dp.Weight = weight
	return dp, region, err
}
