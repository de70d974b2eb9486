package detector

import (
	"math"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

const (
	PMCROfRho        TallyType = "pMCROfRho"
	PMCROfRhoAndTime TallyType = "pMCROfRhoAndTime"
	PMCROfFx         TallyType = "pMCROfFx"
	PMCTOfRho        TallyType = "pMCTOfRho"
	DMCdROfRhodMua   TallyType = "dMCdROfRhodMua"
	DMCdROfRhodMus   TallyType = "dMCdROfRhodMus"
)

// Perturbation re-weights recorded photons for new optical properties
// of a subset of regions.
type Perturbation struct {
	Reference []optics.OpticalProperties
	Perturbed []optics.OpticalProperties
	Regions   []int
}

// NewPerturbation checks that perturbed covers every region of reference
// and that the region indices exist.
func NewPerturbation(reference, perturbed []optics.OpticalProperties, regions []int) (Perturbation, error) {
	if len(perturbed) != len(reference) {
		return Perturbation{}, errs.Configuration("%d perturbed optical properties for %d regions", len(perturbed), len(reference))
	}
	for _, r := range regions {
		if r < 0 || r >= len(reference) {
			return Perturbation{}, errs.Configuration("perturbed region %d out of range", r)
		}
	}
	return Perturbation{Reference: reference, Perturbed: perturbed, Regions: regions}, nil
}

// Factor is the product over perturbed regions of
// (musP/musR)^n * exp(-(mutP-mutR)*l).
func (p Perturbation) Factor(info photon.CollisionInfo) float64 {
	f := 1.
	for _, r := range p.Regions {
		ref, per := p.Reference[r], p.Perturbed[r]
		if n := info[r].NumberOfCollisions; n > 0 {
			f *= math.Pow(per.Mus()/ref.Mus(), float64(n))
		}
		f *= math.Exp(-(per.Mut() - ref.Mut()) * info[r].PathLength)
	}
	return f
}

// DFactorDMua is the derivative of Factor with respect to the absorption
// coefficient of the perturbed regions.
func (p Perturbation) DFactorDMua(info photon.CollisionInfo) float64 {
	var l float64
	for _, r := range p.Regions {
		l += info[r].PathLength
	}
	return -l * p.Factor(info)
}

// DFactorDMus is the derivative of Factor with respect to the scattering
// coefficient of the perturbed regions. It is 0 wherever Factor is.
func (p Perturbation) DFactorDMus(info photon.CollisionInfo) float64 {
	f := p.Factor(info)
	if f == 0 {
		return 0
	}
	var s float64
	for _, r := range p.Regions {
		if n := info[r].NumberOfCollisions; n > 0 {
			s += float64(n) / p.Perturbed[r].Mus()
		}
		s -= info[r].PathLength
	}
	return s * f
}

// perturbed scores recorded data points weighted by a function of the perturbation.
type perturbed struct {
	base
	in      Input
	pert    Perturbation
	weight  func(p Perturbation, info photon.CollisionInfo) float64
	bin     func(dp photon.DataPoint) int
	measure func(flat int) float64
}

func buildPerturbation(in Input, t tissue.Tissue) (Perturbation, error) {
	ops := make([]optics.OpticalProperties, len(in.PerturbedOps))
	for i, oi := range in.PerturbedOps {
		op, err := oi.Build()
		if err != nil {
			return Perturbation{}, err
		}
		ops[i] = op
	}
	return NewPerturbation(tissue.OpticalProperties(t), ops, in.PerturbedRegionsIndices)
}

func (d *perturbed) Initialize(t tissue.Tissue, r rng.Source) (err error) {
	d.pert, err = buildPerturbation(d.in, t)
	return err
}

func (d *perturbed) TallyPerturbed(dp photon.DataPoint, info photon.CollisionInfo) {
	d.h.add(d.bin(dp), dp.Weight*d.weight(d.pert, info))
}

func (d *perturbed) Normalize(n int64) {
	d.h.normalize(n, d.measure)
}

// Perturbation is the re-weighting the detector applies.
func (d *perturbed) Perturbation() Perturbation { return d.pert }

func factor(p Perturbation, info photon.CollisionInfo) float64 { return p.Factor(info) }

func checkPerturbationInput(in Input) error {
	if len(in.PerturbedOps) == 0 {
		return errs.Configuration("detector %s: no perturbed optical properties", in.DetectorName())
	}
	return nil
}

func newPerturbedOfRho(in Input, tt TallyType, weight func(Perturbation, photon.CollisionInfo) float64) (Detector, error) {
	if err := checkPerturbationInput(in); err != nil {
		return nil, err
	}
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho})
	if err != nil {
		return nil, err
	}
	d := &perturbed{
		base:   base{name: in.DetectorName(), tallyType: tt, h: newHistogram(false, in.TallySecondMoment, ax...)},
		in:     in,
		weight: weight,
		bin:    func(dp photon.DataPoint) int { return WhichBin(rho(dp), in.Rho) },
	}
	d.measure = func(i int) float64 { return ringArea(ax[0], i) }
	return d, nil
}

func newPMCROfRhoAndTime(in Input) (Detector, error) {
	if err := checkPerturbationInput(in); err != nil {
		return nil, err
	}
	ax, err := checkAxes(Axis{Name: "Rho", Range: in.Rho}, Axis{Name: "Time", Range: in.Time})
	if err != nil {
		return nil, err
	}
	d := &perturbed{
		base:   base{name: in.DetectorName(), tallyType: PMCROfRhoAndTime, h: newHistogram(false, in.TallySecondMoment, ax...)},
		in:     in,
		weight: factor,
	}
	d.bin = func(dp photon.DataPoint) int {
		return d.h.Index(WhichBin(rho(dp), in.Rho), WhichBin(dp.TotalTime, in.Time))
	}
	d.measure = func(i int) float64 {
		return ringArea(ax[0], d.h.Unflatten(i)[0]) * in.Time.Delta()
	}
	return d, nil
}

// perturbedFx is the perturbation form of ROfFx.
type perturbedFx struct {
	*frequency
	in   Input
	pert Perturbation
}

func (d *perturbedFx) Initialize(t tissue.Tissue, r rng.Source) (err error) {
	d.pert, err = buildPerturbation(d.in, t)
	return err
}

func (d *perturbedFx) TallyPerturbed(dp photon.DataPoint, info photon.CollisionInfo) {
	d.tallyWeighted(dp, dp.Weight*d.pert.Factor(info))
}

func newPMCROfFx(in Input) (Detector, error) {
	if err := checkPerturbationInput(in); err != nil {
		return nil, err
	}
	f, err := newROfFx(in, PMCROfFx)
	if err != nil {
		return nil, err
	}
	return &perturbedFx{frequency: f, in: in}, nil
}

func init() {
	Register(PMCROfRho, Registration{PMCDiffuseReflectance, func(in Input) (Detector, error) {
		return newPerturbedOfRho(in, PMCROfRho, factor)
	}})
	Register(PMCTOfRho, Registration{PMCDiffuseTransmittance, func(in Input) (Detector, error) {
		return newPerturbedOfRho(in, PMCTOfRho, factor)
	}})
	Register(DMCdROfRhodMua, Registration{PMCDiffuseReflectance, func(in Input) (Detector, error) {
		return newPerturbedOfRho(in, DMCdROfRhodMua, Perturbation.DFactorDMua)
	}})
	Register(DMCdROfRhodMus, Registration{PMCDiffuseReflectance, func(in Input) (Detector, error) {
		return newPerturbedOfRho(in, DMCdROfRhodMus, Perturbation.DFactorDMus)
	}})
	Register(PMCROfRhoAndTime, Registration{PMCDiffuseReflectance, newPMCROfRhoAndTime})
	Register(PMCROfFx, Registration{PMCDiffuseReflectance, newPMCROfFx})
}
