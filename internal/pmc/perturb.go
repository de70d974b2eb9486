package pmc

import (
	"slices"
	"strconv"
	"strings"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// RegionOps are new optical properties for one tissue region.
type RegionOps struct {
	Region int
	Ops    optics.Input
}

// ParseRegionOps reads "region:mua:musp:g:n".
func ParseRegionOps(s string) (RegionOps, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 5 {
		return RegionOps{}, errs.Configuration("perturbation %q: expected region:mua:musp:g:n", s)
	}
	region, err := strconv.Atoi(fields[0])
	if err != nil {
		return RegionOps{}, errs.Configuration("perturbation %q: region: %v", s, err)
	}
	var v [4]float64
	for i, f := range fields[1:] {
		if v[i], err = strconv.ParseFloat(f, 64); err != nil {
			return RegionOps{}, errs.Configuration("perturbation %q: %v", s, err)
		}
	}
	musp := v[1]
	return RegionOps{Region: region, Ops: optics.Input{Mua: v[0], Musp: &musp, G: v[2], N: v[3]}}, nil
}

// Perturbed returns the optical properties of every region of the
// reference tissue with changes applied, and the changed regions in order.
func (pp *PostProcessor) Perturbed(changes []RegionOps) ([]optics.Input, []int, error) {
	ref := tissue.OpticalProperties(pp.tissue)
	ops := make([]optics.Input, len(ref))
	for i, op := range ref {
		ops[i] = optics.InputFrom(op)
	}
	var regions []int
	for _, c := range changes {
		if c.Region < 0 || c.Region >= len(ref) {
			return nil, nil, errs.Configuration("perturbed region %d out of range, the tissue has %d regions", c.Region, len(ref))
		}
		if _, err := c.Ops.Build(); err != nil {
			return nil, nil, err
		}
		ops[c.Region] = c.Ops
		if !slices.Contains(regions, c.Region) {
			regions = append(regions, c.Region)
		}
	}
	slices.Sort(regions)
	return ops, regions, nil
}
