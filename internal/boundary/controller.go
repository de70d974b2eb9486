package boundary

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

type matcher interface {
	Matches(dp photon.DataPoint) bool
}

// Controller owns the virtual boundaries of one simulation
// and routes photon events to them.
type Controller struct {
	boundaries []VirtualBoundary
	internal   []VirtualBoundary
	byType     map[detector.VirtualBoundaryType]VirtualBoundary
	detectors  []detector.Detector
}

type radianceKey struct {
	z float64
}

// NewController builds the detectors of inputs and attaches each one to
// its virtual boundary. Perturbation detectors are accepted only when
// allowPerturbation is set.
func NewController(inputs []detector.Input, t tissue.Tissue, r rng.Source, allowPerturbation bool) (*Controller, error) {
	c := &Controller{byType: make(map[detector.VirtualBoundaryType]VirtualBoundary)}
	radiance := make(map[radianceKey]VirtualBoundary)
	names := make(map[string]bool)
	for _, in := range inputs {
		if names[in.DetectorName()] {
			return nil, errs.Configuration("duplicate detector name %q", in.DetectorName())
		}
		names[in.DetectorName()] = true

		typ, err := detector.BoundaryOf(in.TallyType)
		if err != nil {
			return nil, err
		}
		if detector.IsPerturbation(in.TallyType) && !allowPerturbation {
			return nil, errs.Configuration("detector %s replays a photon database and runs in post-processing only", in.DetectorName())
		}
		d, err := detector.New(in)
		if err != nil {
			return nil, err
		}
		if err := d.Initialize(t, r); err != nil {
			return nil, err
		}

		var vb VirtualBoundary
		if typ == detector.SurfaceRadiance {
			if in.ZDepth <= t.SurfaceZ() || in.ZDepth >= t.BottomZ() {
				return nil, errs.Configuration("detector %s: depth %v is outside the tissue", in.DetectorName(), in.ZDepth)
			}
			key := radianceKey{in.ZDepth}
			if vb = radiance[key]; vb == nil {
				vb = New(typ, t, in.ZDepth)
				radiance[key] = vb
				c.internal = append(c.internal, vb)
				c.boundaries = append(c.boundaries, vb)
			}
		} else if vb = c.byType[typ]; vb == nil {
			vb = New(typ, t, 0)
			c.byType[typ] = vb
			c.boundaries = append(c.boundaries, vb)
		}
		vb.Controller().Add(d)
		c.detectors = append(c.detectors, d)
		log.Debug().Str("detector", d.Name()).Str("boundary", string(typ)).Msg("detector attached")
	}
	return c, nil
}

func (c *Controller) Boundaries() []VirtualBoundary { return c.boundaries }

func (c *Controller) Detectors() []detector.Detector { return c.detectors }

// Boundary is the boundary of type typ, nil when no detector uses it.
func (c *Controller) Boundary(typ detector.VirtualBoundaryType) VirtualBoundary {
	return c.byType[typ]
}

// NeedsHistory reports whether photons have to record their path.
func (c *Controller) NeedsHistory() bool {
	vb := c.byType[detector.GenericVolumeBoundary]
	return vb != nil && vb.Controller().NeedsHistory()
}

// Closest is the nearest internal boundary along the direction of dp.
func (c *Controller) Closest(dp photon.DataPoint) (VirtualBoundary, float64) {
	var best VirtualBoundary
	dist := math.Inf(1)
	for _, vb := range c.internal {
		if d := vb.DistanceTo(dp); d < dist {
			best, dist = vb, d
		}
	}
	return best, dist
}

// TallyCrossing tallies dp on an internal boundary the photon just reached.
func (c *Controller) TallyCrossing(vb VirtualBoundary, dp photon.DataPoint) {
	dp.StateFlag = dp.StateFlag.Add(vb.StateFlag())
	vb.Controller().TallySingle(dp)
}

// TallySpecular tallies the specularly reflected part of a launched photon.
func (c *Controller) TallySpecular(dp photon.DataPoint) {
	if vb := c.byType[detector.SpecularReflectance]; vb != nil {
		dp.StateFlag = dp.StateFlag.Add(vb.StateFlag())
		vb.Controller().TallySingle(dp)
	}
}

// TallyTerminal hands a dead photon to the terminal boundaries its exit
// flags select, then replays its history into the volume detectors.
func (c *Controller) TallyTerminal(p *photon.Photon) {
	for _, vb := range c.boundaries {
		m, ok := vb.(matcher)
		if !ok || !vb.Terminal() || !m.Matches(p.DP) {
			continue
		}
		dp := p.DP
		dp.StateFlag = dp.StateFlag.Add(vb.StateFlag())
		vb.Controller().TallySingle(dp)
	}
	if vb := c.byType[detector.GenericVolumeBoundary]; vb != nil && p.Options().TrackHistory {
		vb.Controller().TallyHistory(&p.History)
	}
}

// Finish records the photon count on every detector
// and normalises unless raw is set.
func (c *Controller) Finish(photons int64, raw bool) {
	for _, vb := range c.boundaries {
		vb.Controller().Finish(photons, raw)
	}
}
