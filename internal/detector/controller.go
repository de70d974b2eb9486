package detector

import (
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Controller fans photon events out to the detectors of one virtual boundary.
// It is the only place detectors accumulate, and like them it is not
// safe for concurrent use.
type Controller struct {
	detectors    []Detector
	surface      []SurfaceDetector
	history      []HistoryDetector
	perturbation []PerturbationDetector
}

func NewController(detectors ...Detector) *Controller {
	c := &Controller{}
	for _, d := range detectors {
		c.Add(d)
	}
	return c
}

func (c *Controller) Add(d Detector) {
	c.detectors = append(c.detectors, d)
	switch v := d.(type) {
	case PerturbationDetector:
		c.perturbation = append(c.perturbation, v)
	case HistoryDetector:
		c.history = append(c.history, v)
	case SurfaceDetector:
		c.surface = append(c.surface, v)
	}
}

func (c *Controller) Detectors() []Detector { return c.detectors }

func (c *Controller) Len() int { return len(c.detectors) }

// NeedsHistory reports whether any detector replays photon histories.
func (c *Controller) NeedsHistory() bool { return len(c.history) > 0 }

func (c *Controller) Initialize(t tissue.Tissue, r rng.Source) error {
	for _, d := range c.detectors {
		if err := d.Initialize(t, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) TallySingle(dp photon.DataPoint) {
	for _, d := range c.surface {
		d.TallySingle(dp)
	}
}

func (c *Controller) TallyHistory(h *photon.History) {
	for _, d := range c.history {
		d.TallyHistory(h)
	}
}

func (c *Controller) TallyPerturbed(dp photon.DataPoint, info photon.CollisionInfo) {
	for _, d := range c.perturbation {
		d.TallyPerturbed(dp, info)
	}
}

// Finish records the photon count and normalises unless raw is set.
func (c *Controller) Finish(photons int64, raw bool) {
	for _, d := range c.detectors {
		d.Tally().Count += photons
		if !raw && photons > 0 {
			d.Normalize(photons)
		}
	}
}
