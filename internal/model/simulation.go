// Package model runs photon transport simulations,
// sequentially or split over goroutines.
package model

import (
	"errors"
	"io"
	"math"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/VirtualPhotonics/VTS-sub010/internal/boundary"
	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Simulation transports the photons of one input on the calling goroutine.
// Only Cancel may be called from another goroutine.
type Simulation struct {
	input  config.SimulationInput
	tissue tissue.Tissue
	ops    []optics.OpticalProperties
	source source.Source
	rng    rng.Source
	vbs    *boundary.Controller
	opts   photon.Options

	photons     int64
	databaseDir string
	raw         bool

	stats     *Statistics
	cancelled atomic.Bool
}

// New builds every part of a simulation.
// All configuration errors surface here.
func New(in config.SimulationInput) (*Simulation, error) {
	return newSimulation(in, in.Options.Seed, in.N, in.OutputName)
}

func newSimulation(in config.SimulationInput, seed, photons int64, databaseDir string) (*Simulation, error) {
	if in.N <= 0 {
		return nil, errs.Configuration("number of photons N must be positive, got %d", in.N)
	}
	if err := in.Options.Validate(); err != nil {
		return nil, err
	}
	s := &Simulation{input: in, photons: photons, databaseDir: databaseDir}
	var err error
	if s.tissue, err = tissue.New(in.Tissue, in.Options.PhaseFunctionType); err != nil {
		return nil, err
	}
	s.ops = tissue.OpticalProperties(s.tissue)
	if s.source, err = source.New(in.Source); err != nil {
		return nil, err
	}
	if s.rng, err = rng.New(in.Options.RandomNumberGeneratorType, seed); err != nil {
		return nil, err
	}
	if s.vbs, err = boundary.NewController(in.Detectors, s.tissue, s.rng, false); err != nil {
		return nil, err
	}
	s.opts = in.Options.PhotonOptions(s.vbs.NeedsHistory())
	if in.Options.TrackStatistics {
		s.stats = &Statistics{}
	}
	return s, nil
}

// Cancel stops the run before the next photon.
func (s *Simulation) Cancel() { s.cancelled.Store(true) }

// Run transports the photons and returns the normalised detectors.
// A cancelled run returns the photons launched so far.
func (s *Simulation) Run() (*Output, error) {
	var dbs *database.Controller
	if len(s.input.Options.Databases) > 0 {
		var err error
		if dbs, err = database.NewController(s.databaseDir, s.input.Options.Databases, len(s.ops)); err != nil {
			return nil, err
		}
	}
	log.Debug().Str("simulation", s.input.OutputName).Int64("photons", s.photons).Msg("run started")

	var launched int64
	for launched < s.photons && !s.cancelled.Load() {
		launched++
		if err := s.transport(dbs); err != nil {
			if dbs != nil {
				err = closeAfter(err, dbs)
			}
			return nil, err
		}
	}
	if dbs != nil {
		if err := dbs.Close(); err != nil {
			return nil, err
		}
	}
	s.vbs.Finish(launched, s.raw)
	log.Debug().Str("simulation", s.input.OutputName).Int64("launched", launched).Bool("cancelled", s.cancelled.Load()).Msg("run finished")
	return NewOutput(s.input, launched, s.vbs.Detectors(), s.stats), nil
}

// closeAfter closes c and joins its error to err.
func closeAfter(err error, c io.Closer) error {
	return errors.Join(err, c.Close())
}

// transport follows one photon from the source to its death.
func (s *Simulation) transport(dbs *database.Controller) error {
	dp, region, err := s.source.NextPhoton(s.tissue, s.rng)
	if err != nil {
		return err
	}
	if launched, reflected, ok := source.Specular(dp, region, s.tissue); ok {
		dp = launched
		s.vbs.TallySpecular(reflected)
		if s.stats != nil {
			s.stats.SpecularWeight += reflected.Weight
		}
		if dbs != nil {
			if err := dbs.WriteSpecular(reflected); err != nil {
				return err
			}
		}
	}

	p := photon.New(dp, region, s.tissue, s.ops, s.rng, s.opts)
	for p.Alive() {
		p.SetStepSize()
		region := p.CurrentRegionIndex
		dTissue := s.tissue.DistanceToBoundary(p.DP.Position, p.DP.Direction, region)
		vb, dVB := s.vbs.Closest(p.DP)
		switch {
		case math.IsInf(p.S, 1) && math.IsInf(dTissue, 1) && math.IsInf(dVB, 1):
			p.Leave()
		case vb != nil && dVB <= dTissue && dVB < p.S:
			p.Move(dVB)
			p.Record(region, photon.None)
			s.vbs.TallyCrossing(vb, p.DP)
		case dTissue < p.S:
			p.Move(dTissue)
			p.CrossRegionOrReflect()
			p.Record(region, photon.None)
		default:
			p.Move(p.S)
			p.Absorb()
			if p.Alive() {
				p.Scatter()
			}
			p.TestRoulette()
			p.Record(region, photon.PseudoCollision)
		}
		p.TestDeath()
	}

	s.vbs.TallyTerminal(p)
	if s.stats != nil {
		s.stats.add(p)
	}
	if dbs != nil {
		return dbs.WriteTerminal(p.DP, p.CollisionInfo)
	}
	return nil
}
