package config

import (
	"github.com/VirtualPhotonics/VTS-sub010/internal/boundary"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Validate runs every check that can fail before the first photon.
// A FluorescenceEmission source is checked when the simulation
// builds it, as it reads the output of an earlier run.
func (in SimulationInput) Validate() error {
	if in.N <= 0 {
		return errs.Configuration("number of photons N must be positive, got %d", in.N)
	}
	if err := in.Options.Validate(); err != nil {
		return err
	}
	t, err := tissue.New(in.Tissue, in.Options.PhaseFunctionType)
	if err != nil {
		return err
	}
	if in.Source.Kind == source.FluorescenceEmission {
		if in.Source.InputFolder == "" {
			return errs.Configuration("fluorescence source needs the InputFolder of an excitation run")
		}
	} else if _, err := source.New(in.Source); err != nil {
		return err
	}
	r, err := rng.New(in.Options.RandomNumberGeneratorType, in.Options.Seed)
	if err != nil {
		return err
	}
	if _, err := boundary.NewController(in.Detectors, t, r, false); err != nil {
		return err
	}
	return nil
}

func (o Options) Validate() error {
	if _, err := rng.New(o.RandomNumberGeneratorType, 0); err != nil {
		return err
	}
	if err := o.AbsorptionWeightingType.Validate(); err != nil {
		return err
	}
	if _, err := phase.New(o.PhaseFunctionType, 0, phase.Params{}); err != nil {
		return err
	}
	if err := database.ValidateKinds(o.Databases); err != nil {
		return err
	}
	for _, k := range o.Databases {
		if k.IsPerturbation() && !o.AbsorptionWeightingType.SupportsPerturbation() {
			return errs.Configuration("database %s needs Discrete or Continuous absorption weighting, got %s", k, o.AbsorptionWeightingType)
		}
	}
	if o.AbsorptionWeightingType.UsesRoulette() {
		if o.RussianRouletteWeightThreshold < 0 || o.RussianRouletteWeightThreshold >= 1 {
			return errs.Configuration("roulette weight threshold %v outside [0,1)", o.RussianRouletteWeightThreshold)
		}
		if o.RussianRouletteChanceFactor < 1 {
			return errs.Configuration("roulette chance factor %v below 1", o.RussianRouletteChanceFactor)
		}
	}
	if o.MaxPathLength < 0 || o.MaxCollisions < 0 {
		return errs.Configuration("path length and collision limits must not be negative")
	}
	if o.Workers < 1 {
		return errs.Configuration("workers must be at least 1, got %d", o.Workers)
	}
	return nil
}
