// Package pmc replays the photon databases of a finished run into new
// detectors, re-weighting recorded photons for perturbed optical properties.
package pmc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/VirtualPhotonics/VTS-sub010/internal/boundary"
	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/model"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// PostProcessor holds the reference run a database was recorded with.
// It is read-only once built and may serve several Run calls at once.
type PostProcessor struct {
	reference config.SimulationInput
	tissue    tissue.Tissue
}

// NewPostProcessor checks that the reference run can be re-weighted.
// Analog runs cannot: their absorption was decided during the walk.
func NewPostProcessor(reference config.SimulationInput) (*PostProcessor, error) {
	awt := reference.Options.AbsorptionWeightingType
	if err := awt.Validate(); err != nil {
		return nil, err
	}
	if !awt.SupportsPerturbation() {
		return nil, errs.NotSupported("post-processing a database recorded with %s absorption weighting", awt)
	}
	if reference.N <= 0 {
		return nil, errs.Configuration("reference run launched no photon")
	}
	t, err := tissue.New(reference.Tissue, reference.Options.PhaseFunctionType)
	if err != nil {
		return nil, err
	}
	return &PostProcessor{reference: reference, tissue: t}, nil
}

// Reference is the input of the recorded run.
func (pp *PostProcessor) Reference() config.SimulationInput { return pp.reference }

// WithPerturbation sets the perturbed optical properties and regions of every
// perturbation detector of inputs. An empty ops leaves inputs as they are.
func WithPerturbation(inputs []detector.Input, ops []optics.Input, regions []int) []detector.Input {
	out := make([]detector.Input, len(inputs))
	copy(out, inputs)
	if len(ops) == 0 {
		return out
	}
	for i := range out {
		if detector.IsPerturbation(out[i].TallyType) {
			out[i].PerturbedOps = ops
			out[i].PerturbedRegionsIndices = regions
		}
	}
	return out
}

// DatabaseDirs lists the folders holding the databases of a run written to dir:
// the worker folders of a parallel run, or dir itself.
func DatabaseDirs(dir string) []string {
	var dirs []string
	for i := 0; ; i++ {
		wd := model.WorkerDir(dir, i)
		if fi, err := os.Stat(wd); err != nil || !fi.IsDir() {
			break
		}
		dirs = append(dirs, wd)
	}
	if len(dirs) == 0 {
		return []string{dir}
	}
	return dirs
}

// Run replays the databases of dir into the detectors of inputs.
// Surface detectors see the recorded data points, perturbation detectors
// the data points with their collision info. The result is normalised
// by the photons of the reference run.
func (pp *PostProcessor) Run(dir string, inputs []detector.Input) (*model.Output, error) {
	r, err := rng.New(pp.reference.Options.RandomNumberGeneratorType, pp.reference.Options.Seed)
	if err != nil {
		return nil, err
	}
	vbs, err := boundary.NewController(inputs, pp.tissue, r, true)
	if err != nil {
		return nil, err
	}
	for _, vb := range vbs.Boundaries() {
		kind := database.Kind(vb.Type())
		if kind.Validate() != nil {
			return nil, errs.NotSupported("detectors on %s cannot be rebuilt from a photon database", vb.Type())
		}
		for _, d := range DatabaseDirs(dir) {
			if err := replay(d, kind, vb.Controller()); err != nil {
				return nil, err
			}
		}
	}
	vbs.Finish(pp.reference.N, false)

	in := pp.reference
	in.Detectors = inputs
	log.Debug().Str("databases", dir).Int("detectors", len(inputs)).Msg("post-processing finished")
	return model.NewOutput(in, pp.reference.N, vbs.Detectors(), nil), nil
}

func replay(dir string, kind database.Kind, c *detector.Controller) error {
	photons, collisions, err := database.Pair(dir, kind)
	if err != nil {
		return err
	}
	defer photons.Close()
	if collisions != nil {
		defer collisions.Close()
	}
	log.Debug().Str("database", filepath.Join(dir, kind.PhotonFile())).Int64("records", photons.Header().NumberOfElements).Msg("replaying")

	for {
		dp, err := photons.NextDataPoint()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if collisions == nil {
			c.TallySingle(dp)
			continue
		}
		info, err := collisions.NextCollisionInfo()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errs.IO(nil, "%s: collision records end before the photons", dir)
			}
			return err
		}
		c.TallyPerturbed(dp, info)
	}
}

// LoadAndRun post-processes the run written to dir,
// reading the reference input from the copy kept with its results.
func LoadAndRun(dir string, inputs []detector.Input) (*model.Output, error) {
	ref, err := config.LoadSimulation(filepath.Join(dir, model.InputFile))
	if err != nil {
		return nil, err
	}
	pp, err := NewPostProcessor(ref)
	if err != nil {
		return nil, err
	}
	return pp.Run(dir, inputs)
}

type result struct {
	index int
	out   *model.Output
	err   error
}

// RunAll post-processes dir once per detector configuration, concurrently.
// Each run opens its own readers.
func (pp *PostProcessor) RunAll(dir string, configs [][]detector.Input) ([]*model.Output, error) {
	var computeWg, stateWg sync.WaitGroup

	results := make(chan result, len(configs))
	outs := make([]*model.Output, len(configs))
	failures := make([]error, len(configs))
	stateWg.Add(1)
	go func() {
		for r := range results {
			if r.err != nil {
				failures[r.index] = fmt.Errorf("configuration %d: %w", r.index, r.err)
				continue
			}
			outs[r.index] = r.out
		}
		stateWg.Done()
	}()

	for i, inputs := range configs {
		computeWg.Add(1)
		go func() {
			defer computeWg.Done()
			out, err := pp.Run(dir, inputs)
			results <- result{index: i, out: out, err: err}
		}()
	}
	computeWg.Wait()
	close(results)
	stateWg.Wait()
	for _, err := range failures {
		if err != nil {
			return nil, err
		}
	}
	return outs, nil
}
