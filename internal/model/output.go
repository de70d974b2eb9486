package model

import (
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
)

// InputFile is the copy of the simulation input kept with its results.
const InputFile = "input.toml"

// Output holds the normalised detectors of a finished run.
type Output struct {
	Input           config.SimulationInput
	PhotonsLaunched int64
	Detectors       []detector.Detector
	Statistics      *Statistics // nil unless tracked

	byName map[string]detector.Detector
}

// NewOutput indexes ds by name.
func NewOutput(in config.SimulationInput, launched int64, ds []detector.Detector, stats *Statistics) *Output {
	o := &Output{
		Input:           in,
		PhotonsLaunched: launched,
		Detectors:       ds,
		Statistics:      stats,
		byName:          make(map[string]detector.Detector, len(ds)),
	}
	for _, d := range ds {
		o.byName[d.Name()] = d
	}
	return o
}

func (o *Output) Detector(name string) (detector.Detector, bool) {
	d, ok := o.byName[name]
	return d, ok
}

// Write stores the input, every detector, the detector index
// and the statistics in dir.
func (o *Output) Write(dir string) error {
	if err := o.Input.Write(filepath.Join(dir, InputFile)); err != nil {
		return err
	}
	for _, d := range o.Detectors {
		if err := detector.Write(dir, d); err != nil {
			return err
		}
	}
	if err := detector.WriteIndex(dir, o.Detectors); err != nil {
		return err
	}
	if o.Statistics != nil {
		if err := o.Statistics.Write(dir); err != nil {
			return err
		}
	}
	log.Debug().Str("dir", dir).Int("detectors", len(o.Detectors)).Msg("output written")
	return nil
}
