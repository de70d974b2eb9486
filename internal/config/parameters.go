// Package config decodes, completes and validates simulation inputs.
package config

import (
	"reflect"
	"slices"
	"strings"

	"github.com/VirtualPhotonics/VTS-sub010/internal/constants"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

// Options are the run-wide settings of a simulation.
type Options struct {
	Seed                           int64                          `toml:"Seed" yaml:"seed"` // negative seeds from the clock
	RandomNumberGeneratorType      rng.Type                       `toml:"RandomNumberGeneratorType" yaml:"randomNumberGeneratorType"`
	AbsorptionWeightingType        photon.AbsorptionWeightingType `toml:"AbsorptionWeightingType" yaml:"absorptionWeightingType"`
	PhaseFunctionType              phase.Type                     `toml:"PhaseFunctionType" yaml:"phaseFunctionType"`
	Databases                      []database.Kind                `toml:"Databases" yaml:"databases"`
	RussianRouletteWeightThreshold float64                        `toml:"RussianRouletteWeightThreshold" yaml:"russianRouletteWeightThreshold"`
	RussianRouletteChanceFactor    float64                        `toml:"RussianRouletteChanceFactor" yaml:"russianRouletteChanceFactor"`
	MaxPathLength                  float64                        `toml:"MaxPathLength" yaml:"maxPathLength"` // [mm], 0 disables
	MaxCollisions                  int64                          `toml:"MaxCollisions" yaml:"maxCollisions"` // 0 disables
	TrackStatistics                bool                           `toml:"TrackStatistics" yaml:"trackStatistics"`
	Workers                        int                            `toml:"Workers" yaml:"workers"`
}

// PhotonOptions are the transport options of a photon.
func (o Options) PhotonOptions(trackHistory bool) photon.Options {
	return photon.Options{
		AbsorptionWeighting: o.AbsorptionWeightingType,
		WeightThreshold:     o.RussianRouletteWeightThreshold,
		ChanceFactor:        o.RussianRouletteChanceFactor,
		MaxPathLength:       o.MaxPathLength,
		MaxCollisions:       o.MaxCollisions,
		TrackHistory:        trackHistory,
	}
}

// SimulationInput describes one simulation and where its results go.
type SimulationInput struct {
	OutputName string           `toml:"OutputName" yaml:"outputName"`
	N          int64            `toml:"N" yaml:"n"`
	Options    Options          `toml:"Options" yaml:"options"`
	Tissue     tissue.Input     `toml:"Tissue" yaml:"tissue"`
	Source     source.Input     `toml:"Source" yaml:"source"`
	Detectors  []detector.Input `toml:"Detectors" yaml:"detectors"`
}

// File is an input document. It holds one simulation, or named simulations
// in Simulations whose missing values come from the top level
// and then from the defaults.
type File struct {
	OutputDir       string `toml:"OutputDir" yaml:"outputDir"`
	SimulationInput `yaml:",inline"`
	Simulations     map[string]SimulationInput `toml:"Simulations" yaml:"simulations"`
}

var defaultValues = map[string]any{
	"OutputName":                             "results",
	"N":                                      int64(10000),
	"Options.Seed":                           int64(0),
	"Options.RandomNumberGeneratorType":      rng.PCG,
	"Options.AbsorptionWeightingType":        photon.Discrete,
	"Options.PhaseFunctionType":              phase.HenyeyGreenstein,
	"Options.RussianRouletteWeightThreshold": constants.DefaultWeightThreshold,
	"Options.RussianRouletteChanceFactor":    constants.DefaultChanceFactor,
	"Options.MaxPathLength":                  constants.DefaultMaxPathLength,
	"Options.MaxCollisions":                  constants.DefaultMaxCollisions,
	"Options.TrackStatistics":                false,
	"Options.Workers":                        1,
}

// Defaults returns an input holding every default value.
func Defaults() SimulationInput {
	var in SimulationInput
	fill(reflect.ValueOf(&in).Elem(), reflect.Value{}, nil, "", definedNowhere{})
	in.Source = source.DefaultInput()
	return in
}

// definer reports which keys a document sets.
type definer interface {
	IsDefined(key ...string) bool
}

type definedNowhere struct{}

func (definedNowhere) IsDefined(key ...string) bool { return false }

// yamlKeys is the generic decoding of a YAML document.
// Keys match field names regardless of case.
type yamlKeys map[string]any

func (m yamlKeys) IsDefined(key ...string) bool {
	var cur any = map[string]any(m)
	for _, k := range key {
		node, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		found := false
		for name, v := range node {
			if strings.EqualFold(name, k) {
				cur, found = v, true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var optionsType = reflect.TypeOf(Options{})

/*
field value priority:
1. simulation
2. top level
3. default
*/

// fill completes local field by field. global is the top level input,
// invalid when local is the top level itself.
func fill(local, global reflect.Value, path []string, name string, md definer) {
	t := local.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		p := append(slices.Clone(path), field.Name)
		if field.Type == optionsType {
			var g reflect.Value
			if global.IsValid() {
				g = global.Field(i)
			}
			fill(local.Field(i), g, p, name, md)
			continue
		}
		if name != "" && md.IsDefined(append([]string{"Simulations", name}, p...)...) {
			continue
		}
		if md.IsDefined(p...) {
			if global.IsValid() {
				local.Field(i).Set(global.Field(i))
			}
			continue
		}
		if v, some := defaultValues[strings.Join(p, ".")]; some {
			local.Field(i).Set(reflect.ValueOf(v))
		}
	}
}
