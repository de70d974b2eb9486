package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/facette/natsort"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

// Format is an input file encoding, named by its extension.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf picks the document format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", errs.Configuration("%s: unknown input format, expected .toml, .yaml or .yml", path)
}

// Load reads every simulation of an input document, completed with defaults.
// Simulations are returned in natural order of their names.
func Load(path string) ([]SimulationInput, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(err, "reading input")
	}
	ins, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("input", path).Int("simulations", len(ins)).Msg("input loaded")
	return ins, nil
}

// LoadSimulation reads a document holding exactly one simulation.
func LoadSimulation(path string) (SimulationInput, error) {
	ins, err := Load(path)
	if err != nil {
		return SimulationInput{}, err
	}
	if len(ins) != 1 {
		return SimulationInput{}, errs.Configuration("%s holds %d simulations, expected one", path, len(ins))
	}
	return ins[0], nil
}

// LoadDetectors reads the detector list of a document,
// the Detectors table of an input or a file holding only that table.
func LoadDetectors(path string) ([]detector.Input, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO(err, "reading detectors")
	}
	var doc struct {
		Detectors []detector.Input `toml:"Detectors" yaml:"detectors"`
	}
	if format == TOML {
		_, err = toml.Decode(string(data), &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errs.Configuration("decoding detectors: %v", err)
	}
	if len(doc.Detectors) == 0 {
		return nil, errs.Configuration("%s defines no detector", path)
	}
	return doc.Detectors, nil
}

// Decode parses a document and completes its simulations.
func Decode(data []byte, format Format) ([]SimulationInput, error) {
	var f File
	var md definer
	switch format {
	case TOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, errs.Configuration("decoding input: %v", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			log.Warn().Stringer("key", undecoded[0]).Int("count", len(undecoded)).Msg("unknown input keys ignored")
		}
		md = &meta
	case YAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, errs.Configuration("decoding input: %v", err)
		}
		keys := yamlKeys{}
		if err := yaml.Unmarshal(data, &keys); err != nil {
			return nil, errs.Configuration("decoding input: %v", err)
		}
		md = keys
	default:
		return nil, errs.Configuration("unknown input format %q", format)
	}
	return f.complete(md), nil
}

func (f *File) complete(md definer) []SimulationInput {
	if len(f.Simulations) == 0 {
		fill(reflect.ValueOf(&f.SimulationInput).Elem(), reflect.Value{}, nil, "", md)
		in := f.SimulationInput
		finish(&in, f.OutputDir)
		return []SimulationInput{in}
	}
	names := make([]string, 0, len(f.Simulations))
	for name := range f.Simulations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return natsort.Compare(names[i], names[j]) })

	global := reflect.ValueOf(&f.SimulationInput).Elem()
	ins := make([]SimulationInput, 0, len(names))
	for _, name := range names {
		in := f.Simulations[name]
		fill(reflect.ValueOf(&in).Elem(), global, nil, name, md)
		if !md.IsDefined("Simulations", name, "OutputName") {
			in.OutputName = name
		}
		finish(&in, f.OutputDir)
		ins = append(ins, in)
	}
	return ins
}

func finish(in *SimulationInput, outputDir string) {
	if in.Source.Kind == "" {
		in.Source = source.DefaultInput()
	}
	if outputDir != "" {
		in.OutputName = filepath.Join(outputDir, in.OutputName)
	}
}

// Write stores in as a document of the format named by the extension of path.
func (in SimulationInput) Write(path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch format {
	case TOML:
		err = toml.NewEncoder(&buf).Encode(in)
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(in); err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return errs.IO(err, "encoding %s", path)
	}
	f, err := utils.OpenFile(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return errs.IO(err, "writing input")
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return errs.IO(err, "writing %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.IO(err, "writing %s", path)
	}
	return nil
}
