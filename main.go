package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/facette/natsort"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/model"
	"github.com/VirtualPhotonics/VTS-sub010/internal/pmc"
	"github.com/VirtualPhotonics/VTS-sub010/internal/utils"
)

func main() {
	app := cli.NewApp()
	app.Name = "mcphoton"
	app.Usage = "Monte Carlo photon transport in layered tissue"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "verbose", Usage: "log every run step"},
	}
	app.Before = func(c *cli.Context) error {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if c.Bool("verbose") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run every simulation of an input file",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "input, i", Usage: "simulation input (.toml, .yaml)"},
				cli.StringFlag{Name: "out, o", Usage: "folder receiving the results, overrides OutputDir"},
				cli.IntFlag{Name: "workers, w", Usage: "goroutines per simulation, overrides Options.Workers"},
			},
			Action: runSimulations,
		},
		{
			Name:  "postprocess",
			Usage: "rebuild detectors from the photon databases of a finished run",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "input, i", Usage: "results folder of the run"},
				cli.StringFlag{Name: "detectors, d", Usage: "file holding the Detectors to build"},
				cli.StringSliceFlag{Name: "perturb, p", Usage: "region:mua:musp:g:n, repeatable"},
				cli.StringFlag{Name: "out, o", Usage: "folder receiving the detectors"},
			},
			Action: postprocess,
		},
		{
			Name:  "infile",
			Usage: "write example inputs",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Value: ".", Usage: "destination folder"},
				cli.StringFlag{Name: "format, f", Value: "toml", Usage: "toml or yaml"},
			},
			Action: writeExamples,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("")
	}
}

// cancelOnInterrupt cancels c on the first interrupt until stop is called.
func cancelOnInterrupt(c interface{ Cancel() }) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			log.Warn().Msg("interrupted, finishing the photons in flight")
			c.Cancel()
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

func runSimulations(c *cli.Context) error {
	path := c.String("input")
	if path == "" {
		return errors.New("run: --input is required")
	}
	ins, err := config.Load(path)
	if err != nil {
		return err
	}
	for _, in := range ins {
		if out := c.String("out"); out != "" {
			in.OutputName = filepath.Join(out, filepath.Base(in.OutputName))
		}
		if w := c.Int("workers"); w > 0 {
			in.Options.Workers = w
		}
		if err := in.Validate(); err != nil {
			return fmt.Errorf("%s: %w", in.OutputName, err)
		}
		p, err := model.NewParallel(in, in.Options.Workers)
		if err != nil {
			return fmt.Errorf("%s: %w", in.OutputName, err)
		}
		log.Info().Str("simulation", in.OutputName).Int64("photons", in.N).Int("workers", p.Workers()).Msg("running")
		stop := cancelOnInterrupt(p)
		out, err := p.Run()
		stop()
		if err != nil {
			return fmt.Errorf("%s: %w", in.OutputName, err)
		}
		if err := out.Write(in.OutputName); err != nil {
			return err
		}
		log.Info().Str("simulation", in.OutputName).Int64("launched", out.PhotonsLaunched).Msg("results written")
	}
	return nil
}

func postprocess(c *cli.Context) error {
	dir, detectorsPath := c.String("input"), c.String("detectors")
	if dir == "" || detectorsPath == "" {
		return errors.New("postprocess: --input and --detectors are required")
	}
	inputs, err := config.LoadDetectors(detectorsPath)
	if err != nil {
		return err
	}
	ref, err := config.LoadSimulation(filepath.Join(dir, model.InputFile))
	if err != nil {
		return err
	}
	pp, err := pmc.NewPostProcessor(ref)
	if err != nil {
		return err
	}

	var changes []pmc.RegionOps
	for _, s := range c.StringSlice("perturb") {
		ch, err := pmc.ParseRegionOps(s)
		if err != nil {
			return err
		}
		changes = append(changes, ch)
	}
	if len(changes) > 0 {
		ops, regions, err := pp.Perturbed(changes)
		if err != nil {
			return err
		}
		inputs = pmc.WithPerturbation(inputs, ops, regions)
	}

	out, err := pp.Run(dir, inputs)
	if err != nil {
		return err
	}
	dest := c.String("out")
	if dest == "" {
		dest = filepath.Join(filepath.Dir(filepath.Clean(dir)), utils.GetFilename(dir)+"_postprocessed")
	}
	if err := out.Write(dest); err != nil {
		return err
	}
	log.Info().Str("databases", dir).Str("out", dest).Int("detectors", len(inputs)).Msg("post-processing written")
	return nil
}

func writeExamples(c *cli.Context) error {
	ext := "." + c.String("format")
	if _, err := config.FormatOf(ext); err != nil {
		return err
	}
	examples := config.Examples()
	names := make([]string, 0, len(examples))
	for name := range examples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return natsort.Compare(names[i], names[j]) })
	for _, name := range names {
		path := filepath.Join(c.String("out"), name+ext)
		if err := examples[name].Write(path); err != nil {
			return err
		}
		log.Info().Str("file", path).Msg("example written")
	}
	return nil
}
