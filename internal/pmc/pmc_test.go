package pmc_test

import (
	"errors"
	"math"
	"testing"

	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/model"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/pmc"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

var (
	air    = optics.New(0, 0, 0, 1)
	top    = optics.New(0.01, 1, 0.8, 1.4)
	bottom = optics.New(0.05, 1.5, 0.8, 1.4)
	rho    = optics.NewDoubleRange(0, 4, 5)
)

// twoLayer records a reflectance database of a two-layer tissue in dir.
func twoLayer(dir string, awt photon.AbsorptionWeightingType) config.SimulationInput {
	in := config.Defaults()
	in.OutputName = dir
	in.N = 2000
	in.Options.Seed = 3
	in.Options.AbsorptionWeightingType = awt
	in.Options.Databases = []database.Kind{database.PMCDiffuseReflectance}
	in.Tissue = tissue.Input{
		Kind: tissue.MultiLayerKind,
		Layers: []tissue.RegionInput{
			tissue.LayerInput(math.Inf(-1), 0, air),
			tissue.LayerInput(0, 1, top),
			tissue.LayerInput(1, 50, bottom),
			tissue.LayerInput(50, math.Inf(1), air),
		},
	}
	in.Detectors = []detector.Input{
		{TallyType: detector.ROfRho, Rho: rho},
		{TallyType: detector.RDiffuse},
	}
	return in
}

func record(t *testing.T, in config.SimulationInput, workers int) *model.Output {
	t.Helper()
	p, err := model.NewParallel(in, workers)
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	if err := out.Write(in.OutputName); err != nil {
		t.Fatal(err)
	}
	return out
}

func reference(ops ...optics.OpticalProperties) []optics.Input {
	ins := make([]optics.Input, len(ops))
	for i, op := range ops {
		ins[i] = optics.InputFrom(op)
	}
	return ins
}

func mean(t *testing.T, out *model.Output, name string) []float64 {
	t.Helper()
	d, ok := out.Detector(name)
	if !ok {
		t.Fatalf("no detector %s", name)
	}
	return d.Tally().Mean
}

func TestUnperturbedReplayMatchesLiveRun(t *testing.T) {
	dir := t.TempDir()
	live := record(t, twoLayer(dir, photon.Discrete), 1)

	inputs := pmc.WithPerturbation([]detector.Input{
		{TallyType: detector.ROfRho, Rho: rho},
		{TallyType: detector.PMCROfRho, Rho: rho},
	}, reference(air, top, bottom, air), []int{1, 2})
	out, err := pmc.LoadAndRun(dir, inputs)
	if err != nil {
		t.Fatal(err)
	}
	want := mean(t, live, string(detector.ROfRho))
	for _, name := range []detector.TallyType{detector.ROfRho, detector.PMCROfRho} {
		got := mean(t, out, string(name))
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-12*math.Abs(want[i]) {
				t.Errorf("%s bin %d: replay %v, live %v", name, i, got[i], want[i])
			}
		}
	}
}

func TestDoubledAbsorptionLowersReflectance(t *testing.T) {
	dir := t.TempDir()
	for _, awt := range []photon.AbsorptionWeightingType{photon.Discrete, photon.Continuous} {
		t.Run(string(awt), func(t *testing.T) {
			live := record(t, twoLayer(dir, awt), 1)
			doubled := optics.New(2*top.Mua(), top.Musp(), top.G(), top.N())
			inputs := pmc.WithPerturbation([]detector.Input{
				{TallyType: detector.PMCROfRho, Rho: rho},
				{TallyType: detector.DMCdROfRhodMua, Rho: rho},
			}, reference(air, doubled, bottom, air), []int{1})
			out, err := pmc.LoadAndRun(dir, inputs)
			if err != nil {
				t.Fatal(err)
			}
			base := mean(t, live, string(detector.ROfRho))
			got := mean(t, out, string(detector.PMCROfRho))
			deriv := mean(t, out, string(detector.DMCdROfRhodMua))
			for i := range base {
				if !(got[i] < base[i]) {
					t.Errorf("bin %d: perturbed %v not below %v", i, got[i], base[i])
				}
				if !(deriv[i] < 0) {
					t.Errorf("bin %d: dR/dmua %v, want negative", i, deriv[i])
				}
			}
		})
	}
}

// rebuild replays the database of dir into tallies over rho,
// with the top layer given op.
func rebuild(t *testing.T, dir string, op optics.OpticalProperties, tallies ...detector.TallyType) *model.Output {
	t.Helper()
	var inputs []detector.Input
	for _, tt := range tallies {
		inputs = append(inputs, detector.Input{TallyType: tt, Rho: rho})
	}
	out, err := pmc.LoadAndRun(dir, pmc.WithPerturbation(inputs, reference(air, op, bottom, air), []int{1}))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDerivativesMatchFiniteDifferences(t *testing.T) {
	dir := t.TempDir()
	record(t, twoLayer(dir, photon.Discrete), 1)
	at := rebuild(t, dir, top, detector.DMCdROfRhodMua, detector.DMCdROfRhodMus)

	const h = 1e-5
	mua, mus, g, n := top.Mua(), top.Mus(), top.G(), top.N()
	for _, tc := range []struct {
		tally    detector.TallyType
		up, down optics.OpticalProperties
	}{
		{detector.DMCdROfRhodMua, optics.NewFromMus(mua+h, mus, g, n), optics.NewFromMus(mua-h, mus, g, n)},
		{detector.DMCdROfRhodMus, optics.NewFromMus(mua, mus+h, g, n), optics.NewFromMus(mua, mus-h, g, n)},
	} {
		t.Run(string(tc.tally), func(t *testing.T) {
			up := mean(t, rebuild(t, dir, tc.up, detector.PMCROfRho), string(detector.PMCROfRho))
			down := mean(t, rebuild(t, dir, tc.down, detector.PMCROfRho), string(detector.PMCROfRho))
			got := mean(t, at, string(tc.tally))
			var scale float64
			for _, v := range got {
				scale = max(scale, math.Abs(v))
			}
			if scale == 0 {
				t.Fatal("derivative is zero in every bin")
			}
			for i := range got {
				fd := (up[i] - down[i]) / (2 * h)
				if math.Abs(got[i]-fd) > 1e-4*scale {
					t.Errorf("bin %d: %v, central difference %v", i, got[i], fd)
				}
			}
		})
	}
}

func TestWorkerDatabases(t *testing.T) {
	dir := t.TempDir()
	live := record(t, twoLayer(dir, photon.Discrete), 3)
	if got := len(pmc.DatabaseDirs(dir)); got != 3 {
		t.Fatalf("database folders: got %d, want 3", got)
	}
	out, err := pmc.LoadAndRun(dir, []detector.Input{{TallyType: detector.RDiffuse}})
	if err != nil {
		t.Fatal(err)
	}
	want := mean(t, live, string(detector.RDiffuse))[0]
	if got := mean(t, out, string(detector.RDiffuse))[0]; math.Abs(got-want) > 1e-9*want {
		t.Errorf("RDiffuse: replay %v, live %v", got, want)
	}
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	in := twoLayer(dir, photon.Discrete)
	record(t, in, 1)
	pp, err := pmc.NewPostProcessor(in)
	if err != nil {
		t.Fatal(err)
	}
	configs := [][]detector.Input{
		{{TallyType: detector.RDiffuse}},
		{{TallyType: detector.ROfRho, Rho: rho}},
		{{TallyType: detector.RDiffuse, Name: "again"}},
	}
	outs, err := pp.RunAll(dir, configs)
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != len(configs) {
		t.Fatalf("outputs: got %d, want %d", len(outs), len(configs))
	}
	if a, b := mean(t, outs[0], "RDiffuse")[0], mean(t, outs[2], "again")[0]; a != b {
		t.Errorf("same detector in two runs: %v and %v", a, b)
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	in := twoLayer(dir, photon.Discrete)

	analog := in
	analog.Options.AbsorptionWeightingType = photon.Analog
	if _, err := pmc.NewPostProcessor(analog); !errors.Is(err, errs.ErrNotSupported) {
		t.Errorf("analog: got %v, want not supported", err)
	}

	pp, err := pmc.NewPostProcessor(in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pp.Run(dir, []detector.Input{{TallyType: detector.RDiffuse}}); !errors.Is(err, errs.ErrIO) {
		t.Errorf("missing database: got %v, want io error", err)
	}

	record(t, in, 1)
	if _, err := pp.Run(dir, []detector.Input{{TallyType: detector.ATotal}}); !errors.Is(err, errs.ErrNotSupported) {
		t.Errorf("volume detector: got %v, want not supported", err)
	}
	if _, err := pp.Run(dir, []detector.Input{{TallyType: detector.TDiffuse}}); !errors.Is(err, errs.ErrIO) {
		t.Errorf("unrecorded transmittance: got %v, want io error", err)
	}
	bad := pmc.WithPerturbation([]detector.Input{{TallyType: detector.PMCROfRho, Rho: rho}}, reference(air, top), []int{1})
	if _, err := pp.Run(dir, bad); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("short perturbed ops: got %v, want configuration error", err)
	}
}

func TestParseRegionOps(t *testing.T) {
	c, err := pmc.ParseRegionOps("1:0.02:1.2:0.9:1.33")
	if err != nil {
		t.Fatal(err)
	}
	if c.Region != 1 || c.Ops.Mua != 0.02 || *c.Ops.Musp != 1.2 || c.Ops.G != 0.9 || c.Ops.N != 1.33 {
		t.Errorf("got %+v", c)
	}
	for _, bad := range []string{"", "1:0.1:1:0.8", "x:0.1:1:0.8:1.4", "1:0.1:abc:0.8:1.4"} {
		if _, err := pmc.ParseRegionOps(bad); !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("%q: err = %v", bad, err)
		}
	}
}

func TestPerturbed(t *testing.T) {
	pp, err := pmc.NewPostProcessor(twoLayer(t.TempDir(), photon.Discrete))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := pmc.ParseRegionOps("2:0.1:1.5:0.8:1.4")
	ops, regions, err := pp.Perturbed([]pmc.RegionOps{c})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 4 || len(regions) != 1 || regions[0] != 2 {
		t.Fatalf("got %d ops, regions %v", len(ops), regions)
	}
	if ops[2].Mua != 0.1 || ops[1].Mua != top.Mua() {
		t.Errorf("ops: region 1 mua %v, region 2 mua %v", ops[1].Mua, ops[2].Mua)
	}
	c.Region = 7
	if _, _, err := pp.Perturbed([]pmc.RegionOps{c}); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("out of range: err = %v", err)
	}
}
