package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/config"
	"github.com/VirtualPhotonics/VTS-sub010/internal/database"
	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

var (
	air    = optics.New(0, 0, 0, 1)
	medium = optics.New(0.1, 1, 0.8, 1.4)
)

func slabInput(awt photon.AbsorptionWeightingType, thickness float64, n int64, detectors ...detector.Input) config.SimulationInput {
	in := config.Defaults()
	in.OutputName = "test"
	in.N = n
	in.Options.Seed = 1
	in.Options.AbsorptionWeightingType = awt
	in.Tissue = tissue.Input{
		Kind: tissue.MultiLayerKind,
		Layers: []tissue.RegionInput{
			tissue.LayerInput(math.Inf(-1), 0, air),
			tissue.LayerInput(0, thickness, medium),
			tissue.LayerInput(thickness, math.Inf(1), air),
		},
	}
	in.Detectors = detectors
	return in
}

func run(t *testing.T, in config.SimulationInput) *Output {
	t.Helper()
	s, err := New(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func total(t *testing.T, out *Output, name detector.TallyType) float64 {
	t.Helper()
	d, ok := out.Detector(string(name))
	if !ok {
		t.Fatalf("no detector %s", name)
	}
	return d.Tally().Mean[0]
}

var balance = []detector.Input{
	{TallyType: detector.RDiffuse},
	{TallyType: detector.TDiffuse},
	{TallyType: detector.RSpecular},
	{TallyType: detector.ATotal},
}

func TestEnergyConservation(t *testing.T) {
	for _, tc := range []struct {
		awt photon.AbsorptionWeightingType
		tol float64
	}{
		{photon.Analog, 1e-9},
		{photon.Discrete, 5e-3},
		{photon.Continuous, 5e-3},
	} {
		t.Run(string(tc.awt), func(t *testing.T) {
			out := run(t, slabInput(tc.awt, 2, 2000, balance...))
			r := total(t, out, detector.RDiffuse)
			tr := total(t, out, detector.TDiffuse)
			s := total(t, out, detector.RSpecular)
			a := total(t, out, detector.ATotal)
			if sum := r + tr + s + a; math.Abs(sum-1) > tc.tol {
				t.Errorf("R %v + T %v + Rs %v + A %v = %v, want 1", r, tr, s, a, sum)
			}
			if r <= 0 || tr <= 0 || a <= 0 {
				t.Errorf("empty tally: R %v T %v A %v", r, tr, a)
			}
		})
	}
}

func TestEnergyConservationTissues(t *testing.T) {
	inclusion := tissue.RegionInput{
		Shape:  tissue.Ellipsoid,
		Center: r3.Vec{Z: 5},
		Dx:     1, Dy: 1, Dz: 1,
		Ops: optics.InputFrom(optics.New(1, 1, 0.8, 1.4)),
	}
	cylinder := tissue.RegionInput{Center: r3.Vec{Z: 5}, Radius: 2, Ops: optics.InputFrom(air)}
	withBoundingVolume := append([]detector.Input{{TallyType: detector.ATotalBoundingVolume}}, balance...)

	for _, tc := range []struct {
		name      string
		kind      tissue.Kind
		inclusion *tissue.RegionInput
		cylinder  *tissue.RegionInput
		detectors []detector.Input
	}{
		{"SingleInclusion", tissue.SingleInclusionKind, &inclusion, nil, balance},
		{"BoundingCylinder", tissue.BoundingCylinderKind, nil, &cylinder, withBoundingVolume},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := slabInput(photon.Discrete, 10, 3000, tc.detectors...)
			in.Tissue.Kind = tc.kind
			in.Tissue.Inclusion = tc.inclusion
			in.Tissue.BoundingCylinder = tc.cylinder
			out := run(t, in)

			sum := total(t, out, detector.RDiffuse) + total(t, out, detector.TDiffuse) +
				total(t, out, detector.RSpecular) + total(t, out, detector.ATotal)
			var side float64
			if tc.cylinder != nil {
				side = total(t, out, detector.ATotalBoundingVolume)
				if side <= 0 {
					t.Errorf("no weight left through the cylinder wall")
				}
				sum += side
			}
			if math.Abs(sum-1) > 5e-3 {
				t.Errorf("R + T + Rs + A + side %v = %v, want 1", side, sum)
			}
		})
	}
}

func TestSpecularReflectance(t *testing.T) {
	out := run(t, slabInput(photon.Discrete, 2, 100, detector.Input{TallyType: detector.RSpecular}))
	want := math.Pow((1.4-1)/(1.4+1), 2)
	if got := total(t, out, detector.RSpecular); math.Abs(got-want) > 1e-12 {
		t.Errorf("specular: got %v, want %v", got, want)
	}
}

func TestROfRhoDecreases(t *testing.T) {
	in := slabInput(photon.Discrete, 100, 5000,
		detector.Input{TallyType: detector.ROfRho, Rho: optics.NewDoubleRange(0, 4, 5)})
	out := run(t, in)
	d, _ := out.Detector(string(detector.ROfRho))
	mean := d.Tally().Mean
	for i := 1; i < len(mean); i++ {
		if !(mean[i] < mean[i-1]) {
			t.Errorf("R(rho) bin %d: %v not below %v", i, mean[i], mean[i-1])
		}
	}
}

// farrell is the diffusion approximation of R(rho) for a semi-infinite medium.
func farrell(rho float64, ops optics.OpticalProperties) float64 {
	mutr := ops.Mua() + ops.Musp()
	n := ops.N()
	reff := -1.440/(n*n) + 0.710/n + 0.668 + 0.0636*n
	a := (1 + reff) / (1 - reff)
	z0 := 1 / mutr
	zb := 2 * a / (3 * mutr)
	mueff := math.Sqrt(3 * ops.Mua() * mutr)
	r1 := math.Hypot(z0, rho)
	r2 := math.Hypot(z0+2*zb, rho)
	return (z0*(mueff+1/r1)*math.Exp(-mueff*r1)/(r1*r1) +
		(z0+2*zb)*(mueff+1/r2)*math.Exp(-mueff*r2)/(r2*r2)) / (4 * math.Pi)
}

func TestROfRhoMatchesDiffusion(t *testing.T) {
	if testing.Short() {
		t.Skip("long run")
	}
	rho := optics.NewDoubleRange(0, 10, 21)
	in := slabInput(photon.Discrete, 100, 100000, detector.Input{TallyType: detector.ROfRho, Rho: rho})
	p, err := NewParallel(in, 4)
	if err != nil {
		t.Fatal(err)
	}
	out, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	d, _ := out.Detector(string(detector.ROfRho))
	for i := 8; i <= 12; i++ {
		r := rho.BinCenter(i)
		want := farrell(r, medium)
		if got := d.Tally().Mean[i]; math.Abs(got-want)/want > 0.2 {
			t.Errorf("R(%v): got %v, diffusion %v", r, got, want)
		}
	}
}

func TestParallelSingleWorkerMatchesSequential(t *testing.T) {
	rho := optics.NewDoubleRange(0, 5, 11)
	in := slabInput(photon.Discrete, 10, 500, detector.Input{TallyType: detector.ROfRho, Rho: rho})
	want := run(t, in)

	p, err := NewParallel(in, 1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	w, _ := want.Detector(string(detector.ROfRho))
	g, _ := got.Detector(string(detector.ROfRho))
	for i, v := range w.Tally().Mean {
		if g.Tally().Mean[i] != v {
			t.Errorf("bin %d: parallel %v, sequential %v", i, g.Tally().Mean[i], v)
		}
	}
}

func TestParallelMergesWorkersInOrder(t *testing.T) {
	in := slabInput(photon.Continuous, 2, 301, balance...)
	in.Options.TrackStatistics = true
	p, err := NewParallel(in, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.Workers() != 3 {
		t.Fatalf("workers: got %d, want 3", p.Workers())
	}
	got, err := p.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got.PhotonsLaunched != 301 || got.Statistics.Photons != 301 {
		t.Errorf("photons: launched %d, counted %d, want 301", got.PhotonsLaunched, got.Statistics.Photons)
	}

	var outs []*Output
	for i, n := range []int64{101, 100, 100} {
		s, err := newSimulation(in, in.Options.Seed+int64(i), n, "")
		if err != nil {
			t.Fatal(err)
		}
		s.raw = true
		out, err := s.Run()
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, out)
	}
	want, err := merge(in, outs)
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range []detector.TallyType{detector.RDiffuse, detector.TDiffuse, detector.ATotal} {
		if g, w := total(t, got, tt), total(t, want, tt); g != w {
			t.Errorf("%s: got %v, want %v", tt, g, w)
		}
	}
}

func TestParallelClampsWorkers(t *testing.T) {
	p, err := NewParallel(slabInput(photon.Discrete, 2, 3, balance...), 8)
	if err != nil {
		t.Fatal(err)
	}
	if p.Workers() != 3 {
		t.Errorf("workers: got %d, want 3", p.Workers())
	}
	if _, err := NewParallel(slabInput(photon.Discrete, 2, 3), 0); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("zero workers: got %v", err)
	}
}

func TestParallelWorkerError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	in := slabInput(photon.Discrete, 2, 10, balance...)
	in.OutputName = filepath.Join(blocker, "out")
	in.Options.Databases = []database.Kind{database.DiffuseReflectance}
	p, err := NewParallel(in, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(); !errors.Is(err, errs.ErrIO) {
		t.Errorf("got %v, want an io error", err)
	}
}

func TestCancel(t *testing.T) {
	s, err := New(slabInput(photon.Discrete, 2, 1000, balance...))
	if err != nil {
		t.Fatal(err)
	}
	s.Cancel()
	out, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if out.PhotonsLaunched != 0 {
		t.Errorf("launched %d photons after cancel", out.PhotonsLaunched)
	}
}

func TestStatistics(t *testing.T) {
	in := slabInput(photon.Analog, 2, 500, balance...)
	in.Options.TrackStatistics = true
	out := run(t, in)
	st := out.Statistics
	if st.Photons != 500 {
		t.Fatalf("photons: got %d", st.Photons)
	}
	if sum := st.Reflected + st.Transmitted + st.Absorbed + st.KilledOverMaximumCollisions; sum != st.Photons {
		t.Errorf("terminal states add up to %d of %d", sum, st.Photons)
	}
	if got, want := st.ReflectedWeight/float64(st.Photons), total(t, out, detector.RDiffuse); math.Abs(got-want) > 1e-12 {
		t.Errorf("reflected weight %v, RDiffuse %v", got, want)
	}
	if st.KilledRussianRoulette != 0 {
		t.Errorf("analog photons played roulette %d times", st.KilledRussianRoulette)
	}
}

func TestRadianceBoundary(t *testing.T) {
	in := slabInput(photon.Discrete, 4, 1000,
		detector.Input{TallyType: detector.RadianceOfRhoAtZ, Rho: optics.NewDoubleRange(0, 4, 5), ZDepth: 1},
		detector.Input{TallyType: detector.RDiffuse})
	out := run(t, in)
	d, _ := out.Detector(string(detector.RadianceOfRhoAtZ))
	if d.Tally().Total() <= 0 {
		t.Error("no photon crossed the radiance plane")
	}
	if r := total(t, out, detector.RDiffuse); r <= 0 || r >= 1 {
		t.Errorf("RDiffuse with a radiance plane: %v", r)
	}
}

func TestDatabaseWritten(t *testing.T) {
	dir := t.TempDir()
	in := slabInput(photon.Discrete, 2, 300, balance...)
	in.OutputName = dir
	in.Options.TrackStatistics = true
	in.Options.Databases = []database.Kind{database.PMCDiffuseReflectance, database.DiffuseTransmittance}
	out := run(t, in)

	photons, collisions, err := database.Pair(dir, database.PMCDiffuseReflectance)
	if err != nil {
		t.Fatal(err)
	}
	defer photons.Close()
	defer collisions.Close()
	if got := photons.Header().NumberOfElements; got != out.Statistics.Reflected {
		t.Errorf("reflectance records: got %d, want %d", got, out.Statistics.Reflected)
	}
	var weight float64
	for {
		dp, err := photons.NextDataPoint()
		if err != nil {
			break
		}
		info, err := collisions.NextCollisionInfo()
		if err != nil {
			t.Fatal(err)
		}
		if len(info) != 3 {
			t.Fatalf("collision info regions: got %d, want 3", len(info))
		}
		weight += dp.Weight
	}
	if math.Abs(weight-out.Statistics.ReflectedWeight) > 1e-9 {
		t.Errorf("database weight %v, statistics %v", weight, out.Statistics.ReflectedWeight)
	}

	tr, err := database.Open(dir, database.DiffuseTransmittance.PhotonFile())
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()
	if got := tr.Header().NumberOfElements; got != out.Statistics.Transmitted {
		t.Errorf("transmittance records: got %d, want %d", got, out.Statistics.Transmitted)
	}
}

func TestOutputWrite(t *testing.T) {
	in := slabInput(photon.Discrete, 2, 100, balance...)
	in.Options.TrackStatistics = true
	out := run(t, in)
	dir := t.TempDir()
	if err := out.Write(dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{InputFile, StatisticsFile, detector.IndexFile, "RDiffuse.txt", "ATotal"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	back, err := config.LoadSimulation(filepath.Join(dir, InputFile))
	if err != nil {
		t.Fatal(err)
	}
	if back.N != in.N || len(back.Detectors) != len(in.Detectors) {
		t.Errorf("input round trip: got N=%d with %d detectors", back.N, len(back.Detectors))
	}
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestCloseAfterKeepsBothErrors(t *testing.T) {
	lost := errs.Geometry("photon outside every region")
	err := closeAfter(lost, closer{errs.IO(nil, "flush database")})
	if !errors.Is(err, errs.ErrGeometry) || !errors.Is(err, errs.ErrIO) {
		t.Errorf("got %v, want both the transport and the close error", err)
	}
	if err := closeAfter(lost, closer{}); !errors.Is(err, errs.ErrGeometry) || errors.Is(err, errs.ErrIO) {
		t.Errorf("clean close: got %v", err)
	}
}
