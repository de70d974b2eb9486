package source_test

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/VirtualPhotonics/VTS-sub010/internal/detector"
	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
	"github.com/VirtualPhotonics/VTS-sub010/internal/phase"
	"github.com/VirtualPhotonics/VTS-sub010/internal/photon"
	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
	"github.com/VirtualPhotonics/VTS-sub010/internal/source"
	"github.com/VirtualPhotonics/VTS-sub010/internal/tissue"
)

func slab(t *testing.T) tissue.Tissue {
	t.Helper()
	air := optics.New(0, 0, 0.8, 1.0)
	skin := optics.New(0.01, 1.0, 0.8, 1.4)
	ts, err := tissue.New(tissue.Input{
		Kind: tissue.MultiLayerKind,
		Layers: []tissue.RegionInput{
			tissue.LayerInput(math.Inf(-1), 0, air),
			tissue.LayerInput(0, 10, skin),
			tissue.LayerInput(10, math.Inf(1), air),
		},
	}, phase.HenyeyGreenstein)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func newRng(t *testing.T) rng.Source {
	t.Helper()
	r, err := rng.New(rng.PCG, 1)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func mustSource(t *testing.T, in source.Input) source.Source {
	t.Helper()
	s, err := source.New(in)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDirectionalPoint(t *testing.T) {
	ts, r := slab(t), newRng(t)
	s := mustSource(t, source.DefaultInput())
	dp, region, err := s.NextPhoton(ts, r)
	if err != nil {
		t.Fatal(err)
	}
	if region != 1 {
		t.Errorf("region = %d, want 1", region)
	}
	if dp.Direction != (r3.Vec{Z: 1}) || dp.Weight != 1 || dp.TotalTime != 0 {
		t.Errorf("data point = %+v", dp)
	}
}

func TestIsotropicPointUnitDirections(t *testing.T) {
	ts, r := slab(t), newRng(t)
	s := mustSource(t, source.Input{Kind: source.IsotropicPoint, Position: r3.Vec{Z: 5}})
	var mean r3.Vec
	const n = 20000
	for i := 0; i < n; i++ {
		dp, region, err := s.NextPhoton(ts, r)
		if err != nil {
			t.Fatal(err)
		}
		if region != 1 {
			t.Fatalf("region = %d", region)
		}
		if math.Abs(r3.Norm(dp.Direction)-1) > 1e-12 {
			t.Fatalf("direction %v is not unit", dp.Direction)
		}
		mean = r3.Add(mean, dp.Direction)
	}
	if r3.Norm(mean)/n > 0.03 {
		t.Errorf("mean direction %v is not isotropic", r3.Scale(1./n, mean))
	}
}

func TestCustomPointCone(t *testing.T) {
	ts, r := slab(t), newRng(t)
	s := mustSource(t, source.Input{
		Kind:       source.CustomPoint,
		Direction:  r3.Vec{Z: 1},
		PolarAngle: optics.NewDoubleRange(0, math.Pi/6, 2),
	})
	for i := 0; i < 1000; i++ {
		dp, _, err := s.NextPhoton(ts, r)
		if err != nil {
			t.Fatal(err)
		}
		if dp.Direction.Z < math.Cos(math.Pi/6)-1e-12 {
			t.Fatalf("direction %v outside the cone", dp.Direction)
		}
	}
}

func TestCircularRadii(t *testing.T) {
	ts, r := slab(t), newRng(t)
	for _, in := range []source.Input{
		{Kind: source.DirectionalCircular, Profile: source.Flat, OuterRadius: 2},
		{Kind: source.DirectionalCircular, Profile: source.Flat, InnerRadius: 1, OuterRadius: 2},
		{Kind: source.DirectionalCircular, Profile: source.Gaussian, OuterRadius: 2, BeamDiameterFWHM: 1},
	} {
		s := mustSource(t, in)
		for i := 0; i < 2000; i++ {
			dp, region, err := s.NextPhoton(ts, r)
			if err != nil {
				t.Fatal(err)
			}
			rho := math.Hypot(dp.Position.X, dp.Position.Y)
			if rho < in.InnerRadius || rho > in.OuterRadius || dp.Position.Z != 0 || region != 1 {
				t.Fatalf("%s/%s: launched at %v in region %d", in.Kind, in.Profile, dp.Position, region)
			}
		}
	}
}

func TestRectangularBounds(t *testing.T) {
	ts, r := slab(t), newRng(t)
	s := mustSource(t, source.Input{Kind: source.DirectionalRectangular, LengthX: 4, WidthY: 1})
	for i := 0; i < 2000; i++ {
		dp, _, err := s.NextPhoton(ts, r)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(dp.Position.X) > 2 || math.Abs(dp.Position.Y) > 0.5 {
			t.Fatalf("launched at %v", dp.Position)
		}
	}
}

func TestVolumetricInsideRegion(t *testing.T) {
	ts, r := slab(t), newRng(t)
	s := mustSource(t, source.Input{
		Kind:   source.IsotropicVolumetric,
		Region: &tissue.RegionInput{Shape: tissue.Ellipsoid, Center: r3.Vec{Z: 5}, Dx: 1, Dy: 2, Dz: 0.5},
	})
	for i := 0; i < 2000; i++ {
		dp, region, err := s.NextPhoton(ts, r)
		if err != nil {
			t.Fatal(err)
		}
		p := dp.Position
		if p.X*p.X+p.Y*p.Y/4+(p.Z-5)*(p.Z-5)/0.25 > 1 || region != 1 {
			t.Fatalf("launched at %v in region %d", p, region)
		}
	}
}

func TestInvalidInputs(t *testing.T) {
	for name, in := range map[string]source.Input{
		"kind":      {Kind: "Laser"},
		"radius":    {Kind: source.DirectionalCircular, OuterRadius: 0},
		"inner":     {Kind: source.DirectionalCircular, InnerRadius: 3, OuterRadius: 2},
		"fwhm":      {Kind: source.DirectionalCircular, Profile: source.Gaussian, OuterRadius: 1},
		"profile":   {Kind: source.DirectionalCircular, Profile: "TopHat", OuterRadius: 1},
		"rectangle": {Kind: source.DirectionalRectangular, LengthX: 1},
		"polar":     {Kind: source.CustomPoint, PolarAngle: optics.NewDoubleRange(0, 4, 2)},
		"region":    {Kind: source.IsotropicVolumetric},
		"shape":     {Kind: source.IsotropicVolumetric, Region: &tissue.RegionInput{Shape: tissue.Layer}},
		"direction": {Kind: source.DirectionalPoint, Direction: r3.Vec{Z: math.NaN()}},
	} {
		if _, err := source.New(in); !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
	if _, err := source.New(source.Input{Kind: source.FluorescenceEmission, InputFolder: t.TempDir()}); !errors.Is(err, errs.ErrIO) {
		t.Errorf("missing excitation output: err = %v", err)
	}
}

func TestSpecular(t *testing.T) {
	ts := slab(t)
	dp := photon.NewDataPoint(r3.Vec{}, r3.Vec{Z: 1}, 1, 0, photon.Alive)
	launched, reflected, ok := source.Specular(dp, 1, ts)
	if !ok {
		t.Fatal("surface photon not split")
	}
	rs := tissue.Specular(1.0, 1.4)
	if math.Abs(reflected.Weight-rs) > 1e-12 || math.Abs(launched.Weight-(1-rs)) > 1e-12 {
		t.Errorf("weights = %v + %v, want %v + %v", launched.Weight, reflected.Weight, 1-rs, rs)
	}
	if reflected.Direction.Z != -1 || !reflected.StateFlag.Has(photon.PseudoSpecularTissueBoundary) {
		t.Errorf("reflected = %+v", reflected)
	}
	if math.Abs(launched.Direction.Z-1) > 1e-12 {
		t.Errorf("normal incidence bent to %v", launched.Direction)
	}

	inside := photon.NewDataPoint(r3.Vec{Z: 5}, r3.Vec{Z: 1}, 1, 0, photon.Alive)
	if got, _, ok := source.Specular(inside, 1, ts); ok || got != inside {
		t.Errorf("buried photon split: %+v", got)
	}
}

// excitation writes an AOfXAndYAndZ detector whose absorption
// lies entirely in the voxel x in [0, 1].
func excitation(t *testing.T) string {
	t.Helper()
	d, err := detector.New(detector.Input{
		TallyType: detector.AOfXAndYAndZ,
		X:         optics.NewDoubleRange(-1, 1, 3),
		Y:         optics.NewDoubleRange(-1, 1, 2),
		Z:         optics.NewDoubleRange(0, 2, 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	h := photon.History{AWT: photon.Discrete, Ops: []optics.OpticalProperties{optics.New(1, 1, 0, 1)}}
	h.Add(photon.NewDataPoint(r3.Vec{X: 0.5, Z: 0.5}, r3.Vec{Z: 1}, 1, 0, photon.Alive), 0)
	h.Add(photon.NewDataPoint(r3.Vec{X: 0.5, Z: 1}, r3.Vec{Z: 1}, 0.5, 0, photon.Alive|photon.PseudoCollision), 0)
	d.(detector.HistoryDetector).TallyHistory(&h)
	d.Normalize(1)
	dir := t.TempDir()
	if err := detector.Write(dir, d); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestFluorescenceEmission(t *testing.T) {
	dir := excitation(t)
	ts, r := slab(t), newRng(t)
	for _, sampling := range []source.Sampling{source.CDF, source.Uniform} {
		s := mustSource(t, source.Input{Kind: source.FluorescenceEmission, InputFolder: dir, Sampling: sampling})
		for i := 0; i < 500; i++ {
			dp, region, err := s.NextPhoton(ts, r)
			if err != nil {
				t.Fatal(err)
			}
			p := dp.Position
			if p.X < 0 || p.X > 1 || math.Abs(p.Y) > 1 || p.Z < 0 || p.Z > 2 || region != 1 {
				t.Fatalf("%s: emitted at %v in region %d", sampling, p, region)
			}
			if dp.Weight != 1 {
				t.Fatalf("%s: weight = %v", sampling, dp.Weight)
			}
		}
	}
}

func TestFluorescenceUniformWeights(t *testing.T) {
	d, err := detector.New(detector.Input{
		TallyType: detector.AOfXAndYAndZ,
		X:         optics.NewDoubleRange(-1, 1, 3),
		Y:         optics.NewDoubleRange(-1, 1, 2),
		Z:         optics.NewDoubleRange(0, 2, 2),
	})
	if err != nil {
		t.Fatal(err)
	}
	d.Normalize(1)
	copy(d.Tally().Mean, []float64{0.5, 2})
	dir := t.TempDir()
	if err := detector.Write(dir, d); err != nil {
		t.Fatal(err)
	}

	s := mustSource(t, source.Input{Kind: source.FluorescenceEmission, InputFolder: dir, Sampling: source.Uniform})
	ts, r := slab(t), newRng(t)
	for i, want := range []float64{0.25, 1, 0.25, 1} {
		dp, _, err := s.NextPhoton(ts, r)
		if err != nil {
			t.Fatal(err)
		}
		if dp.Weight != want {
			t.Errorf("photon %d: weight %v, want %v", i, dp.Weight, want)
		}
		if left := dp.Position.X < 0; left != (want < 1) {
			t.Errorf("photon %d: emitted at x = %v", i, dp.Position.X)
		}
	}
}
