package optics_test

import (
	"errors"
	"math"
	"testing"

	"github.com/VirtualPhotonics/VTS-sub010/internal/errs"
	"github.com/VirtualPhotonics/VTS-sub010/internal/optics"
)

func checkMusp(t *testing.T, op optics.OpticalProperties, step string) {
	t.Helper()
	if d := math.Abs(op.Musp() - op.Mus()*(1-op.G())); d > 1e-12 {
		t.Errorf("%s: musp %v != mus*(1-g) %v [diff = %v]", step, op.Musp(), op.Mus()*(1-op.G()), d)
	}
}

func TestMuspInvariant(t *testing.T) {
	op := optics.New(0.01, 1.0, 0.8, 1.4)
	checkMusp(t, op, "new")
	if math.Abs(op.Mus()-5.0) > 1e-12 {
		t.Errorf("mus: got %v, want 5", op.Mus())
	}

	op.SetMus(10)
	checkMusp(t, op, "set mus")
	if math.Abs(op.Musp()-2) > 1e-12 {
		t.Errorf("musp after mus: got %v, want 2", op.Musp())
	}

	op.SetG(0.9)
	checkMusp(t, op, "set g")
	if op.Mus() != 10 {
		t.Errorf("mus after g: got %v, want 10", op.Mus())
	}

	if err := op.SetMusp(3); err != nil {
		t.Fatalf("set musp: %v", err)
	}
	checkMusp(t, op, "set musp")
	if math.Abs(op.Musp()-3) > 1e-12 {
		t.Errorf("musp: got %v, want 3", op.Musp())
	}
}

func TestSetMuspForwardScattering(t *testing.T) {
	op := optics.NewFromMus(0.1, 10, 1, 1.4)
	if err := op.SetMusp(1); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("g = 1: got error %v, want configuration error", err)
	}
	if err := op.SetMusp(0); err != nil {
		t.Errorf("g = 1, musp 0: unexpected error %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]optics.OpticalProperties{
		"negative mua": optics.New(-1, 1, 0.8, 1.4),
		"g above 1":    optics.NewFromMus(0, 1, 1.5, 1.4),
		"zero n":       optics.New(0.1, 1, 0.8, 0),
	}
	for name, op := range tests {
		if err := op.Validate(); !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("%s: got %v, want configuration error", name, err)
		}
	}
	if err := optics.New(0.01, 1, 0.8, 1.4).Validate(); err != nil {
		t.Errorf("valid: %v", err)
	}
}

func TestDoubleRange(t *testing.T) {
	r := optics.NewDoubleRange(0, 40, 201)
	if r.BinCount() != 200 {
		t.Errorf("bins: got %d, want 200", r.BinCount())
	}
	if math.Abs(r.Delta()-0.2) > 1e-12 {
		t.Errorf("delta: got %v, want 0.2", r.Delta())
	}
	if math.Abs(r.BinCenter(0)-0.1) > 1e-12 {
		t.Errorf("center: got %v, want 0.1", r.BinCenter(0))
	}
	if err := optics.NewDoubleRange(0, 1, 1).Validate("rho"); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("single point: got %v, want configuration error", err)
	}
}

func TestInputConsistency(t *testing.T) {
	mus, musp := 5.0, 1.0
	in := optics.Input{Mua: 0.01, Mus: &mus, Musp: &musp, G: 0.8, N: 1.4}
	op, err := in.Build()
	if err != nil {
		t.Fatalf("consistent input: %v", err)
	}
	if math.Abs(op.Musp()-1) > 1e-12 {
		t.Errorf("musp: got %v, want 1", op.Musp())
	}

	bad := 2.0
	in.Musp = &bad
	if _, err := in.Build(); !errors.Is(err, errs.ErrConfiguration) {
		t.Errorf("inconsistent input: got %v, want configuration error", err)
	}

	back, err := optics.InputFrom(op).Build()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(back.Mus()-op.Mus()) > 1e-12 {
		t.Errorf("round trip mus: got %v, want %v", back.Mus(), op.Mus())
	}
}
