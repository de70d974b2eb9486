package utils

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/VirtualPhotonics/VTS-sub010/internal/rng"
)

func TestProduct(t *testing.T) {
	if got := Product([]int{2, 3, 4}); got != 24 {
		t.Errorf("product: got %d, want 24", got)
	}
	if got := Product([]float64{}); got != 1 {
		t.Errorf("empty product: got %v, want 1", got)
	}
}

func TestWriteAsCSVNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	rows := CSV{{"det10", "a"}, {"det2", "b"}, {"det1", "c"}}
	if err := WriteAsCSV(rows, dir, "index.csv", []string{"Name", "Value"}, true); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join(dir, "index.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Name", "det1", "det2", "det10"}
	for i, w := range want {
		if got[i][0] != w {
			t.Errorf("row %d: got %s, want %s", i, got[i][0], w)
		}
	}
}

func TestGetFilename(t *testing.T) {
	if got := GetFilename("/tmp/out/run.toml"); got != "run" {
		t.Errorf("got %q, want run", got)
	}
}

func TestSamplers(t *testing.T) {
	src, err := rng.New(rng.PCG, 7)
	if err != nil {
		t.Fatal(err)
	}
	for range 20000 {
		a, b := UniformOnDisk(src, 2)
		if a*a+b*b > 4 {
			t.Fatalf("(%v, %v) outside the disk", a, b)
		}
		x, y, z := UniformOnSphere(src)
		if math.Abs(x*x+y*y+z*z-1) > 1e-12 {
			t.Fatalf("(%v, %v, %v) not on the unit sphere", x, y, z)
		}
	}
}

func TestGaussian(t *testing.T) {
	for _, typ := range []rng.Type{rng.PCG, rng.GoRand, rng.FastRand} {
		src, err := rng.New(typ, 7)
		if err != nil {
			t.Fatal(err)
		}
		var sum, sq float64
		const n = 20000
		for range n {
			g := Gaussian(src)
			sum += g
			sq += g * g
		}
		if mean := sum / n; math.Abs(mean) > 0.05 {
			t.Errorf("%s: mean %v", typ, mean)
		}
		if variance := sq / n; math.Abs(variance-1) > 0.05 {
			t.Errorf("%s: variance %v", typ, variance)
		}
	}
}
