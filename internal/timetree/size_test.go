package timetree

import (
	"math"
	"testing"
	"time"

	"github.com/lucasmnt/timetree/internal/models"
)

func TestDiameter_Bounds(t *testing.T) {
	min, max := 2.0, 10.0
	for _, acc := range []float64{2, 3, 5, 7, 9.5, 10} {
		d := diameter(acc, min, max)
		if d < minDiameter || d > maxDiameter {
			t.Errorf("diameter(%v) = %v, outside [%d, %d]", acc, d, minDiameter, maxDiameter)
		}
	}
	if d := diameter(min, min, max); d != minDiameter {
		t.Errorf("diameter(min) = %v, want %d", d, minDiameter)
	}
	if d := diameter(max, min, max); d != maxDiameter {
		t.Errorf("diameter(max) = %v, want %d", d, maxDiameter)
	}
}

func TestDiameter_AreaLinear(t *testing.T) {
	// Halfway in accumulated duration means halfway in area, not diameter.
	d := diameter(6, 2, 10)
	wantArea := (36.0 + 10000.0) / 2
	if got := d * d; math.Abs(got-wantArea) > 1 {
		t.Errorf("area at midpoint = %v, want ≈ %v", got, wantArea)
	}
}

func TestDiameter_Degenerate(t *testing.T) {
	if d := diameter(0, 0, 0); d != minDiameter {
		t.Errorf("all-zero set: diameter = %v, want %d", d, minDiameter)
	}
	if d := diameter(5, 5, 5); d != maxDiameter {
		t.Errorf("equal nonzero set: diameter = %v, want %d", d, maxDiameter)
	}
}

func TestNormalizeSizes_AllZero(t *testing.T) {
	g := &fakeGraph{
		out: map[string][]string{
			"r.md": {"a.md"},
			"a.md": {},
		},
		created: map[string]time.Time{},
	}
	a := newFakeAttrs()
	e := newTestEngine(g, a, &fakeSource{seconds: map[string]float64{}, running: map[string]bool{}}, Config{})

	if err := e.normalizeSizes("r.md"); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"r.md", "a.md"} {
		if got, _ := a.Number(path, models.AttrNodeSize); got != minDiameter {
			t.Errorf("%s node_size = %v, want %d", path, got, minDiameter)
		}
	}
}
