package testutil

import (
	"math"
	"testing"
)

func TestGaussianProfile(t *testing.T) {
	p := GaussianProfile(64, 32, 3, 2)
	if len(p) != 64 {
		t.Fatalf("length = %d, want 64", len(p))
	}
	if math.Abs(p[32]-2) > 1e-12 {
		t.Errorf("peak = %v, want 2", p[32])
	}
	if p[0] > 1e-6 {
		t.Errorf("tail = %v, want ~0", p[0])
	}
}

func TestRotate(t *testing.T) {
	p := []float64{1, 2, 3, 4}
	got := Rotate(p, 1)
	want := []float64{4, 1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rotate = %v, want %v", got, want)
		}
	}
	back := Rotate(got, -1)
	for i := range p {
		if back[i] != p[i] {
			t.Fatalf("Rotate round trip = %v, want %v", back, p)
		}
	}
}

func TestAddOffPulse(t *testing.T) {
	profile := []float64{0, 0, 1, 0}
	mask := []bool{true, true, false, true}
	got := AddOffPulse(profile, mask, 0.5)
	if got[2] != 1 {
		t.Errorf("on-pulse bin changed: %v", got)
	}
	if got[0] != 0.5 || got[1] != -0.5 || got[3] != 0.5 {
		t.Errorf("off-pulse pattern = %v", got)
	}
	if profile[0] != 0 {
		t.Error("input mutated")
	}
}

func TestUniformGrid(t *testing.T) {
	grid := UniformGrid(2, 3, []float64{1, 2})
	if len(grid) != 2 || len(grid[0]) != 3 {
		t.Fatalf("grid dims = %dx%d", len(grid), len(grid[0]))
	}
	grid[0][0][0] = 99
	if grid[0][1][0] != 1 {
		t.Error("cells share backing storage")
	}
}
