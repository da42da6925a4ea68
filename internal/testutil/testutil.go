// Package testutil provides shared fixtures for the culling tests:
// synthetic pulse profiles and observation grids with known outliers.
package testutil

import (
	"math"
	"testing"
)

// GaussianProfile builds an n-bin profile with a Gaussian pulse of the
// given center, width, and amplitude.
func GaussianProfile(n int, center, width, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		d := float64(i) - center
		out[i] = amp * math.Exp(-d*d/(2*width*width))
	}
	return out
}

// Rotate returns profile shifted right by s bins, circularly.
func Rotate(profile []float64, s int) []float64 {
	n := len(profile)
	out := make([]float64, n)
	for i, v := range profile {
		out[(i+s+n)%n] = v
	}
	return out
}

// Scale returns profile multiplied by factor.
func Scale(profile []float64, factor float64) []float64 {
	out := make([]float64, len(profile))
	for i, v := range profile {
		out[i] = v * factor
	}
	return out
}

// AddOffPulse adds an alternating +/-amp pattern to the bins where mask
// is true, simulating off-pulse noise with a deterministic RMS of amp.
func AddOffPulse(profile []float64, mask []bool, amp float64) []float64 {
	out := append([]float64(nil), profile...)
	sign := 1.0
	for i := range out {
		if i < len(mask) && mask[i] {
			out[i] += sign * amp
			sign = -sign
		}
	}
	return out
}

// UniformGrid builds an nsubint x nchan grid with every cell a copy of
// profile.
func UniformGrid(nsubint, nchan int, profile []float64) [][][]float64 {
	grid := make([][][]float64, nsubint)
	for i := range grid {
		grid[i] = make([][]float64, nchan)
		for j := range grid[i] {
			grid[i][j] = append([]float64(nil), profile...)
		}
	}
	return grid
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
