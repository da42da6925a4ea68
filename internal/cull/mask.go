// Package cull implements automated outlier rejection for pulsar
// observation cubes: per-cell rejection statistics, outlier criteria, and
// an orchestrator that iterates strategies until the cube is clean.
package cull

import (
	"math"

	"github.com/banshee-data/pulsar.cull/internal/stats"
)

// DefaultMaskFraction is the on-pulse decision level: bins whose
// baseline-subtracted amplitude reaches this fraction of the peak count as
// on-pulse.
const DefaultMaskFraction = 0.1

// OnPulseMask partitions template bins into on-pulse (true) and off-pulse
// (false). The template baseline is taken as the median amplitude; a bin
// is on-pulse when its distance from the baseline reaches fraction of the
// peak distance. A non-positive fraction selects DefaultMaskFraction.
// The rule is pure: identical templates always produce identical masks.
func OnPulseMask(template []float64, fraction float64) []bool {
	if fraction <= 0 {
		fraction = DefaultMaskFraction
	}

	baseline := stats.Median(template)
	if math.IsNaN(baseline) {
		baseline = 0
	}

	var peak float64
	for _, v := range template {
		if d := math.Abs(v - baseline); d > peak {
			peak = d
		}
	}

	mask := make([]bool, len(template))
	if peak == 0 {
		return mask
	}
	level := fraction * peak
	for i, v := range template {
		mask[i] = math.Abs(v-baseline) >= level
	}
	return mask
}

// OffPulseMask is the complement of OnPulseMask: the noise-only bins used
// for RMS estimation.
func OffPulseMask(template []float64, fraction float64) []bool {
	mask := OnPulseMask(template, fraction)
	for i := range mask {
		mask[i] = !mask[i]
	}
	return mask
}
