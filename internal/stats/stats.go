// Package stats provides the numeric primitives behind profile rejection:
// outlier criteria (Chauvenet, double median absolute deviation), masked
// RMS matrices, and peak normalisation.
//
// All functions treat NaN as "cell already excised": NaN inputs are
// excluded from sample counts and moments, and are never flagged as
// outliers themselves.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultDMADThreshold is the modified z-score cut for DoubleMADOutliers,
// per Iglewicz & Hoaglin.
const DefaultDMADThreshold = 3.5

// Chauvenet applies Chauvenet's criterion to values under a Gaussian of the
// given mean and standard deviation. A value is an outlier when the expected
// count of samples at least as deviant, erfc(|x-mean|/(stddev*sqrt2)),
// falls below 1/(2*N*tightness), where N counts the non-NaN samples and
// tightness multiplies the classical 1/(2N) cut. Tightness values <= 0 fall
// back to 1. NaN values are never outliers. A zero or non-finite stddev
// yields no outliers at all.
func Chauvenet(values []float64, mean, stddev, tightness float64) []bool {
	out := make([]bool, len(values))
	if stddev <= 0 || math.IsNaN(stddev) || math.IsInf(stddev, 0) || math.IsNaN(mean) {
		return out
	}
	if tightness <= 0 {
		tightness = 1
	}

	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			n++
		}
	}
	if n == 0 {
		return out
	}

	limit := 1 / (2 * float64(n) * tightness)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		tail := math.Erfc(math.Abs(v-mean) / (stddev * math.Sqrt2))
		out[i] = tail < limit
	}
	return out
}

// DoubleMAD returns a per-value deviation score using separate median
// absolute deviations for values above and below the median. Values equal
// to the median score zero, as do values on a side whose MAD is zero
// (constant arrays therefore produce no outliers). NaN values score NaN.
func DoubleMAD(values []float64) []float64 {
	scores := make([]float64, len(values))
	med := Median(values)
	if math.IsNaN(med) {
		for i := range scores {
			scores[i] = math.NaN()
		}
		return scores
	}

	var lower, upper []float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v <= med {
			lower = append(lower, math.Abs(v-med))
		}
		if v >= med {
			upper = append(upper, math.Abs(v-med))
		}
	}
	lowerMAD := Median(lower)
	upperMAD := Median(upper)

	for i, v := range values {
		if math.IsNaN(v) {
			scores[i] = math.NaN()
			continue
		}
		mad := upperMAD
		if v <= med {
			mad = lowerMAD
		}
		if mad == 0 || math.IsNaN(mad) {
			scores[i] = 0
			continue
		}
		scores[i] = math.Abs(v-med) / mad
	}
	return scores
}

// DoubleMADOutliers flags values whose DoubleMAD score exceeds threshold.
// A threshold <= 0 falls back to DefaultDMADThreshold. NaN scores are
// never outliers.
func DoubleMADOutliers(values []float64, threshold float64) []bool {
	if threshold <= 0 {
		threshold = DefaultDMADThreshold
	}
	scores := DoubleMAD(values)
	out := make([]bool, len(scores))
	for i, s := range scores {
		out[i] = !math.IsNaN(s) && s > threshold
	}
	return out
}

// RMSMatrix computes the per-cell root mean square of each profile in grid,
// restricted to bins where offPulse is true. Profiles that are identically
// zero yield NaN when nanMask is set, marking the cell as unusable rather
// than quiet. A mask shorter than the profile only covers the bins it has.
func RMSMatrix(grid [][][]float64, offPulse []bool, nanMask bool) [][]float64 {
	out := make([][]float64, len(grid))
	for i, row := range grid {
		out[i] = make([]float64, len(row))
		for j, profile := range row {
			if nanMask && allZero(profile) {
				out[i][j] = math.NaN()
				continue
			}
			out[i][j] = RMS(profile, offPulse)
		}
	}
	return out
}

// RMS computes sqrt(mean(x^2)) over the bins selected by mask. A nil mask
// selects every bin. Returns 0 when no bins are selected.
func RMS(profile []float64, mask []bool) float64 {
	var sum float64
	var n int
	for i, v := range profile {
		if mask != nil && (i >= len(mask) || !mask[i]) {
			continue
		}
		sum += v * v
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}

// NormalizeToMax divides a sequence by its maximum absolute value and
// returns the result as a new slice. An all-zero input is returned as an
// unchanged copy so degenerate profiles pass through without a divide by
// zero.
func NormalizeToMax(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)

	var peak float64
	for _, v := range xs {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

// MeanStddevNaN calculates the mean and sample standard deviation of a
// slice, skipping NaN entries. Returns (0, 0) when no finite samples
// remain, matching an empty input.
func MeanStddevNaN(xs []float64) (mean, stddev float64) {
	clean := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, 0
	}
	mean = stat.Mean(clean, nil)
	if len(clean) > 1 {
		stddev = stat.StdDev(clean, nil)
	}
	return mean, stddev
}

// Median returns the median of the non-NaN entries, or NaN when none
// remain.
func Median(xs []float64) float64 {
	clean := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return math.NaN()
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 1 {
		return clean[mid]
	}
	return (clean[mid-1] + clean[mid]) / 2
}

// Flatten concatenates the rows of a matrix into a single slice in row
// major order.
func Flatten(m [][]float64) []float64 {
	var out []float64
	for _, row := range m {
		out = append(out, row...)
	}
	return out
}

// Reshape splits a flat slice into a rows x cols matrix in row major
// order. The slice length must be exactly rows*cols.
func Reshape(xs []float64, rows, cols int) [][]float64 {
	if len(xs) != rows*cols {
		return nil
	}
	out := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		out[i] = xs[i*cols : (i+1)*cols]
	}
	return out
}

// ReshapeBool is Reshape for boolean masks.
func ReshapeBool(xs []bool, rows, cols int) [][]bool {
	if len(xs) != rows*cols {
		return nil
	}
	out := make([][]bool, rows)
	for i := 0; i < rows; i++ {
		out[i] = xs[i*cols : (i+1)*cols]
	}
	return out
}

func allZero(xs []float64) bool {
	for _, v := range xs {
		if v != 0 {
			return false
		}
	}
	return true
}
