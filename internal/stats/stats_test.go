package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChauvenet(t *testing.T) {
	t.Parallel()

	t.Run("flags the gross outlier only", func(t *testing.T) {
		t.Parallel()
		values := []float64{9.8, 10.1, 10.0, 9.9, 10.2, 10.0, 9.9, 10.1, 10.0, 55.0}
		mean, stddev := MeanStddevNaN(values)

		mask := Chauvenet(values, mean, stddev, 1)
		require.Len(t, mask, len(values))
		for i := 0; i < len(values)-1; i++ {
			assert.False(t, mask[i], "index %d flagged", i)
		}
		assert.True(t, mask[len(values)-1])
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		t.Parallel()
		values := []float64{1, 2, 3, 4, 100}
		a := Chauvenet(values, 22, 43, 3)
		b := Chauvenet(values, 22, 43, 3)
		assert.Equal(t, a, b)
	})

	t.Run("matches the classical erfc form", func(t *testing.T) {
		t.Parallel()
		// Single sample at k sigma: outlier iff erfc(k/sqrt2) < 1/(2N).
		values := make([]float64, 100)
		values[0] = 5 // 5 sigma with mean 0, stddev 1
		mask := Chauvenet(values, 0, 1, 1)
		assert.True(t, mask[0])
		assert.False(t, mask[1])

		// Tightness 3 shrinks the limit; a mild deviation survives.
		values[0] = 3
		loose := Chauvenet(values, 0, 1, 1)
		tight := Chauvenet(values, 0, 1, 3)
		assert.True(t, loose[0])
		assert.False(t, tight[0])
	})

	t.Run("NaN values are never outliers", func(t *testing.T) {
		t.Parallel()
		values := []float64{0, 0.1, math.NaN(), 80}
		mask := Chauvenet(values, 0, 0.5, 1)
		assert.False(t, mask[2])
		assert.True(t, mask[3])
	})

	t.Run("zero stddev yields no outliers", func(t *testing.T) {
		t.Parallel()
		values := []float64{1, 1, 1, 50}
		mask := Chauvenet(values, 1, 0, 1)
		assert.Equal(t, []bool{false, false, false, false}, mask)
	})
}

func TestDoubleMAD(t *testing.T) {
	t.Parallel()

	t.Run("constant array produces zero scores", func(t *testing.T) {
		t.Parallel()
		scores := DoubleMAD([]float64{4, 4, 4, 4, 4})
		for i, s := range scores {
			assert.Zero(t, s, "index %d", i)
		}
		mask := DoubleMADOutliers([]float64{4, 4, 4, 4, 4}, 0)
		for i, m := range mask {
			assert.False(t, m, "index %d", i)
		}
	})

	t.Run("scores grow with asymmetric deviation", func(t *testing.T) {
		t.Parallel()
		values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 1000}
		scores := DoubleMAD(values)
		require.Len(t, scores, len(values))
		assert.Greater(t, scores[len(scores)-1], DefaultDMADThreshold)

		mask := DoubleMADOutliers(values, 0)
		assert.True(t, mask[len(mask)-1])
		assert.False(t, mask[0])
	})

	t.Run("NaN propagates to score but never flags", func(t *testing.T) {
		t.Parallel()
		values := []float64{1, 2, math.NaN(), 3}
		scores := DoubleMAD(values)
		assert.True(t, math.IsNaN(scores[2]))
		mask := DoubleMADOutliers(values, 0)
		assert.False(t, mask[2])
	})
}

func TestRMSMatrix(t *testing.T) {
	t.Parallel()

	grid := [][][]float64{
		{
			{1, 1, 1, 1},
			{0, 0, 0, 0},
		},
		{
			{3, 4, 0, 0},
			{2, 2, 2, 2},
		},
	}
	offPulse := []bool{true, true, false, false}

	t.Run("nan mask marks all-zero profiles", func(t *testing.T) {
		t.Parallel()
		m := RMSMatrix(grid, offPulse, true)
		require.Len(t, m, 2)
		assert.InDelta(t, 1.0, m[0][0], 1e-12)
		assert.True(t, math.IsNaN(m[0][1]))
		assert.InDelta(t, math.Sqrt((9.0+16.0)/2.0), m[1][0], 1e-12)
		assert.InDelta(t, 2.0, m[1][1], 1e-12)
	})

	t.Run("without nan mask zero profiles read zero", func(t *testing.T) {
		t.Parallel()
		m := RMSMatrix(grid, offPulse, false)
		assert.Zero(t, m[0][1])
	})

	t.Run("nil mask uses every bin", func(t *testing.T) {
		t.Parallel()
		assert.InDelta(t, math.Sqrt(2.5), RMS([]float64{1, 2}, nil), 1e-12)
	})
}

func TestNormalizeToMax(t *testing.T) {
	t.Parallel()

	t.Run("scales peak to one", func(t *testing.T) {
		t.Parallel()
		out := NormalizeToMax([]float64{1, -4, 2})
		assert.InDelta(t, 0.25, out[0], 1e-12)
		assert.InDelta(t, -1.0, out[1], 1e-12)
		assert.InDelta(t, 0.5, out[2], 1e-12)
	})

	t.Run("all-zero input returned unchanged", func(t *testing.T) {
		t.Parallel()
		in := []float64{0, 0, 0}
		out := NormalizeToMax(in)
		assert.Equal(t, []float64{0, 0, 0}, out)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		t.Parallel()
		in := []float64{2, 4}
		_ = NormalizeToMax(in)
		assert.Equal(t, []float64{2, 4}, in)
	})
}

func TestMeanStddevNaN(t *testing.T) {
	t.Parallel()

	mean, stddev := MeanStddevNaN([]float64{1, math.NaN(), 3})
	assert.InDelta(t, 2.0, mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, stddev, 1e-12)

	mean, stddev = MeanStddevNaN([]float64{math.NaN()})
	assert.Zero(t, mean)
	assert.Zero(t, stddev)
}

func TestMedian(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, Median([]float64{3, 1, 2}), 1e-12)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 2, 3}), 1e-12)
	assert.InDelta(t, 2.0, Median([]float64{3, math.NaN(), 1, 2}), 1e-12)
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestFlattenReshape(t *testing.T) {
	t.Parallel()

	m := [][]float64{{1, 2, 3}, {4, 5, 6}}
	flat := Flatten(m)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat)

	back := Reshape(flat, 2, 3)
	assert.Equal(t, m, back)
	assert.Nil(t, Reshape(flat, 2, 2))

	mask := ReshapeBool([]bool{true, false, false, true}, 2, 2)
	assert.Equal(t, [][]bool{{true, false}, {false, true}}, mask)
}
