package fit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitPeakRecoversParameters(t *testing.T) {
	t.Parallel()

	truth := PeakParams{Amp: 1.0, Width: 12.0, Center: 64.0}
	xs := make([]float64, 128)
	ys := make([]float64, 128)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = truth.Eval(xs[i])
	}

	got, err := FitPeak(xs, ys, PeakParams{Amp: 0.8, Width: 20, Center: 60})
	require.NoError(t, err)
	assert.InDelta(t, truth.Amp, got.Amp, 1e-3)
	assert.InDelta(t, truth.Width, got.Width, 1e-2)
	assert.InDelta(t, truth.Center, got.Center, 1e-2)
}

func TestFitPeakRejectsShortInput(t *testing.T) {
	t.Parallel()

	_, err := FitPeak([]float64{1, 2}, []float64{1, 2}, PeakParams{Amp: 1, Width: 1, Center: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFitFailed))

	_, err = FitPeak([]float64{1, 2, 3}, []float64{1, 2}, PeakParams{Amp: 1, Width: 1, Center: 1})
	assert.True(t, errors.Is(err, ErrFitFailed))
}

func TestPeakEval(t *testing.T) {
	t.Parallel()

	p := PeakParams{Amp: 2, Width: 4, Center: 10}
	// Peak value at the center, half maximum at center +/- width/2.
	assert.InDelta(t, 2.0, p.Eval(10), 1e-12)
	assert.InDelta(t, 1.0, p.Eval(12), 1e-12)
	assert.InDelta(t, 1.0, p.Eval(8), 1e-12)

	curve := p.Curve([]float64{8, 10, 12})
	require.Len(t, curve, 3)
	assert.InDelta(t, 2.0, curve[1], 1e-12)
}
