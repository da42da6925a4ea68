package cull

import (
	"context"
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/banshee-data/pulsar.cull/internal/fit"
	"github.com/banshee-data/pulsar.cull/internal/stats"
)

// fourierStrategy compares the shape of each profile's magnitude spectrum
// against the template's. Both spectra are peak-normalised and centred,
// then fitted with the same three-parameter peak model. A cell is flagged
// when its fitted width parameter comes out negative.
//
// The negative-width rule is inherited behaviour, not a validated
// spectral-distance test: it catches fits that invert the peak model on
// noise-dominated spectra, and nothing subtler than that.
type fourierStrategy struct{}

// fitPeak is swappable in tests to force specific fit outcomes.
var fitPeak = fit.FitPeak

func (fourierStrategy) Name() string { return "fourier" }

func (fourierStrategy) Run(ctx context.Context, s *state) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	nsubint, nchan := s.dims()
	nbin := len(s.template)

	guess := fit.PeakParams{Amp: 1, Width: float64(nbin) / 8, Center: float64(nbin) / 2}
	xs := binIndices(nbin)

	tempSpec := magnitudeSpectrum(s.template)
	tempParams, err := fitPeak(xs, tempSpec, guess)
	if err != nil {
		return RunResult{}, fmt.Errorf("cull: template spectrum fit: %w", err)
	}
	if s.renderer != nil {
		s.renderer.Curve("fourier-template", tempSpec, stats.NormalizeToMax(tempParams.Curve(xs)))
	}

	mask := newMask(nsubint, nchan)
	workers := s.tuning.GetWorkers()
	err = forEachCell(ctx, nsubint, nchan, workers, func(i, j int) {
		if s.excised[i][j] || allZeroSlice(s.data[i][j]) {
			// Zero spectrum; treated as already excluded, not
			// re-flagged.
			return
		}
		spec := magnitudeSpectrum(s.data[i][j])
		params, fitErr := fitPeak(xs, spec, guess)
		if fitErr != nil {
			if errors.Is(fitErr, fit.ErrFitFailed) {
				mask[i][j] = true
			}
			return
		}
		if params.Width < 0 {
			mask[i][j] = true
		}
	})
	if err != nil {
		return RunResult{}, err
	}

	if s.renderer != nil {
		s.renderer.Mask("fourier", mask)
	}
	return maskResult(mask), nil
}

// magnitudeSpectrum returns the centred, peak-normalised magnitude
// spectrum of a profile: |FFT| scaled to unit peak, with the zero
// frequency bin shifted to the middle.
func magnitudeSpectrum(profile []float64) []float64 {
	n := len(profile)
	cfft := fourier.NewCmplxFFT(n)

	in := make([]complex128, n)
	for i, v := range profile {
		in[i] = complex(v, 0)
	}
	coeff := cfft.Coefficients(nil, in)

	mag := make([]float64, n)
	for i, c := range coeff {
		mag[i] = cmplx.Abs(c)
	}
	return fftShift(stats.NormalizeToMax(mag))
}

// fftShift rotates a spectrum so the zero-frequency bin sits at n/2.
func fftShift(xs []float64) []float64 {
	n := len(xs)
	half := (n + 1) / 2
	out := make([]float64, 0, n)
	out = append(out, xs[half:]...)
	out = append(out, xs[:half]...)
	return out
}

func binIndices(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func allZeroSlice(xs []float64) bool {
	for _, v := range xs {
		if v != 0 {
			return false
		}
	}
	return true
}
