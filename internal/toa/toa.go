// Package toa estimates the time of arrival of an observed profile
// relative to a reference template, expressed as a phase-bin shift.
//
// The estimate is a two-stage search over the circular cross-correlation
// function (CCF) of template and profile: a coarse walk at a configurable
// stride finds the whole-bin peak, then a low-order polynomial fitted to
// the CCF in a window around that peak refines the shift to sub-bin
// precision. The CCF itself is computed in the frequency domain.
package toa

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// ErrFitFailed marks a profile whose shift could not be estimated: all-zero
// input, signal-to-noise below the configured gate, or a CCF peak the local
// polynomial fit cannot refine. Callers treat the cell as excised.
var ErrFitFailed = errors.New("toa: shift estimation failed")

// Options configures the estimator. The zero value selects the defaults.
type Options struct {
	// NLagsFit is the fit window half-width in bins around the coarse
	// CCF peak. Default 5.
	NLagsFit int
	// PolyOrder is the order of the polynomial fitted to the CCF peak.
	// Default 2.
	PolyOrder int
	// DPhi is the coarse search stride as a fraction of a rotation.
	// Strides finer than one bin walk every lag. Default 0.1.
	DPhi float64
	// SNRThreshold gates estimation: profiles below it fail. Default 0.
	SNRThreshold float64
}

func (o Options) withDefaults() Options {
	if o.NLagsFit <= 0 {
		o.NLagsFit = 5
	}
	if o.PolyOrder <= 0 {
		o.PolyOrder = 2
	}
	if o.DPhi <= 0 {
		o.DPhi = 0.1
	}
	return o
}

// Result carries the shift estimate and its companions.
type Result struct {
	// CCFShift is the whole-bin lag of the cross-correlation peak,
	// mapped into (-n/2, n/2].
	CCFShift float64
	// Shift is the refined sub-bin shift in bins.
	Shift float64
	// Amplitude is the fitted profile scale relative to the template.
	Amplitude float64
	// ShiftErr and AmplitudeErr are first-order uncertainty estimates
	// propagated from the off-pulse RMS.
	ShiftErr     float64
	AmplitudeErr float64
	// SNR is the estimated signal-to-noise of the profile.
	SNR float64
	// Rho is the normalised correlation coefficient at the peak.
	Rho float64
}

// Estimate computes the bin shift of profile relative to template. rms is
// the profile's off-pulse RMS, used for the SNR gate and the uncertainty
// estimates; a zero rms is accepted (noise-free input) and produces zero
// uncertainties.
func Estimate(template, profile []float64, rms float64, opts Options) (Result, error) {
	opts = opts.withDefaults()

	n := len(template)
	if n < 4 || len(profile) != n {
		return Result{}, fmt.Errorf("%w: template length %d, profile length %d", ErrFitFailed, n, len(profile))
	}
	if rms < 0 || math.IsNaN(rms) {
		return Result{}, fmt.Errorf("%w: invalid rms %v", ErrFitFailed, rms)
	}
	if allZero(profile) {
		return Result{}, fmt.Errorf("%w: all-zero profile", ErrFitFailed)
	}

	ccf := crossCorrelate(template, profile)

	// Coarse walk at the DPhi stride, then tighten to the exact lag.
	stride := int(opts.DPhi * float64(n))
	if stride < 1 {
		stride = 1
	}
	peak := argmaxStride(ccf, stride)
	peak = refineArgmax(ccf, peak, stride)

	tt := sumSquares(template)
	pp := sumSquares(profile)
	if tt == 0 {
		return Result{}, fmt.Errorf("%w: all-zero template", ErrFitFailed)
	}

	ccfPeak := ccf[peak]
	bhat := ccfPeak / tt
	snr := math.Inf(1)
	if rms > 0 {
		snr = bhat * math.Sqrt(tt) / rms
	}
	if snr < opts.SNRThreshold {
		return Result{}, fmt.Errorf("%w: snr %.3f below threshold %.3f", ErrFitFailed, snr, opts.SNRThreshold)
	}

	delta, curvature, err := refinePeak(ccf, peak, opts.NLagsFit, opts.PolyOrder)
	if err != nil {
		return Result{}, err
	}

	shift := signedLag(peak, n) + delta

	// First-order propagation of CCF noise through the quadratic peak:
	// the CCF noise floor is rms*sqrt(tt); the peak location responds to
	// it with gain 1/|curvature|.
	var shiftErr, ampErr float64
	if rms > 0 {
		shiftErr = rms * math.Sqrt(tt) / curvature
		ampErr = rms / math.Sqrt(tt)
	}

	rho := 0.0
	if pp > 0 {
		rho = ccfPeak / math.Sqrt(tt*pp)
	}

	return Result{
		CCFShift:     signedLag(peak, n),
		Shift:        shift,
		Amplitude:    bhat,
		ShiftErr:     shiftErr,
		AmplitudeErr: ampErr,
		SNR:          snr,
		Rho:          rho,
	}, nil
}

// crossCorrelate computes the circular cross-correlation
// ccf[k] = sum_i template[i] * profile[i+k mod n] via the frequency
// domain.
func crossCorrelate(template, profile []float64) []float64 {
	n := len(template)
	fft := fourier.NewFFT(n)

	tc := fft.Coefficients(nil, template)
	pc := fft.Coefficients(nil, profile)
	for i := range tc {
		tc[i] = cmplx.Conj(tc[i]) * pc[i]
	}

	ccf := fft.Sequence(nil, tc)
	for i := range ccf {
		ccf[i] /= float64(n)
	}
	return ccf
}

// refinePeak fits a polynomial of the given order to the CCF over
// lags peak-half..peak+half (circular) and returns the sub-bin offset of
// its stationary point together with the magnitude of the second
// derivative there. The offset must land inside the window and the peak
// must be concave, otherwise the fit fails.
func refinePeak(ccf []float64, peak, half, order int) (delta, curvature float64, err error) {
	n := len(ccf)
	window := 2*half + 1
	if window > n {
		half = (n - 1) / 2
		window = 2*half + 1
	}
	if window < order+1 {
		return 0, 0, fmt.Errorf("%w: fit window %d too small for order %d", ErrFitFailed, window, order)
	}

	a := mat.NewDense(window, order+1, nil)
	b := mat.NewVecDense(window, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		pow := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, pow)
			pow *= x
		}
		b.SetVec(i, ccf[mod(peak+i-half, n)])
	}

	coef := mat.NewVecDense(order+1, nil)
	if solveErr := coef.SolveVec(a, b); solveErr != nil {
		return 0, 0, fmt.Errorf("%w: polynomial solve: %v", ErrFitFailed, solveErr)
	}

	delta, second, err := stationaryPoint(coef.RawVector().Data, float64(half))
	if err != nil {
		return 0, 0, err
	}
	return delta, second, nil
}

// stationaryPoint locates the maximum of the fitted polynomial near zero.
// For order 2 it is the vertex in closed form; higher orders use Newton
// iterations on the derivative starting from the coarse peak.
func stationaryPoint(coef []float64, bound float64) (x, curvature float64, err error) {
	switch len(coef) {
	case 0, 1, 2:
		return 0, 0, fmt.Errorf("%w: degenerate polynomial", ErrFitFailed)
	case 3:
		c2 := coef[2]
		if c2 >= 0 {
			return 0, 0, fmt.Errorf("%w: CCF peak not concave", ErrFitFailed)
		}
		x = -coef[1] / (2 * c2)
		curvature = math.Abs(2 * c2)
	default:
		x = 0
		for iter := 0; iter < 50; iter++ {
			d1 := polyDeriv(coef, x, 1)
			d2 := polyDeriv(coef, x, 2)
			if d2 == 0 {
				return 0, 0, fmt.Errorf("%w: flat derivative in Newton refinement", ErrFitFailed)
			}
			step := d1 / d2
			x -= step
			if math.Abs(step) < 1e-10 {
				break
			}
		}
		d2 := polyDeriv(coef, x, 2)
		if d2 >= 0 {
			return 0, 0, fmt.Errorf("%w: CCF peak not concave", ErrFitFailed)
		}
		curvature = math.Abs(d2)
	}

	if math.IsNaN(x) || math.Abs(x) > bound {
		return 0, 0, fmt.Errorf("%w: refined shift %.3f outside fit window", ErrFitFailed, x)
	}
	return x, curvature, nil
}

// polyDeriv evaluates the k-th derivative of a polynomial with ascending
// coefficients at x.
func polyDeriv(coef []float64, x float64, k int) float64 {
	var sum float64
	for i := k; i < len(coef); i++ {
		c := coef[i]
		for j := 0; j < k; j++ {
			c *= float64(i - j)
		}
		sum += c * math.Pow(x, float64(i-k))
	}
	return sum
}

func argmaxStride(xs []float64, stride int) int {
	best, bestVal := 0, math.Inf(-1)
	for i := 0; i < len(xs); i += stride {
		if xs[i] > bestVal {
			best, bestVal = i, xs[i]
		}
	}
	return best
}

// refineArgmax walks every lag within one stride of the coarse peak to pin
// the exact whole-bin maximum.
func refineArgmax(xs []float64, coarse, stride int) int {
	n := len(xs)
	best, bestVal := coarse, xs[coarse]
	for off := -stride; off <= stride; off++ {
		i := mod(coarse+off, n)
		if xs[i] > bestVal {
			best, bestVal = i, xs[i]
		}
	}
	return best
}

// signedLag maps a circular lag index into (-n/2, n/2].
func signedLag(k, n int) float64 {
	if k > n/2 {
		return float64(k - n)
	}
	return float64(k)
}

func sumSquares(xs []float64) float64 {
	var sum float64
	for _, v := range xs {
		sum += v * v
	}
	return sum
}

func allZero(xs []float64) bool {
	for _, v := range xs {
		if v != 0 {
			return false
		}
	}
	return true
}

func mod(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
