// Package fit wraps nonlinear least-squares fitting of the parametric peak
// model used to compare profile spectra against the template spectrum.
//
// The model is a three-parameter Lorentzian:
//
//	f(x) = amp * (w/2)^2 / ((x - center)^2 + (w/2)^2)
//
// Width carries sign information deliberately: the fitter does not take
// |w|, because downstream rejection treats a negative fitted width as a
// shape mismatch. The model is even in w, so the sign is an optimiser
// artifact rather than a physical quantity: it goes negative only when
// the search overshoots through zero, which is the instability the
// rejection rule keys on.
package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/maorshutman/lm"
)

// ErrFitFailed marks a per-cell fit that did not converge or produced
// non-finite parameters. Callers recover by treating the cell as excised.
var ErrFitFailed = errors.New("fit: peak fit failed")

// PeakParams holds the free parameters of the peak model.
type PeakParams struct {
	Amp    float64
	Width  float64
	Center float64
}

// Eval evaluates the peak model at x.
func (p PeakParams) Eval(x float64) float64 {
	hw := p.Width / 2
	return p.Amp * hw * hw / ((x-p.Center)*(x-p.Center) + hw*hw)
}

// Curve evaluates the model over a slice of abscissae.
func (p PeakParams) Curve(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Eval(x)
	}
	return out
}

const (
	maxIterations = 200
	objectiveTol  = 1e-16
)

// FitPeak fits the peak model to (xs, ys) by Levenberg-Marquardt starting
// from guess. It returns ErrFitFailed (wrapped) when the optimiser reports
// an error or converges on non-finite parameters.
func FitPeak(xs, ys []float64, guess PeakParams) (PeakParams, error) {
	if len(xs) != len(ys) || len(xs) < 3 {
		return PeakParams{}, fmt.Errorf("%w: need at least 3 samples, got %d", ErrFitFailed, len(xs))
	}

	residuals := func(dst, params []float64) {
		p := PeakParams{Amp: params[0], Width: params[1], Center: params[2]}
		for i := range xs {
			dst[i] = p.Eval(xs[i]) - ys[i]
		}
	}
	jacobian := lm.NumJac{Func: residuals}

	problem := lm.LMProblem{
		Dim:        3,
		Size:       len(xs),
		Func:       residuals,
		Jac:        jacobian.Jac,
		InitParams: []float64{guess.Amp, guess.Width, guess.Center},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	results, err := lm.LM(problem, &lm.Settings{Iterations: maxIterations, ObjectiveTol: objectiveTol})
	if err != nil {
		return PeakParams{}, fmt.Errorf("%w: %v", ErrFitFailed, err)
	}

	fitted := PeakParams{Amp: results.X[0], Width: results.X[1], Center: results.X[2]}
	for _, v := range results.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return PeakParams{}, fmt.Errorf("%w: non-finite parameter %v", ErrFitFailed, results.X)
		}
	}
	return fitted, nil
}
