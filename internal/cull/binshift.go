package cull

import (
	"context"
	"math"

	"github.com/banshee-data/pulsar.cull/internal/stats"
	"github.com/banshee-data/pulsar.cull/internal/toa"
)

// binShiftStrategy estimates each profile's arrival-time shift against the
// template and rejects cells whose shift or shift uncertainty is an
// outlier. Rejection always uses Chauvenet's criterion on both quantities
// independently, whatever criterion the other strategies run with, and the
// cut tightness comes from the session tuning, never from the per-run
// criterion. The final mask is the union of both cuts and of the cells
// whose estimation failed outright.
//
// The run is two-phase: estimation produces per-cell values or failures
// with no side effects, then the combined mask is handed back for the
// orchestrator to apply in one batch.
type binShiftStrategy struct{}

func (binShiftStrategy) Name() string { return "binshift" }

func (binShiftStrategy) Run(ctx context.Context, s *state) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	nsubint, nchan := s.dims()

	offPulse := OffPulseMask(s.template, s.tuning.GetMaskFraction())
	rms := stats.RMSMatrix(s.data, offPulse, true)
	opts := s.tuning.TOAOptions()

	shifts := make([][]float64, nsubint)
	shiftErrs := make([][]float64, nsubint)
	failures := newMask(nsubint, nchan)
	for i := range shifts {
		shifts[i] = make([]float64, nchan)
		shiftErrs[i] = make([]float64, nchan)
	}

	// Estimation phase. Cells are independent; each worker writes only
	// its own matrix entries.
	workers := s.tuning.GetWorkers()
	err := forEachCell(ctx, nsubint, nchan, workers, func(i, j int) {
		profile := s.data[i][j]
		if s.excised[i][j] {
			// Excised earlier in the session; stays out of the
			// moments and is never re-flagged.
			shifts[i][j] = math.NaN()
			shiftErrs[i][j] = math.NaN()
			return
		}
		if allZeroSlice(profile) {
			// Degenerate input the session has not excised yet.
			failures[i][j] = true
			shifts[i][j] = math.NaN()
			shiftErrs[i][j] = math.NaN()
			return
		}
		res, estErr := toa.Estimate(s.template, profile, rms[i][j], opts)
		if estErr != nil {
			failures[i][j] = true
			shifts[i][j] = math.NaN()
			shiftErrs[i][j] = math.NaN()
			return
		}
		shifts[i][j] = res.Shift
		shiftErrs[i][j] = res.ShiftErr
	})
	if err != nil {
		return RunResult{}, err
	}

	flatShift := stats.Flatten(shifts)
	flatErr := stats.Flatten(shiftErrs)
	meanS, stddevS := stats.MeanStddevNaN(flatShift)
	meanE, stddevE := stats.MeanStddevNaN(flatErr)

	if s.renderer != nil {
		s.renderer.Histogram("binshift", flatShift, meanS, stddevS)
		s.renderer.Histogram("binshift-error", flatErr, meanE, stddevE)
	}

	tightness := s.tuning.GetChauvenetTightness()
	maskS := stats.ReshapeBool(stats.Chauvenet(flatShift, meanS, stddevS, tightness), nsubint, nchan)
	maskE := stats.ReshapeBool(stats.Chauvenet(flatErr, meanE, stddevE, tightness), nsubint, nchan)

	mask := failures
	orMask(mask, maskS)
	orMask(mask, maskE)

	if s.renderer != nil {
		s.renderer.Mask("binshift", mask)
	}
	return maskResult(mask), nil
}
