package cull

import (
	"context"

	"github.com/banshee-data/pulsar.cull/internal/stats"
)

// rmsStrategy rejects cells whose off-pulse RMS is an outlier against the
// rest of the grid. Zero-weighted cells read as all-zero profiles and
// carry NaN through the statistic, keeping them out of the distribution
// moments.
type rmsStrategy struct{}

func (rmsStrategy) Name() string { return "rms" }

func (rmsStrategy) Run(ctx context.Context, s *state) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}
	nsubint, nchan := s.dims()

	offPulse := OffPulseMask(s.template, s.tuning.GetMaskFraction())
	rms := stats.RMSMatrix(s.data, offPulse, true)
	flat := stats.Flatten(rms)

	if s.renderer != nil {
		mean, stddev := stats.MeanStddevNaN(flat)
		s.renderer.Histogram("rms", flat, mean, stddev)
	}

	mask, err := s.criterion.Apply(flat, nsubint, nchan)
	if err != nil {
		return RunResult{}, err
	}
	if s.renderer != nil {
		s.renderer.Mask("rms", mask)
	}
	return maskResult(mask), nil
}
