package cull

import (
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/pulsar.cull/internal/stats"
)

// ErrUnknownCriterion is returned for criterion names other than
// "chauvenet" and "dmad".
var ErrUnknownCriterion = errors.New("cull: unknown rejection criterion")

// CriterionKind selects the outlier test applied to a rejection statistic.
type CriterionKind int

const (
	// CriterionChauvenet applies Chauvenet's criterion with a tightness
	// multiplier.
	CriterionChauvenet CriterionKind = iota
	// CriterionDoubleMAD applies the double median absolute deviation
	// score with a fixed threshold.
	CriterionDoubleMAD
)

// Criterion is the closed set of rejection criteria. The zero value is
// Chauvenet with default tightness.
type Criterion struct {
	Kind CriterionKind
	// Tightness multiplies the Chauvenet 1/(2N) cut. Zero selects the
	// default of 3.
	Tightness float64
	// Threshold is the DoubleMAD score cut. Zero selects
	// stats.DefaultDMADThreshold.
	Threshold float64
}

// DefaultTightness is the Chauvenet tightness used when none is given.
const DefaultTightness = 3

// ParseCriterion maps a criterion name from config or CLI to a Criterion.
// Recognised names are "chauvenet" and "dmad" (case-insensitive).
func ParseCriterion(name string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chauvenet":
		return Criterion{Kind: CriterionChauvenet}, nil
	case "dmad":
		return Criterion{Kind: CriterionDoubleMAD}, nil
	default:
		return Criterion{}, fmt.Errorf("%w: %q (allowed: chauvenet, dmad)", ErrUnknownCriterion, name)
	}
}

// Validate rejects criteria outside the closed variant set.
func (c Criterion) Validate() error {
	switch c.Kind {
	case CriterionChauvenet, CriterionDoubleMAD:
		return nil
	default:
		return fmt.Errorf("%w: kind %d", ErrUnknownCriterion, c.Kind)
	}
}

func (c Criterion) String() string {
	switch c.Kind {
	case CriterionChauvenet:
		return "chauvenet"
	case CriterionDoubleMAD:
		return "dmad"
	default:
		return fmt.Sprintf("criterion(%d)", c.Kind)
	}
}

// Apply evaluates the criterion over a flattened statistic and reshapes
// the outlier mask back to rows x cols. NaN statistics are excluded from
// the distribution moments and never flagged.
func (c Criterion) Apply(flat []float64, rows, cols int) ([][]bool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(flat) != rows*cols {
		return nil, fmt.Errorf("cull: statistic length %d does not match %dx%d grid", len(flat), rows, cols)
	}

	var mask []bool
	switch c.Kind {
	case CriterionChauvenet:
		tightness := c.Tightness
		if tightness <= 0 {
			tightness = DefaultTightness
		}
		mean, stddev := stats.MeanStddevNaN(flat)
		mask = stats.Chauvenet(flat, mean, stddev, tightness)
	case CriterionDoubleMAD:
		mask = stats.DoubleMADOutliers(flat, c.Threshold)
	}
	return stats.ReshapeBool(mask, rows, cols), nil
}
