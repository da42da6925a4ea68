package cull

import (
	"context"
	"fmt"

	"github.com/banshee-data/pulsar.cull/internal/archive"
	"github.com/banshee-data/pulsar.cull/internal/monitoring"
)

// Quality is the soft gate computed at load time from the observation's
// signal-to-noise ratio. A low-SN observation still constructs; batch
// callers decide whether to discard it.
type Quality int

const (
	// QualityOK means the observation cleared the signal-to-noise floor.
	QualityOK Quality = iota
	// QualityLowSN means the observation fell below the floor and is a
	// candidate for discard.
	QualityLowSN
)

func (q Quality) String() string {
	switch q {
	case QualityOK:
		return "ok"
	case QualityLowSN:
		return "low-sn"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Options configures a Culler. The zero value uses default tuning and no
// renderer.
type Options struct {
	Tuning   *Tuning
	Renderer Renderer
}

// Culler owns one observation's culling session: the archive, the
// reference template, and a cached weighted view of the data grid that is
// re-read from the archive after every weight mutation batch.
type Culler struct {
	ar       archive.Archive
	template []float64
	tuning   *Tuning
	renderer Renderer
	status   Quality

	// data is the read-through cache of the archive's weighted grid.
	// Never trust it across a mutation boundary; refresh re-reads it.
	data [][][]float64

	// excised marks every cell this session has zero-weighted. Once a
	// cell lands here it stays excluded; it is never re-flagged and
	// never un-rejected.
	excised [][]bool
}

// New loads an observation cube and template from disk and prepares a
// culling session. A missing observation or template file fails here,
// before any statistics run.
func New(path, templatePath string, opts Options) (*Culler, error) {
	ar, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	template, err := archive.LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	return NewFromArchive(ar, template, opts)
}

// NewFromArchive prepares a culling session over an already-open archive.
func NewFromArchive(ar archive.Archive, template []float64, opts Options) (*Culler, error) {
	if ar.NBin() != len(template) {
		return nil, fmt.Errorf("cull: template has %d bins, observation has %d", len(template), ar.NBin())
	}

	c := &Culler{
		ar:       ar,
		template: template,
		tuning:   opts.Tuning,
		renderer: opts.Renderer,
	}
	c.excised = newMask(ar.Nsubint(), ar.Nchan())

	if ar.SN() < c.tuning.GetSNFloor() {
		monitoring.Logf("signal/noise %.1f below floor %.1f; observation flagged for discard", ar.SN(), c.tuning.GetSNFloor())
		c.status = QualityLowSN
	}

	c.refresh()
	return c, nil
}

// Status reports the load-time quality gate.
func (c *Culler) Status() Quality { return c.status }

// SN returns the observation's signal-to-noise ratio.
func (c *Culler) SN() float64 { return c.ar.SN() }

// Frontend returns the receiver the observation was taken with.
func (c *Culler) Frontend() string { return c.ar.Frontend() }

// Data returns the current cached weighted grid.
func (c *Culler) Data() [][][]float64 { return c.data }

// Template returns the reference template profile.
func (c *Culler) Template() []float64 { return c.template }

// RejectRequest selects the criterion, iteration limit, and strategies
// for one rejection run.
type RejectRequest struct {
	Criterion  Criterion
	Iterations int
	Fourier    bool
	RMS        bool
	BinShift   bool
}

// StrategySummary reports one strategy's portion of a rejection run.
type StrategySummary struct {
	Strategy   string
	Iterations int
	Rejected   int
	Converged  bool
}

// RejectSummary reports a whole rejection run.
type RejectSummary struct {
	Passes        []StrategySummary
	TotalRejected int
}

// Reject runs each enabled strategy for up to req.Iterations passes, in
// the fixed order Fourier, RMS, bin shift. After every pass the returned
// mask is applied through the archive and the cached grid is re-read, so
// each subsequent pass (and each subsequent strategy) sees the cells
// already excised. A pass that rejects nothing completes its strategy
// early; the completion flag starts fresh for the next strategy.
func (c *Culler) Reject(ctx context.Context, req RejectRequest) (RejectSummary, error) {
	if err := req.Criterion.Validate(); err != nil {
		return RejectSummary{}, err
	}
	iterations := req.Iterations
	if iterations <= 0 {
		iterations = 1
	}

	var strategies []Strategy
	if req.Fourier {
		strategies = append(strategies, fourierStrategy{})
	}
	if req.RMS {
		strategies = append(strategies, rmsStrategy{})
	}
	if req.BinShift {
		strategies = append(strategies, binShiftStrategy{})
	}

	s := &state{
		template:  c.template,
		criterion: req.Criterion,
		tuning:    c.tuning,
		renderer:  c.renderer,
		excised:   c.excised,
	}

	var summary RejectSummary
	for _, strat := range strategies {
		monitoring.Logf("beginning %s data rejection...", strat.Name())

		pass := StrategySummary{Strategy: strat.Name()}
		for it := 0; it < iterations; it++ {
			s.data = c.data
			res, err := strat.Run(ctx, s)
			if err != nil {
				return summary, fmt.Errorf("cull: %s rejection: %w", strat.Name(), err)
			}
			pass.Iterations++
			pass.Rejected += res.Rejected

			if res.Rejected > 0 {
				if err := c.applyMask(res.Mask); err != nil {
					return summary, err
				}
				c.refresh()
			}
			if res.Clean {
				pass.Converged = true
				monitoring.Logf("%s data rejection complete after %d generations", strat.Name(), pass.Iterations)
				break
			}
		}
		if !pass.Converged {
			monitoring.Logf("%s data rejection used the full %d iterations", strat.Name(), iterations)
		}

		summary.Passes = append(summary.Passes, pass)
		summary.TotalRejected += pass.Rejected
	}

	return summary, nil
}

// applyMask zero-weights every cell the mask selects. Mutations go
// through the archive one cell at a time from this single goroutine.
func (c *Culler) applyMask(mask [][]bool) error {
	for i, row := range mask {
		for j, reject := range row {
			if !reject {
				continue
			}
			monitoring.Verbosef("setting the weight of (subint: %d, channel: %d) to 0", i, j)
			if err := c.ar.SetWeight(0, i, j); err != nil {
				return fmt.Errorf("cull: zero weight (%d, %d): %w", i, j, err)
			}
			c.excised[i][j] = true
		}
	}
	return nil
}

// refresh re-reads the weighted grid from the archive. Call after every
// mutation batch; the archive is the only authority on weights.
func (c *Culler) refresh() {
	c.data = c.ar.Data()
}
