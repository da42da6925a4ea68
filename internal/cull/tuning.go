package cull

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/banshee-data/pulsar.cull/internal/stats"
	"github.com/banshee-data/pulsar.cull/internal/toa"
)

// Tuning holds the knobs of a culling run. Fields are pointers so a
// partial JSON config only overrides what it names; the Get* methods
// supply defaults for the rest.
type Tuning struct {
	// Observation gating
	SNFloor *float64 `json:"sn_floor,omitempty"`

	// Criterion parameters
	ChauvenetTightness *float64 `json:"chauvenet_tightness,omitempty"`
	DMADThreshold      *float64 `json:"dmad_threshold,omitempty"`

	// Template mask
	MaskFraction *float64 `json:"mask_fraction,omitempty"`

	// Bin-shift estimator
	NLagsFit     *int     `json:"nlagsfit,omitempty"`
	PolyOrder    *int     `json:"norder,omitempty"`
	DPhi         *float64 `json:"dphi,omitempty"`
	SNRThreshold *float64 `json:"snr_threshold,omitempty"`

	// Cell sweep parallelism (0 = one worker per CPU)
	Workers *int `json:"workers,omitempty"`
}

// LoadTuning loads a Tuning from a JSON file. Partial configs are safe:
// omitted fields keep their defaults.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("cull: tuning file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("cull: read tuning file: %w", err)
	}

	t := &Tuning{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("cull: parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("cull: invalid tuning: %w", err)
	}
	return t, nil
}

// Validate checks ranges of any fields that are set.
func (t *Tuning) Validate() error {
	if t.MaskFraction != nil && (*t.MaskFraction <= 0 || *t.MaskFraction >= 1) {
		return fmt.Errorf("mask_fraction must be in (0, 1), got %v", *t.MaskFraction)
	}
	if t.ChauvenetTightness != nil && *t.ChauvenetTightness <= 0 {
		return fmt.Errorf("chauvenet_tightness must be positive, got %v", *t.ChauvenetTightness)
	}
	if t.DMADThreshold != nil && *t.DMADThreshold <= 0 {
		return fmt.Errorf("dmad_threshold must be positive, got %v", *t.DMADThreshold)
	}
	if t.DPhi != nil && (*t.DPhi <= 0 || *t.DPhi > 1) {
		return fmt.Errorf("dphi must be in (0, 1], got %v", *t.DPhi)
	}
	if t.NLagsFit != nil && *t.NLagsFit < 1 {
		return fmt.Errorf("nlagsfit must be at least 1, got %d", *t.NLagsFit)
	}
	if t.PolyOrder != nil && *t.PolyOrder < 2 {
		return fmt.Errorf("norder must be at least 2, got %d", *t.PolyOrder)
	}
	if t.Workers != nil && *t.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *t.Workers)
	}
	return nil
}

// GetSNFloor returns the signal-to-noise floor below which an observation
// is flagged for discard.
func (t *Tuning) GetSNFloor() float64 {
	if t == nil || t.SNFloor == nil {
		return 3000
	}
	return *t.SNFloor
}

// GetChauvenetTightness returns the Chauvenet tightness multiplier.
func (t *Tuning) GetChauvenetTightness() float64 {
	if t == nil || t.ChauvenetTightness == nil {
		return DefaultTightness
	}
	return *t.ChauvenetTightness
}

// GetDMADThreshold returns the DoubleMAD score cut.
func (t *Tuning) GetDMADThreshold() float64 {
	if t == nil || t.DMADThreshold == nil {
		return stats.DefaultDMADThreshold
	}
	return *t.DMADThreshold
}

// GetMaskFraction returns the on-pulse decision fraction.
func (t *Tuning) GetMaskFraction() float64 {
	if t == nil || t.MaskFraction == nil {
		return DefaultMaskFraction
	}
	return *t.MaskFraction
}

// GetWorkers returns the cell sweep worker count.
func (t *Tuning) GetWorkers() int {
	if t == nil || t.Workers == nil || *t.Workers == 0 {
		return runtime.NumCPU()
	}
	return *t.Workers
}

// TOAOptions assembles the bin-shift estimator options.
func (t *Tuning) TOAOptions() toa.Options {
	opts := toa.Options{}
	if t == nil {
		return opts
	}
	if t.NLagsFit != nil {
		opts.NLagsFit = *t.NLagsFit
	}
	if t.PolyOrder != nil {
		opts.PolyOrder = *t.PolyOrder
	}
	if t.DPhi != nil {
		opts.DPhi = *t.DPhi
	}
	if t.SNRThreshold != nil {
		opts.SNRThreshold = *t.SNRThreshold
	}
	return opts
}

// Criterion builds the criterion for the given name using the tuned
// parameters.
func (t *Tuning) Criterion(name string) (Criterion, error) {
	c, err := ParseCriterion(name)
	if err != nil {
		return Criterion{}, err
	}
	c.Tightness = t.GetChauvenetTightness()
	c.Threshold = t.GetDMADThreshold()
	return c, nil
}
