// Package archive defines the observation backend consumed by the culling
// engine: a 2-D grid of pulse profiles indexed by (sub-integration,
// channel), with one mutable weight per cell.
//
// Two implementations are provided: FileArchive, backed by a JSON
// observation cube on disk, and MemArchive, an in-memory cube for tests
// and embedding. Weight mutations are immediately visible to the next
// Data call on either implementation.
package archive

import (
	"fmt"
	"sync"
)

// Archive is the observation backend contract. Data returns the weighted
// view of the cube: a cell whose weight is zero reads as an all-zero
// profile.
type Archive interface {
	Data() [][][]float64
	SN() float64
	Nsubint() int
	Nchan() int
	NBin() int
	Frontend() string
	SetWeight(value float64, subint, channel int) error
}

// MemArchive is an in-memory observation cube.
type MemArchive struct {
	mu       sync.Mutex
	frontend string
	sn       float64
	nbin     int
	cube     [][][]float64
	weights  [][]float64
}

// NewMemArchive builds an archive from a raw cube. All weights start at 1.
// The cube must be rectangular with a consistent bin count.
func NewMemArchive(cube [][][]float64, sn float64, frontend string) (*MemArchive, error) {
	nbin, err := validateCube(cube)
	if err != nil {
		return nil, err
	}
	weights := make([][]float64, len(cube))
	for i, row := range cube {
		weights[i] = make([]float64, len(row))
		for j := range row {
			weights[i][j] = 1
		}
	}
	return &MemArchive{
		frontend: frontend,
		sn:       sn,
		nbin:     nbin,
		cube:     cube,
		weights:  weights,
	}, nil
}

// Data returns a fresh weighted copy of the cube.
func (a *MemArchive) Data() [][][]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([][][]float64, len(a.cube))
	for i, row := range a.cube {
		out[i] = make([][]float64, len(row))
		for j, profile := range row {
			w := a.weights[i][j]
			p := make([]float64, len(profile))
			if w != 0 {
				for k, v := range profile {
					p[k] = v * w
				}
			}
			out[i][j] = p
		}
	}
	return out
}

// SN returns the observation's signal-to-noise ratio.
func (a *MemArchive) SN() float64 { return a.sn }

// Nsubint returns the number of sub-integrations (time axis).
func (a *MemArchive) Nsubint() int { return len(a.cube) }

// Nchan returns the number of frequency channels.
func (a *MemArchive) Nchan() int {
	if len(a.cube) == 0 {
		return 0
	}
	return len(a.cube[0])
}

// NBin returns the profile length in phase bins.
func (a *MemArchive) NBin() int { return a.nbin }

// Frontend returns the receiver name recorded for the observation.
func (a *MemArchive) Frontend() string { return a.frontend }

// SetWeight sets the weight of one (subint, channel) cell.
func (a *MemArchive) SetWeight(value float64, subint, channel int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if subint < 0 || subint >= len(a.weights) || channel < 0 || channel >= len(a.weights[subint]) {
		return fmt.Errorf("archive: weight index (%d, %d) out of range %dx%d",
			subint, channel, len(a.weights), a.Nchan())
	}
	a.weights[subint][channel] = value
	return nil
}

// Weights returns a copy of the weight matrix.
func (a *MemArchive) Weights() [][]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([][]float64, len(a.weights))
	for i, row := range a.weights {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

func validateCube(cube [][][]float64) (nbin int, err error) {
	if len(cube) == 0 || len(cube[0]) == 0 {
		return 0, fmt.Errorf("archive: empty observation cube")
	}
	nchan := len(cube[0])
	nbin = len(cube[0][0])
	if nbin == 0 {
		return 0, fmt.Errorf("archive: zero-length profiles")
	}
	for i, row := range cube {
		if len(row) != nchan {
			return 0, fmt.Errorf("archive: ragged cube: subint %d has %d channels, want %d", i, len(row), nchan)
		}
		for j, profile := range row {
			if len(profile) != nbin {
				return 0, fmt.Errorf("archive: ragged cube: cell (%d, %d) has %d bins, want %d", i, j, len(profile), nbin)
			}
		}
	}
	return nbin, nil
}
