package cull

import (
	"context"
	"sync"
)

// RunResult is the outcome of one strategy iteration over the grid.
type RunResult struct {
	// Mask marks the cells to zero-weight, indexed [subint][channel].
	Mask [][]bool
	// Rejected counts the cells Mask selects.
	Rejected int
	// Clean is true when Mask selects no cells; it drives the per
	// strategy completion flag.
	Clean bool
}

// Strategy computes a per-cell rejection statistic against the current
// grid state and emits the cells to excise. Strategies never mutate
// weights themselves; the orchestrator applies the mask and refreshes the
// grid.
type Strategy interface {
	Name() string
	Run(ctx context.Context, s *state) (RunResult, error)
}

// state is the orchestrator-owned view handed to each strategy run: the
// current weighted data grid, the reference template, and the tuned
// criterion. data is refreshed from the archive between runs so earlier
// excisions read as all-zero profiles.
type state struct {
	data      [][][]float64
	template  []float64
	criterion Criterion
	tuning    *Tuning
	renderer  Renderer

	// excised marks cells zero-weighted earlier in this session. A cell
	// in here is excluded from every statistic and never re-flagged; an
	// all-zero profile NOT in here is degenerate input still awaiting
	// excision.
	excised [][]bool
}

func (s *state) dims() (nsubint, nchan int) {
	nsubint = len(s.data)
	if nsubint > 0 {
		nchan = len(s.data[0])
	}
	return nsubint, nchan
}

// Renderer is an optional observer for histogram and mask output. It
// never influences rejection decisions; implementations swallow their own
// errors.
type Renderer interface {
	// Histogram receives the flattened statistic (NaN entries included)
	// with its fitted moments.
	Histogram(tag string, samples []float64, mean, stddev float64)
	// Mask receives the rejection mask a strategy produced.
	Mask(tag string, mask [][]bool)
	// Curve receives a sequence together with a fitted model of it.
	Curve(tag string, series, fitted []float64)
}

func newMask(nsubint, nchan int) [][]bool {
	mask := make([][]bool, nsubint)
	for i := range mask {
		mask[i] = make([]bool, nchan)
	}
	return mask
}

func countMask(mask [][]bool) int {
	var n int
	for _, row := range mask {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}

func orMask(dst, src [][]bool) {
	for i := range dst {
		for j := range dst[i] {
			dst[i][j] = dst[i][j] || src[i][j]
		}
	}
}

func maskResult(mask [][]bool) RunResult {
	n := countMask(mask)
	return RunResult{Mask: mask, Rejected: n, Clean: n == 0}
}

// forEachCell fans the (subint, channel) sweep out across workers. Each
// cell is visited exactly once; fn writes only to its own cell of any
// shared matrix, so no locking is needed. Cancellation is checked between
// cells and the first context error is returned after the pool drains.
func forEachCell(ctx context.Context, nsubint, nchan, workers int, fn func(subint, channel int)) error {
	if workers < 1 {
		workers = 1
	}
	type cell struct{ i, j int }

	cells := make(chan cell)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range cells {
				fn(c.i, c.j)
			}
		}()
	}

	var err error
feed:
	for i := 0; i < nsubint; i++ {
		for j := 0; j < nchan; j++ {
			select {
			case <-ctx.Done():
				err = ctx.Err()
				break feed
			case cells <- cell{i, j}:
			}
		}
	}
	close(cells)
	wg.Wait()
	return err
}
