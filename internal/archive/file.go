package archive

import (
	"encoding/json"
	"fmt"
	"os"
)

// cubeFile is the on-disk JSON layout of an observation cube.
type cubeFile struct {
	Frontend string        `json:"frontend"`
	SN       float64       `json:"sn"`
	Cube     [][][]float64 `json:"cube"`
	Weights  [][]float64   `json:"weights,omitempty"`
}

// FileArchive is a MemArchive loaded from a JSON cube file. Save writes
// the current weights back to the same path.
type FileArchive struct {
	*MemArchive
	path string
}

// Open loads an observation cube from path. A missing file surfaces the
// underlying os.ErrNotExist so batch callers can distinguish absent files
// from corrupt ones.
func Open(path string) (*FileArchive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}

	var cf cubeFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("archive: parse %s: %w", path, err)
	}

	mem, err := NewMemArchive(cf.Cube, cf.SN, cf.Frontend)
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", path, err)
	}

	if cf.Weights != nil {
		if len(cf.Weights) != mem.Nsubint() {
			return nil, fmt.Errorf("archive: %s: weight matrix has %d rows, cube has %d", path, len(cf.Weights), mem.Nsubint())
		}
		for i, row := range cf.Weights {
			if len(row) != mem.Nchan() {
				return nil, fmt.Errorf("archive: %s: weight row %d has %d entries, cube has %d channels", path, i, len(row), mem.Nchan())
			}
			for j, w := range row {
				mem.weights[i][j] = w
			}
		}
	}

	return &FileArchive{MemArchive: mem, path: path}, nil
}

// Path returns the file the archive was loaded from.
func (a *FileArchive) Path() string { return a.path }

// Save writes the cube and its current weights back to the source file.
func (a *FileArchive) Save() error {
	a.mu.Lock()
	cf := cubeFile{
		Frontend: a.frontend,
		SN:       a.sn,
		Cube:     a.cube,
		Weights:  a.weights,
	}
	a.mu.Unlock()

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal %s: %w", a.path, err)
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return fmt.Errorf("archive: save %s: %w", a.path, err)
	}
	return nil
}
