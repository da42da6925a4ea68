package archive

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultTemplateExt is appended to template paths given without an
// extension.
const DefaultTemplateExt = ".json"

// LoadTemplate reads a reference template profile: a JSON array of
// amplitudes. Paths without an extension default to DefaultTemplateExt.
func LoadTemplate(path string) ([]float64, error) {
	path = AddExtension(path, DefaultTemplateExt)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open template %s: %w", path, err)
	}

	var template []float64
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("archive: parse template %s: %w", path, err)
	}
	if len(template) == 0 {
		return nil, fmt.Errorf("archive: template %s is empty", path)
	}
	for i, v := range template {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("archive: template %s has non-finite amplitude at bin %d", path, i)
		}
	}
	return template, nil
}

// AddExtension appends ext to a path that has no extension. Paths that
// already carry one are returned unchanged.
func AddExtension(path, ext string) string {
	if filepath.Ext(path) == "" {
		return path + ext
	}
	return path
}
