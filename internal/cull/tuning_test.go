package cull

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTuningDefaults(t *testing.T) {
	t.Parallel()

	var tn *Tuning // nil tuning must be fully usable
	assert.Equal(t, 3000.0, tn.GetSNFloor())
	assert.Equal(t, float64(DefaultTightness), tn.GetChauvenetTightness())
	assert.Equal(t, 3.5, tn.GetDMADThreshold())
	assert.Equal(t, DefaultMaskFraction, tn.GetMaskFraction())
	assert.Greater(t, tn.GetWorkers(), 0)

	opts := tn.TOAOptions()
	assert.Zero(t, opts.NLagsFit) // estimator applies its own defaults
}

func TestLoadTuning(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeTuning(t, `{"sn_floor": 500, "nlagsfit": 7}`)
		tn, err := LoadTuning(path)
		require.NoError(t, err)

		assert.Equal(t, 500.0, tn.GetSNFloor())
		assert.Equal(t, 7, tn.TOAOptions().NLagsFit)
		assert.Equal(t, float64(DefaultTightness), tn.GetChauvenetTightness())
	})

	t.Run("extension enforced", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadTuning(path)
		assert.Error(t, err)
	})

	t.Run("range validation", func(t *testing.T) {
		t.Parallel()
		for _, body := range []string{
			`{"mask_fraction": 1.5}`,
			`{"mask_fraction": 0}`,
			`{"chauvenet_tightness": -1}`,
			`{"dphi": 0}`,
			`{"nlagsfit": 0}`,
			`{"norder": 1}`,
			`{"workers": -2}`,
		} {
			_, err := LoadTuning(writeTuning(t, body))
			assert.Error(t, err, "body %s", body)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuning(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestTuningCriterion(t *testing.T) {
	t.Parallel()

	tightness := 2.0
	tn := &Tuning{ChauvenetTightness: &tightness}

	c, err := tn.Criterion("chauvenet")
	require.NoError(t, err)
	assert.Equal(t, CriterionChauvenet, c.Kind)
	assert.Equal(t, 2.0, c.Tightness)

	_, err = tn.Criterion("mad")
	assert.Error(t, err)
}
