package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	t.Run("directory lists json sorted", func(t *testing.T) {
		t.Parallel()
		files, err := observationFiles(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.json"),
			filepath.Join(dir, "b.json"),
		}, files)
	})

	t.Run("single file passes through", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "a.json")
		files, err := observationFiles(path)
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)
	})

	t.Run("missing path errors", func(t *testing.T) {
		t.Parallel()
		_, err := observationFiles(filepath.Join(dir, "absent"))
		assert.Error(t, err)
	})
}

func TestSplitNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"ROACH", "MARK4"}, splitNames("ROACH, MARK4"))
	assert.Equal(t, []string{"ROACH"}, splitNames("ROACH"))
	assert.Nil(t, splitNames(""))
	assert.Nil(t, splitNames(" , "))
}
