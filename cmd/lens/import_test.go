package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"jan.ofx", "feb.ofx", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0600))
	}

	t.Run("glob pattern", func(t *testing.T) {
		files, err := collectFiles([]string{filepath.Join(dir, "*.ofx")})
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("direct path", func(t *testing.T) {
		files, err := collectFiles([]string{filepath.Join(dir, "notes.txt")})
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "notes.txt")}, files)
	})

	t.Run("missing path is skipped", func(t *testing.T) {
		files, err := collectFiles([]string{filepath.Join(dir, "missing.qfx")})
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("mixed patterns", func(t *testing.T) {
		files, err := collectFiles([]string{
			filepath.Join(dir, "*.ofx"),
			filepath.Join(dir, "notes.txt"),
			filepath.Join(dir, "nope-*.qfx"),
		})
		require.NoError(t, err)
		assert.Len(t, files, 3)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := collectFiles([]string{"["})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid pattern")
	})
}
