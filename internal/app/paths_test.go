package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths_ResolvesTheProjectLayout(t *testing.T) {
	p := NewPaths("/data/yeast")
	root := filepath.Join("/data/yeast", ".pepvalid")
	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Join(root, "pepvalid.db"), p.DB)
	assert.Equal(t, filepath.Join(root, "report"), p.ReportDir)
	assert.Equal(t, filepath.Join(root, "training"), p.TrainingDir)
}

func TestEnsureDirs_IsIdempotent(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.Root, p.ReportDir, p.TrainingDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
