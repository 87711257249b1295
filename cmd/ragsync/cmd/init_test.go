package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiao-925/ragsync/internal/config"
)

func TestInitCmd_WritesTemplate(t *testing.T) {
	t.Setenv("RAGSYNC_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	out, err := execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ragsync.yaml")

	// The template must load as a valid configuration.
	cfg, err := config.Load("ragsync.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
}

func TestInitCmd_RefusesToOverwrite(t *testing.T) {
	t.Setenv("RAGSYNC_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("ragsync.yaml", []byte("version: 1\n"), 0o644))

	_, err := execute(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitCmd_ForceOverwrites(t *testing.T) {
	t.Setenv("RAGSYNC_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	require.NoError(t, os.WriteFile("ragsync.yaml", []byte("version: 1\n"), 0o644))

	out, err := execute(t, "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ragsync.yaml")

	data, err := os.ReadFile("ragsync.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunking:")
}
