package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "https://github.com", cfg.Source.BaseURL)
	assert.Equal(t, 1, cfg.Source.CloneDepth)
	assert.Contains(t, cfg.Paths.IncludeExts, ".md")
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	// Given: a config file overriding a few fields
	path := filepath.Join(t.TempDir(), "ragsync.yaml")
	content := `
data_dir: /tmp/ragsync-test
chunking:
  size: 500
  overlap: 50
embedding:
  dimensions: 128
source:
  clone_depth: 5
  timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: loading
	cfg, err := Load(path)

	// Then: overrides apply, untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ragsync-test", cfg.DataDir)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 128, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Source.CloneDepth)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("RAGSYNC_DATA_DIR", "/tmp/env-data")
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("RAGSYNC_EMBEDDING_DIMENSIONS", "64")
	t.Setenv("RAGSYNC_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env-data", cfg.DataDir)
	assert.Equal(t, "env-token", cfg.Source.Token)
	assert.Equal(t, 64, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"overlap >= size", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "journal.json"), cfg.JournalPath())
	assert.Equal(t, filepath.Join("/data", "checkouts"), cfg.WorkDir())
	assert.Equal(t, filepath.Join("/data", "vectors"), cfg.VectorDir())
}
