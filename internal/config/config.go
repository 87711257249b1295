// Package config loads and validates ragsync configuration.
//
// Precedence: built-in defaults, then the YAML file, then environment
// variables (RAGSYNC_*).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete ragsync configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Source    SourceConfig    `yaml:"source" json:"source"`
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Chunking  ChunkingConfig  `yaml:"chunking" json:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SourceConfig configures the git source connector.
type SourceConfig struct {
	// BaseURL is the git host prefix (default: https://github.com).
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token authenticates clone/fetch. Overridden by GITHUB_TOKEN.
	Token string `yaml:"token" json:"token"`
	// CloneDepth limits history depth on first clone (default: 1).
	CloneDepth int `yaml:"clone_depth" json:"clone_depth"`
	// Timeout bounds each git invocation.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PathsConfig selects which checkout files become documents.
type PathsConfig struct {
	// IncludeExts lists file extensions to ingest (default: .md, .txt, .rst).
	IncludeExts []string `yaml:"include_exts" json:"include_exts"`
	// Exclude lists glob patterns skipped during discovery.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// MaxFileSize is the largest file considered, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// EmbeddingConfig configures the embedder.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
}

// RetryConfig configures the bounded retry policy used for
// vector-ID-after-write lookups and per-file journal updates.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	Step         time.Duration `yaml:"step" json:"step"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".ragsync")
	return &Config{
		Version: 1,
		DataDir: dataDir,
		Source: SourceConfig{
			BaseURL:    "https://github.com",
			CloneDepth: 1,
			Timeout:    5 * time.Minute,
		},
		Paths: PathsConfig{
			IncludeExts: []string{".md", ".txt", ".rst"},
			Exclude:     []string{".git/**", "node_modules/**", "vendor/**"},
			MaxFileSize: 10 * 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Dimensions: 256,
			CacheSize:  1000,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			Step:         200 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, applying defaults and env overrides.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RAGSYNC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Source.Token = v
	}
	if v := os.Getenv("RAGSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RAGSYNC_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("RAGSYNC_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Retry.MaxAttempts = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// JournalPath returns the location of the journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.json")
}

// WorkDir returns the directory holding repository checkouts.
func (c *Config) WorkDir() string {
	return filepath.Join(c.DataDir, "checkouts")
}

// VectorDir returns the directory holding vector store files.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}
