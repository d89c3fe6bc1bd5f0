// Package config loads and validates engine configuration from YAML,
// with environment variable overrides under the COMMONPLACE_ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/commonplacehq/commonplace/internal/errors"
)

// Config is the complete engine configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Cache    CacheConfig    `yaml:"cache"`
	Queue    QueueConfig    `yaml:"queue"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PathsConfig locates the persistent stores.
type PathsConfig struct {
	// DataDir is the root directory for the index database and file store.
	DataDir string `yaml:"data_dir"`
}

// ChunkingConfig selects a chunking preset and the threshold above which
// documents are chunked instead of indexed whole.
type ChunkingConfig struct {
	// Preset is one of: default, aggressive, conservative.
	Preset string `yaml:"preset"`
	// ThresholdWords is the word count above which a document is chunked.
	ThresholdWords int `yaml:"threshold_words"`
}

// CacheConfig bounds the orchestrator's query cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// QueueConfig tunes the background indexing queue.
type QueueConfig struct {
	// Workers is the number of indexing workers.
	Workers int `yaml:"workers"`
	// BufferSize is the job channel depth before producers block.
	BufferSize int `yaml:"buffer_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// Default returns the default configuration rooted at dataDir.
// An empty dataDir resolves to ~/.commonplace.
func Default(dataDir string) Config {
	if dataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dataDir = filepath.Join(home, ".commonplace")
		} else {
			dataDir = filepath.Join(os.TempDir(), ".commonplace")
		}
	}
	return Config{
		Paths:    PathsConfig{DataDir: dataDir},
		Chunking: ChunkingConfig{Preset: "default", ThresholdWords: 1000},
		Cache:    CacheConfig{MaxEntries: 50, TTL: 5 * time.Minute},
		Queue:    QueueConfig{Workers: 1, BufferSize: 64},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path, layering file values over defaults
// and environment overrides over both. A missing file is not an error;
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default("")

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return cfg, errors.Wrap(errors.ErrCodeConfigNotFound, "read config", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.Wrap(errors.ErrCodeConfigInvalid, "parse config", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	// A file that clears data_dir means "use the default location".
	if cfg.Paths.DataDir == "" {
		cfg.Paths.DataDir = Default("").Paths.DataDir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides layers COMMONPLACE_* environment variables on top.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COMMONPLACE_DATA_DIR"); v != "" {
		cfg.Paths.DataDir = v
	}
	if v := os.Getenv("COMMONPLACE_CHUNK_PRESET"); v != "" {
		cfg.Chunking.Preset = v
	}
	if v := os.Getenv("COMMONPLACE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COMMONPLACE_QUEUE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Queue.Workers = n
		}
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.Paths.DataDir == "" {
		return errors.New(errors.ErrCodeConfigInvalid, "paths.data_dir must not be empty", nil)
	}
	if c.Chunking.ThresholdWords <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid, "chunking.threshold_words must be positive, got %d", c.Chunking.ThresholdWords)
	}
	switch c.Chunking.Preset {
	case "default", "aggressive", "conservative":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid, "unknown chunking preset %q", c.Chunking.Preset)
	}
	if c.Cache.MaxEntries <= 0 || c.Cache.TTL <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "cache.max_entries and cache.ttl must be positive", nil)
	}
	if c.Queue.Workers <= 0 || c.Queue.BufferSize <= 0 {
		return errors.New(errors.ErrCodeConfigInvalid, "queue.workers and queue.buffer_size must be positive", nil)
	}
	return nil
}

// DatabasePath returns the path of the index database.
func (c Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "index.db")
}

// FileStorePath returns the root directory of the flat-file store.
func (c Config) FileStorePath() string {
	return filepath.Join(c.Paths.DataDir, "content")
}

// String renders the config for debug logging.
func (c Config) String() string {
	return fmt.Sprintf("data_dir=%s preset=%s threshold=%d workers=%d",
		c.Paths.DataDir, c.Chunking.Preset, c.Chunking.ThresholdWords, c.Queue.Workers)
}
