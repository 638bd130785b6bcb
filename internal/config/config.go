// Package config loads CLI settings from a YAML file, a .env file and
// NORMTREE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NORMTREE_"

// Config holds the settings shared by all commands.
type Config struct {
	// PatternsDir holds extra numbering pattern catalog files. Empty means
	// the built-in catalog only.
	PatternsDir string `yaml:"patterns_dir"`
	// LibraryPath is the SQLite database of the document library.
	LibraryPath string `yaml:"library_path"`
	// Workers bounds parallel version generation.
	Workers int `yaml:"workers"`
	// Seed makes generated node ids and placeholder tokens reproducible.
	// Zero means random.
	Seed      uint64 `yaml:"seed"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LibraryPath: "normtree.db",
		Workers:     runtime.NumCPU(),
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error, and variables already set in the environment win over it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	str("PATTERNS_DIR", &c.PatternsDir)
	str("LIBRARY_PATH", &c.LibraryPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)

	if v, ok := lookup(EnvPrefix + "WORKERS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", EnvPrefix, v, err)
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEED %q: %w", EnvPrefix, v, err)
		}
		c.Seed = n
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.LibraryPath == "" {
		return fmt.Errorf("library path is required")
	}
	return nil
}
