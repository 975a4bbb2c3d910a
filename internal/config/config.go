// Package config loads per-repository build settings from an optional
// .codeatlas.yml at the repository root.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/codeatlas/codeatlas/internal/lang"
)

// FileName is the per-repository config file looked up at the root.
const FileName = ".codeatlas.yml"

// DefaultMaxDepth bounds entity nesting; deeper definitions are
// skipped with a warning.
const DefaultMaxDepth = 50

// Config holds build settings. The zero value plus Normalize gives the
// defaults, so a missing config file is not an error.
type Config struct {
	// Exclude lists gitignore-style patterns applied on top of the
	// built-in directory and extension exclusions.
	Exclude []string `yaml:"exclude"`

	// Languages restricts extraction to the named languages. Empty
	// means all supported languages.
	Languages []string `yaml:"languages"`

	// SkipData drops Data entities (fields, constants, parameters)
	// during extraction to shrink the graph.
	SkipData bool `yaml:"skip_data"`

	// MaxDepth caps containment nesting depth.
	MaxDepth int `yaml:"max_depth"`

	// OutputDir overrides where the graph store is written, relative
	// to the repository root.
	OutputDir string `yaml:"output_dir"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{MaxDepth: DefaultMaxDepth, OutputDir: ".codeatlas"}
}

// Load reads the config file from repoPath, falling back to defaults
// when it does not exist. Unknown languages in the allow-list are an
// error so typos fail loudly instead of silently skipping a language.
func Load(repoPath string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(filepath.Join(repoPath, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.OutputDir == "" {
		c.OutputDir = ".codeatlas"
	}
	for _, name := range c.Languages {
		if !lang.Valid(lang.Language(name)) {
			return fmt.Errorf("%s: unknown language %q", FileName, name)
		}
	}
	return nil
}

// LanguageEnabled reports whether l passes the allow-list.
func (c *Config) LanguageEnabled(l lang.Language) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, name := range c.Languages {
		if lang.Language(name) == l {
			return true
		}
	}
	return false
}
