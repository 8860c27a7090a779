// Package config loads branchstat settings from a YAML file, BRANCHSTAT_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/branchstat/pkg/branches"
	"github.com/Sumatoshi-tech/branchstat/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrEmptyTarget      = errors.New("target branch must not be empty")
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidCacheSize = errors.New("diff cache size must not be negative")
	ErrInvalidFormat    = errors.New("unknown output format")
	ErrInvalidLogLevel  = errors.New("unknown log level")
	ErrEmptyRemote      = errors.New("remote name must not be empty")
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatJSON, FormatYAML}

// Config holds all branchstat settings.
type Config struct {
	Target          string        `mapstructure:"target"`
	Remotes         []string      `mapstructure:"remotes"`
	Base            BaseConfig    `mapstructure:"base"`
	Workers         int           `mapstructure:"workers"`
	DiffCacheSize   int           `mapstructure:"diff_cache_size"`
	DiffCacheFiles  int64         `mapstructure:"diff_cache_files"`
	VirtualBranches VirtualConfig `mapstructure:"virtual_branches"`
	Output          OutputConfig  `mapstructure:"output"`
	Log             LogConfig     `mapstructure:"log"`
}

// BaseConfig selects how real branches find their base.
type BaseConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// VirtualConfig locates the virtual branch state file. An empty or relative
// Path is resolved against the repository's .git directory.
type VirtualConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrEmptyTarget
	}

	for _, remote := range c.Remotes {
		if strings.TrimSpace(remote) == "" {
			return ErrEmptyRemote
		}
	}

	if _, err := branches.ParseBaseStrategy(c.Base.Strategy); err != nil {
		return err
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if c.DiffCacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.DiffCacheSize)
	}

	if c.DiffCacheFiles < 0 {
		return fmt.Errorf("%w: diff_cache_files %d", ErrInvalidCacheSize, c.DiffCacheFiles)
	}

	if !slices.Contains(Formats, strings.ToLower(c.Output.Format)) {
		return fmt.Errorf("%w: %q (want one of %s)", ErrInvalidFormat, c.Output.Format, strings.Join(Formats, ", "))
	}

	if _, err := observability.ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	return nil
}

// Strategy returns the parsed base strategy. Call after Validate.
func (c *Config) Strategy() branches.BaseStrategy {
	strategy, err := branches.ParseBaseStrategy(c.Base.Strategy)
	if err != nil {
		return branches.DefaultBaseStrategy
	}

	return strategy
}

// LogLevel returns the parsed log level, Info when unset or invalid.
func (c *Config) LogLevel() slog.Level {
	level, err := observability.ParseLogLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}

	return level
}

// Engine returns the assembler configuration.
func (c *Config) Engine() branches.Config {
	return branches.Config{
		Target:   c.Target,
		Strategy: c.Strategy(),
		Remotes:  slices.Clone(c.Remotes),
		Workers:  c.Workers,
	}
}
