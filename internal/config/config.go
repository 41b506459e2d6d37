package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"rotsprite/internal/backend"
	"rotsprite/internal/convert"
	"rotsprite/internal/logging"
)

// Config holds archive locations, export settings and logging.
type Config struct {
	// Paths
	BaseDir   string   `toml:"base_dir"`
	Archives  []string `toml:"archives"`
	OutputDir string   `toml:"output_dir"`

	// Rendering
	Backend string `toml:"backend"`
	Format  string `toml:"format"`
	Workers int    `toml:"workers"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// Load reads a TOML config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	BaseDir   string
	Archives  []string
	OutputDir string
	Backend   string
	Format    string
	Workers   int
	LogLevel  string
}

// Resolve applies flag overrides and fills empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.BaseDir != "" {
		c.BaseDir = flags.BaseDir
	}
	if len(flags.Archives) > 0 {
		c.Archives = flags.Archives
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Backend != "" {
		c.Backend = flags.Backend
	}
	if flags.Format != "" {
		c.Format = flags.Format
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	if c.BaseDir == "" {
		c.BaseDir, _ = os.Getwd()
	}

	// Resolve relative paths against base dir
	for i, a := range c.Archives {
		if !filepath.IsAbs(a) {
			c.Archives[i] = filepath.Join(c.BaseDir, a)
		}
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.BaseDir, "rotations")
	} else if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(c.BaseDir, c.OutputDir)
	}

	if c.Backend == "" {
		c.Backend = backend.Raster.String()
	}
	if c.Format == "" {
		c.Format = convert.FormatPNG.String()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "auto"
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Archives) == 0 {
		errs = append(errs, errors.New("archives: at least one archive directory is required"))
	}
	if _, err := backend.ParseKind(c.Backend); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if f := convert.ParseFormat(c.Format); !f.External() {
		errs = append(errs, fmt.Errorf("format: %q is not an export format (png, webp, tga)", c.Format))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unsupported value %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
