package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"rotsprite/internal/archive"
	"rotsprite/internal/backend"
	"rotsprite/internal/config"
	"rotsprite/internal/engine"
	"rotsprite/internal/logging"
)

type commandContext struct {
	configPath string
	flags      config.Flags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	logger  *slog.Logger

	engineOnce sync.Once
	engine     *engine.Engine
	engineErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var cfg config.Config
		if path := strings.TrimSpace(c.configPath); path != "" {
			loaded, err := config.Load(path)
			if err != nil {
				c.configErr = err
				return
			}
			cfg = loaded
		}
		cfg.Resolve(c.flags)
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid configuration: %w", err)
			return
		}
		c.config = &cfg
	})
	return c.config, c.configErr
}

// log returns the CLI logger. Commands that skip config loading still get
// one built from the flags.
func (c *commandContext) log() *slog.Logger {
	c.logOnce.Do(func() {
		opts := logging.Options{Level: c.flags.LogLevel, Output: os.Stderr}
		if c.config != nil {
			opts.Level = c.config.LogLevel
			opts.Format = c.config.LogFormat
		}
		l, err := logging.New(opts)
		if err != nil {
			l = logging.Nop()
		}
		c.logger = l
	})
	return c.logger
}

func (c *commandContext) backendKind() (backend.Kind, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return 0, err
	}
	return backend.ParseKind(cfg.Backend)
}

// ensureEngine mounts every configured archive in order and loads the
// sprite pivots they define.
func (c *commandContext) ensureEngine() (*engine.Engine, error) {
	c.engineOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.engineErr = err
			return
		}
		log := c.log()
		set := archive.NewSet()
		for _, dir := range cfg.Archives {
			a, err := archive.LoadDir(dir)
			if err != nil {
				c.engineErr = err
				return
			}
			idx := set.Mount(a)
			log.Debug("archive mounted",
				slog.String("path", dir),
				slog.Int("archive", int(idx)),
				slog.Int("resources", a.Len()))
		}
		e := engine.New(set, engine.Options{Logger: log})
		if err := e.LoadSpriteInfo(); err != nil {
			log.Warn("sprite info incomplete", slog.String("error", err.Error()))
		}
		c.engine = e
	})
	return c.engine, c.engineErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
