package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fpmatch/internal/config"
	"fpmatch/internal/logging"
	"fpmatch/internal/stage"
)

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
	json      bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = stage.Wrap(stage.ErrConfiguration, "cli", "load config", "configuration could not be loaded", err)
			return
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = strings.ToLower(level)
		}
		if format := strings.TrimSpace(c.flags.logFormat); format != "" {
			cfg.Logging.Format = strings.ToLower(format)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = stage.Wrap(stage.ErrConfiguration, "cli", "validate config", "configuration is invalid", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

// logger builds the structured logger for commands that run the workflow.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, stage.Wrap(stage.ErrConfiguration, "cli", "logger", "cannot initialise logging", err)
	}
	return logger, nil
}

func (c *commandContext) JSONMode() bool {
	return c.flags != nil && c.flags.json
}

// applyPath expands value into target when the flag was given.
func applyPath(target *string, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return stage.Wrap(stage.ErrConfiguration, "cli", "expand path", fmt.Sprintf("invalid path %q", value), err)
	}
	*target = expanded
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
