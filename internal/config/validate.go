package config

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Validate ensures the configuration is usable for a run.
func (c *Config) Validate() error {
	if err := c.validateFeatures(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return fmt.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateFeatures() error {
	if c.Features.Discover {
		return nil
	}
	if c.Features.Anchor == "" && len(c.Features.Reducers) == 0 && len(c.Features.Identifiers) == 0 {
		// Nothing configured yet; commands that need roles report it.
		return nil
	}
	if c.Features.Anchor == "" {
		return errors.New("features.anchor must be set when roles are configured")
	}
	if len(c.Features.Identifiers) == 0 {
		return errors.New("features.identifiers must list at least one feature")
	}
	seen := map[string]string{c.Features.Anchor: "anchor"}
	check := func(role string, names []string) error {
		for _, name := range names {
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("features: %q is listed as both %s and %s", name, prev, role)
			}
			seen[name] = role
		}
		return nil
	}
	if err := check("reducer", c.Features.Reducers); err != nil {
		return err
	}
	return check("identifier", c.Features.Identifiers)
}

func (c *Config) validateEngine() error {
	switch c.Engine.AnchorPolicy {
	case "drift", "pinned":
	default:
		return fmt.Errorf("engine.anchor_policy: unsupported value %q (want drift or pinned)", c.Engine.AnchorPolicy)
	}
	switch c.Engine.IDScheme {
	case "uuid", "stable":
	default:
		return fmt.Errorf("engine.id_scheme: unsupported value %q (want uuid or stable)", c.Engine.IDScheme)
	}
	switch c.Engine.Encoding {
	case "batch", "lazy":
	default:
		return fmt.Errorf("engine.encoding: unsupported value %q (want batch or lazy)", c.Engine.Encoding)
	}
	return nil
}

// RolesConfigured reports whether feature roles are available, either
// explicitly or through discovery.
func (c *Config) RolesConfigured() bool {
	return c.Features.Discover || c.Features.Anchor != ""
}
