package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeInput(); err != nil {
		return err
	}
	c.normalizeFeatures()
	c.normalizeEngine()
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	if c.Analysis.TopValues <= 0 {
		c.Analysis.TopValues = defaultAnalysisTopValue
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeInput() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		if value, ok := os.LookupEnv("FPMATCH_INPUT"); ok {
			c.Input.Path = strings.TrimSpace(value)
		}
	}
	var err error
	if c.Input.Path, err = expandPath(strings.TrimSpace(c.Input.Path)); err != nil {
		return fmt.Errorf("input.path: %w", err)
	}
	c.Input.TimestampColumn = strings.TrimSpace(c.Input.TimestampColumn)
	c.Input.PassthroughColumns = dedupe(c.Input.PassthroughColumns)
	if c.Input.Delimiter == "" {
		c.Input.Delimiter = defaultDelimiter
	}
	if c.Input.Delimiter == `\t` {
		c.Input.Delimiter = "\t"
	}
	return nil
}

func (c *Config) normalizeFeatures() {
	c.Features.Anchor = strings.TrimSpace(c.Features.Anchor)
	c.Features.Reducers = trimAll(c.Features.Reducers)
	c.Features.Identifiers = trimAll(c.Features.Identifiers)
}

func (c *Config) normalizeEngine() {
	c.Engine.AnchorPolicy = lowerOr(c.Engine.AnchorPolicy, defaultAnchorPolicy)
	c.Engine.IDScheme = lowerOr(c.Engine.IDScheme, defaultIDScheme)
	c.Engine.Encoding = lowerOr(c.Engine.Encoding, defaultEncoding)
	c.Engine.TraceAnchorValue = strings.TrimSpace(c.Engine.TraceAnchorValue)
}

func (c *Config) normalizeOutput() error {
	var err error
	if strings.TrimSpace(c.Output.ResultsDB) == "" {
		c.Output.ResultsDB = filepath.Join(c.Paths.DataDir, defaultResultsDBName)
	}
	if c.Output.ResultsDB, err = expandPath(c.Output.ResultsDB); err != nil {
		return fmt.Errorf("output.results_db: %w", err)
	}
	if c.Output.CSVPath, err = expandPath(strings.TrimSpace(c.Output.CSVPath)); err != nil {
		return fmt.Errorf("output.csv_path: %w", err)
	}
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
}

func lowerOr(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}

// trimAll trims entries and drops blanks while keeping order.
func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range trimAll(values) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
