package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Input describes where events come from and how they are ordered.
type Input struct {
	Path               string   `toml:"path"`
	TimestampColumn    string   `toml:"timestamp_column"`
	PassthroughColumns []string `toml:"passthrough_columns"`
	Delimiter          string   `toml:"delimiter"`
}

// Features assigns input columns to matching roles. With Discover set, roles
// are derived from column-name prefixes instead.
type Features struct {
	Anchor      string   `toml:"anchor"`
	Reducers    []string `toml:"reducers"`
	Identifiers []string `toml:"identifiers"`
	Discover    bool     `toml:"discover"`
}

// Engine contains identity resolution policies.
type Engine struct {
	// AnchorPolicy is "drift" (stored anchor follows the latest event) or
	// "pinned" (first anchor kept forever).
	AnchorPolicy string `toml:"anchor_policy"`
	// IDScheme is "uuid" (random keys) or "stable" (derived from creation order).
	IDScheme string `toml:"id_scheme"`
	// Encoding is "batch" (dictionaries built over the whole input) or "lazy"
	// (codes assigned on first sight).
	Encoding string `toml:"encoding"`
	// TraceAnchorValue enables debug tracing for events carrying this raw anchor.
	TraceAnchorValue string `toml:"trace_anchor_value"`
}

// Output contains result destinations.
type Output struct {
	ResultsDB string `toml:"results_db"`
	CSVPath   string `toml:"csv_path"`
}

// Analysis controls the dataset characteristics report.
type Analysis struct {
	Enabled   bool `toml:"enabled"`
	TopValues int  `toml:"top_values"`
}

// Metrics controls Prometheus textfile export.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for fpmatch.
//
// Configuration sections:
//   - Paths: data and log directories
//   - Input: event source, ordering column, passthrough columns
//   - Features: anchor, reducer, and identification roles
//   - Engine: anchor policy, identity keys, encoding mode, tracing
//   - Output: results database and optional CSV export
//   - Analysis: dataset characteristics report
//   - Metrics: Prometheus textfile export
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Input    Input    `toml:"input"`
	Features Features `toml:"features"`
	Engine   Engine   `toml:"engine"`
	Output   Output   `toml:"output"`
	Analysis Analysis `toml:"analysis"`
	Metrics  Metrics  `toml:"metrics"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Output.ResultsDB)}
	if strings.TrimSpace(c.Output.CSVPath) != "" {
		dirs = append(dirs, filepath.Dir(c.Output.CSVPath))
	}
	if strings.TrimSpace(c.Metrics.Textfile) != "" {
		dirs = append(dirs, filepath.Dir(c.Metrics.Textfile))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFile returns the path of the persistent log file.
func (c *Config) LogFile() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "fpmatch.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}
