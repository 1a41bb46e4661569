package config

const (
	defaultConfigPath       = "~/.config/fpmatch/config.toml"
	projectConfigName       = "fpmatch.toml"
	defaultDataDir          = "~/.local/share/fpmatch"
	defaultLogDir           = "~/.local/share/fpmatch/logs"
	defaultResultsDBName    = "results.db"
	defaultTimestampColumn  = "timestamp"
	defaultDelimiter        = ","
	defaultAnchorPolicy     = "drift"
	defaultIDScheme         = "uuid"
	defaultEncoding         = "batch"
	defaultAnalysisTopValue = 10
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Input: Input{
			TimestampColumn: defaultTimestampColumn,
			Delimiter:       defaultDelimiter,
		},
		Engine: Engine{
			AnchorPolicy: defaultAnchorPolicy,
			IDScheme:     defaultIDScheme,
			Encoding:     defaultEncoding,
		},
		Analysis: Analysis{
			TopValues: defaultAnalysisTopValue,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
