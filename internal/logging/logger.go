// Package logging sets up the zerolog loggers handed to every lobbyd
// component. Every logger is built from the same resolved
// config.Config.Log settings, and each component's logger is tagged with
// a "component" field so log lines can be filtered by subsystem
// (registry, probe, legacy.register, newstyle.list, ...).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the base logger is built.
type Config struct {
	// Level is one of debug, info, warn, error. Unrecognized values
	// fall back to info.
	Level string
	// Pretty switches to a human-readable console writer; left off in
	// production so log output stays line-delimited JSON.
	Pretty bool
	// Output is where log lines are written. Defaults to os.Stdout.
	Output io.Writer
}

// DefaultConfig returns lobbyd's baseline logger config: info level,
// JSON output to stdout, no console coloring. Operators opt into Pretty
// for local/interactive runs via config.Config.Log.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stdout,
	}
}

var levelsByName = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// New builds the base logger every component logger derives from.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, ok := levelsByName[cfg.Level]
	if !ok {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if !ok && cfg.Level != "" {
		logger.Warn().Str("configured_level", cfg.Level).Msg("unrecognized log level, defaulting to info")
	}
	return logger
}

// NewWithComponent returns a child of New(cfg) scoped to one lobbyd
// subsystem, e.g. "registry" or "newstyle.register".
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
