// Package lnlog provides the structured logger for lnmgrd using zerolog.
// It supports a JSON output mode for log aggregation and a human-readable
// console mode for interactive use.
package lnlog

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	global zerolog.Logger
	once   sync.Once
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Console enables human-readable console output instead of JSON.
	Console bool
}

// DefaultConfig returns the production logger configuration: info level, JSON.
func DefaultConfig() *Config {
	return &Config{Level: "info", Console: false}
}

// DevelopmentConfig returns the interactive logger configuration: debug level,
// colorized console output.
func DevelopmentConfig() *Config {
	return &Config{Level: "debug", Console: true}
}

// Init initializes the global logger with the given configuration. Safe to
// call multiple times; only the first call takes effect.
func Init(cfg *Config) {
	once.Do(func() {
		if cfg == nil {
			cfg = DefaultConfig()
		}
		global = newLogger(cfg)
	})
}

func newLogger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Console {
		writer := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
		return zerolog.New(writer).Level(level).With().Timestamp().Caller().Logger()
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// L returns the global logger, lazily initializing it with DefaultConfig if
// Init was never called.
func L() zerolog.Logger {
	once.Do(func() {
		global = newLogger(DefaultConfig())
	})
	return global
}

// Named returns a child logger tagged with a "component" field, the pattern
// every lnmgr subsystem uses to identify its log lines.
func Named(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}
