// Package obslog initializes the process-wide zerolog logger, switching
// between pretty console output (a terminal) and structured JSON
// (anything else, e.g. a container's stdout shipped to a log collector).
//
// Grounded on internal/util/init.go (InitLogger, UpdateLogLevel).
package obslog

import (
	"os"
	"strings"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// Init builds the process logger. serviceName is attached as a field in
// the JSON (non-terminal) output so multiple fastsend processes sharing
// a log sink stay distinguishable.
func Init(serviceName string) *zerolog.Logger {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var logger zerolog.Logger
	if isTerminal() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Caller().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}

	return &logger
}

// UpdateLevel reads "logging.level" from ko and applies it globally,
// falling back to info on an empty or unrecognized value.
func UpdateLevel(ko *koanf.Koanf, logger *zerolog.Logger) {
	levelStr := ko.String("logging.level")
	if levelStr == "" {
		levelStr = "info"
	}

	var level zerolog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
		logger.Warn().
			Str("configured_level", levelStr).
			Str("using_level", "info").
			Msg("unknown log level, defaulting to info")
	}

	zerolog.SetGlobalLevel(level)
	logger.Info().Str("level", level.String()).Msg("log level set")
}

func isTerminal() bool {
	fileInfo, _ := os.Stdout.Stat()
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
