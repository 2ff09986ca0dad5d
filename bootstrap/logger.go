package bootstrap

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/artpar/hfn/config"
	"github.com/rs/zerolog"
)

// SetupLogger builds the process logger and sets the global level.
// A nil out writes to stdout.
func SetupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	ApplyLogLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// ApplyLogLevel sets the global level. Unknown levels fall back to info.
func ApplyLogLevel(levelStr string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}
