package oracli

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log output formats
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// NewLogger creates the root logger handed to connections, pools and, through
// zerolog.Ctx, to every statement
// Parameters:
// @output: where to write, os.Stdout when nil
// @level: zerolog level name (debug, info, warn, error), info when blank or unknown
// @format: LogFormatJSON or LogFormatConsole
func NewLogger(output io.Writer, level, format string) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}
	if strings.EqualFold(format, LogFormatConsole) {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("component", "oracli").Logger()
}
