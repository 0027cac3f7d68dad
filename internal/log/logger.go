package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// FormatConsole writes human-readable colored lines.
	FormatConsole = "console"
	// FormatJSON writes one JSON object per line.
	FormatJSON = "json"
)

// New builds the service logger writing to stdout.
// level is one of debug, info, warn, error; format is console or json.
func New(level, format string) *zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter builds a logger on w, tagged with the service name.
func NewWithWriter(w io.Writer, level, format string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := w
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("service", "troc-messaging").
		Logger()
	return &logger
}

// parseLevel accepts zerolog level names plus "warning"; anything else means info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
