package llmwire

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a structured logger writing to w at the given level
// ("debug", "info", "warn", "error"; anything else means info). When w is
// nil it writes to stderr. pretty selects human-readable console output.
func NewLogger(level string, w io.Writer, pretty bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel converts a level name into a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func componentLogger(base zerolog.Logger, component string, provider ProviderID) zerolog.Logger {
	ctx := base.With().Str("component", component)
	if provider != "" {
		ctx = ctx.Str("provider", provider.String())
	}
	return ctx.Logger()
}
