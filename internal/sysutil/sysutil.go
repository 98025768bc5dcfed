// Package sysutil holds process-level helpers shared by the server and the CLI.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the global zerolog level from names such as "debug" or
// "WARN". "warning" is accepted as an alias. Empty or unknown names fall back
// to info. The applied level is returned.
func SetLogLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl
}

// NewLogger builds a timestamped logger on w. Pretty selects the
// human-readable console format used in terminals.
func NewLogger(w io.Writer, pretty bool) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

var truthy = map[string]struct{}{"1": {}, "true": {}, "yes": {}, "y": {}, "on": {}}

// IsTruthy reports whether a flag-like value (env var, query param) means true.
func IsTruthy(v string) bool {
	_, ok := truthy[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// FirstNonEmpty returns the first value that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
