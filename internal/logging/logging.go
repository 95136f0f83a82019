// Package logging configures structured logging for wheelforge.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Canonical attribute keys.
const (
	KeyComponent  = "component"
	KeyStage      = "stage"
	KeyWheel      = "wheel"
	KeyDir        = "dir"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stderr is used. Format must be "text" or "json".
func Init(level slog.Level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// New returns a logger with a "component" attribute for module-scoped logging.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String(KeyComponent, component))
}

// Attribute helpers keep keys consistent across packages.

func Stage(name string) slog.Attr {
	return slog.String(KeyStage, name)
}

func Wheel(path string) slog.Attr {
	return slog.String(KeyWheel, path)
}

func Dir(path string) slog.Attr {
	return slog.String(KeyDir, path)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Int64(KeyDurationMS, d.Milliseconds())
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
