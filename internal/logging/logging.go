// Package logging builds the tool's slog logger. Records go to the
// configured sink (a file, syslog, or nowhere); error records are copied to
// stderr as well so a caller that ignores the log still sees failures.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Syslog selects the local syslog daemon as the log sink.
const Syslog = "syslog"

// ParseLevel maps the configured level name to a slog level. WARNING and
// CRITICAL are accepted as aliases for WARN and ERROR.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL", "":
		return slog.LevelError, nil
	default:
		return slog.LevelError, fmt.Errorf("unknown log level %q", name)
	}
}

// New returns a logger writing to sink at level and error records to stderr.
// The returned closer releases the sink. A sink or level that cannot be used
// is reported on stderr and replaced by the fallback rather than failing.
func New(sink, level string, stderr io.Writer) (*slog.Logger, io.Closer) {
	errOut := NewStderr(stderr)

	lvl, err := ParseLevel(level)
	if err != nil {
		errOut.Error("error setting log level", "error", err)
	}

	w, closer, err := open(sink)
	if err != nil {
		errOut.Error("unable to initialize log", "error", err)
		w, closer = io.Discard, nopCloser{}
	}

	h := slog.DiscardHandler
	if w != io.Discard {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	log := slog.New(tee{primary: h, errors: errOut.Handler()})
	return log.With("run", uuid.NewString()), closer
}

// NewStderr returns a logger that prints bare error messages to w. It is
// used before the configuration, and therefore the real sink, is known.
func NewStderr(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelError,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			if len(groups) == 0 && a.Key == "run" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func open(sink string) (io.Writer, io.Closer, error) {
	switch {
	case sink == "":
		return io.Discard, nopCloser{}, nil
	case strings.EqualFold(sink, Syslog):
		w, err := syslog.New(syslog.LOG_USER|syslog.LOG_INFO, "tdquotes")
		if err != nil {
			return nil, nil, fmt.Errorf("open syslog: %w", err)
		}
		return w, w, nil
	default:
		f, err := os.OpenFile(sink, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, f, nil
	}
}

// tee sends every record to primary and error records to errors too.
type tee struct {
	primary slog.Handler
	errors  slog.Handler
}

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	return t.primary.Enabled(ctx, l) || t.errors.Enabled(ctx, l)
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if t.primary.Enabled(ctx, r.Level) {
		errs = append(errs, t.primary.Handle(ctx, r.Clone()))
	}
	if t.errors.Enabled(ctx, r.Level) {
		errs = append(errs, t.errors.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return tee{primary: t.primary.WithAttrs(attrs), errors: t.errors.WithAttrs(attrs)}
}

func (t tee) WithGroup(name string) slog.Handler {
	return tee{primary: t.primary.WithGroup(name), errors: t.errors.WithGroup(name)}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
