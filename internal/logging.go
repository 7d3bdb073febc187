package internal

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var handler atomic.Pointer[slog.Handler]

func init() {
	SetupLogging(slog.LevelInfo, os.Stderr)
}

// SetupLogging configures the handler used by the telemetry created afterwards.
// Records are printed on out with tint and forwarded to the OpenTelemetry log bridge.
// Colors are enabled only when out is a terminal.
func SetupLogging(level slog.Leveler, out io.Writer) {
	noColor := true
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			noColor = false
			out = colorable.NewColorable(f)
		}
	}

	console := tint.NewHandler(out, &tint.Options{
		Level:      level,
		TimeFormat: time.StampMicro,
		NoColor:    noColor,
	})

	var h slog.Handler = &fanoutHandler{
		handlers: []slog.Handler{
			console,
			otelslog.NewHandler(instrumentationName),
		},
		level: level,
	}

	handler.Store(&h)
}

// ParseLevel converts a textual level (debug, info, warn, error) into a [slog.Level].
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func currentHandler() slog.Handler {
	return *handler.Load()
}

// fanoutHandler dispatches every record to all of its handlers.
type fanoutHandler struct {
	handlers []slog.Handler
	level    slog.Leveler
}

func (fh *fanoutHandler) Enabled(_ context.Context, lvl slog.Level) bool {
	return lvl >= fh.level.Level()
}

func (fh *fanoutHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error

	for _, h := range fh.handlers {
		if !h.Enabled(ctx, rec.Level) {
			continue
		}

		if err := h.Handle(ctx, rec.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (fh *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(fh.handlers))
	for _, h := range fh.handlers {
		handlers = append(handlers, h.WithAttrs(attrs))
	}

	return &fanoutHandler{handlers: handlers, level: fh.level}
}

func (fh *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(fh.handlers))
	for _, h := range fh.handlers {
		handlers = append(handlers, h.WithGroup(name))
	}

	return &fanoutHandler{handlers: handlers, level: fh.level}
}
