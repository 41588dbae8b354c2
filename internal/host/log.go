package host

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/umbra-sim/umbra/internal/event"
	"github.com/umbra-sim/umbra/internal/prettylog"
)

// LogFormat selects how the simulator's log output is rendered.
type LogFormat string

const (
	LogRaw      LogFormat = "raw"
	LogIndented LogFormat = "indented"
	LogPretty   LogFormat = "pretty"
)

// NewLogOutput wraps out for the requested format. The pretty format renders
// each JSON record as a colored console line; coloring is disabled off-tty.
func NewLogOutput(out io.Writer, format LogFormat) io.Writer {
	switch format {
	case LogRaw:
		return out
	case LogIndented:
		return &indentedWriter{out: out}
	case LogPretty:
		return prettylog.NewWriter(out)
	default:
		panic(format)
	}
}

// NewLogger builds the logger hosts log through: JSON records with source
// locations, timestamped from the simulated clock instead of the wall clock.
func NewLogger(out io.Writer, level slog.Level, clock *event.Clock) *slog.Logger {
	ho := slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}
	return slog.New(clockHandler{
		inner: slog.NewJSONHandler(out, &ho),
		clock: clock,
	})
}

// clockHandler rewrites every record's timestamp to simulated time.
type clockHandler struct {
	inner slog.Handler
	clock *event.Clock
}

func (h clockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h clockHandler) Handle(ctx context.Context, r slog.Record) error {
	r.Time = time.Unix(0, h.clock.Now())
	return h.inner.Handle(ctx, r)
}

func (h clockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return clockHandler{inner: h.inner.WithAttrs(attrs), clock: h.clock}
}

func (h clockHandler) WithGroup(name string) slog.Handler {
	return clockHandler{inner: h.inner.WithGroup(name), clock: h.clock}
}

type indentedWriter struct {
	out io.Writer
}

func (w *indentedWriter) Write(p []byte) (n int, err error) {
	if len(p) > 0 && p[len(p)-1] == '\n' {
		var x any
		if err := json.Unmarshal(p, &x); err == nil {
			o := json.NewEncoder(w.out)
			o.SetIndent("", "  ")
			o.Encode(x)
			return len(p), nil
		}
	}
	w.out.Write(p)
	return len(p), nil
}
