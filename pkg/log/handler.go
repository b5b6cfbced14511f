package log

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
)

// stackHandler re-emits records whose error attribute carries a
// cockroachdb/errors stack trace with that trace as its own attribute, so
// JSON log consumers see it as a field instead of buried in the error text.
type stackHandler struct {
	inner slog.Handler
}

// WithStackTraces wraps a slog handler with stack trace extraction.
func WithStackTraces(h slog.Handler) slog.Handler {
	return &stackHandler{inner: h}
}

func (h *stackHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	var logged error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		logged, _ = attr.Value.Any().(error)
		return false
	})
	if logged != nil {
		if trace := stacktraceOf(logged); trace != "" {
			r.AddAttrs(slog.String(StacktraceAttrKey, trace))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *stackHandler) WithGroup(g string) slog.Handler {
	return &stackHandler{inner: h.inner.WithGroup(g)}
}

// stacktraceOf joins the non-empty safe details recorded on the error;
// the first detail of a WithStack-wrapped error is its captured stack.
func stacktraceOf(err error) string {
	var parts []string
	for _, d := range errors.GetSafeDetails(err).SafeDetails {
		if d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "\n")
}
