package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is a slog.Handler decorator that runs every string
// the record carries through a Redactor before the inner handler sees
// it. Wrapping the root handler means provider keys and pairing tokens
// stay out of the logs no matter which package logged them.
type RedactingHandler struct {
	inner    slog.Handler
	redactor *Redactor
	groups   []string
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps inner with redaction via redactor.
func NewRedactingHandler(inner slog.Handler, redactor *Redactor) *RedactingHandler {
	return &RedactingHandler{inner: inner, redactor: redactor}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle rebuilds the record with its message and attributes redacted
// and hands the clean copy to the inner handler.
func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, h.redactor.Redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs redacts the attributes up front and folds them into the
// inner handler, so they are scrubbed once rather than per record.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.redactAttr(a)
	}
	return &RedactingHandler{
		inner:    h.inner.WithAttrs(clean),
		redactor: h.redactor,
		groups:   h.groups,
	}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{
		inner:    h.inner.WithGroup(name),
		redactor: h.redactor,
		groups:   append(h.groups, name),
	}
}

// redactAttr scrubs one attribute, descending into groups. The value
// is resolved first so LogValuer, error, and Stringer types are seen
// in their final string form.
func (h *RedactingHandler) redactAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(h.redactor.Redact(a.Value.String()))
	case slog.KindGroup:
		members := a.Value.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = h.redactAttr(m)
		}
		a.Value = slog.GroupValue(clean...)
	case slog.KindAny:
		// Errors and other opaque values render as strings in the end;
		// replace the value only when redaction actually changed it.
		rendered := a.Value.String()
		if scrubbed := h.redactor.Redact(rendered); scrubbed != rendered {
			a.Value = slog.StringValue(scrubbed)
		}
	}
	return a
}
