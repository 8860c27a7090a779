package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"

	redacted = "[redacted]"
)

// TracingHandler is an [slog.Handler] that stamps every record with the
// active trace and span IDs. The service, mode and env attributes are bound
// at construction, so they stay top-level under WithGroup.
//
// Author identities never reach the log: values under the keys the span
// filter blocks (email, author.*, user.*) are replaced with "[redacted]".
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	record = redactRecord(record)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if err := th.inner.Handle(ctx, record); err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for idx, attr := range attrs {
		clean[idx] = redactAttr(attr)
	}

	return &TracingHandler{inner: th.inner.WithAttrs(clean)}
}

func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

func redactRecord(record slog.Record) slog.Record {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(redactAttr(attr))

		return true
	})

	return clean
}

func redactAttr(attr slog.Attr) slog.Attr {
	if isIdentityKey(attr.Key) {
		return slog.String(attr.Key, redacted)
	}

	if attr.Value.Kind() != slog.KindGroup {
		return attr
	}

	group := attr.Value.Group()
	clean := make([]slog.Attr, len(group))

	for idx, member := range group {
		clean[idx] = redactAttr(member)
	}

	return slog.Attr{Key: attr.Key, Value: slog.GroupValue(clean...)}
}

func isIdentityKey(key string) bool {
	return key == "email" || key == "author.email" || hasAnyPrefix(key, blockedPrefixes)
}
