// Package logging builds the structured logger every command and
// codec session writes through: a log/slog.Logger whose handler also
// drains any attributes stashed on the context via AppendCtx, so a
// session correlation ID attached once at the top of an encode/decode
// call shows up on every log line underneath it without threading it
// through every function signature.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey struct{}

// ctxHandler wraps a slog.Handler and adds any attributes found on
// the record's context (via AppendCtx) before delegating.
type ctxHandler struct {
	slog.Handler
}

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{h.Handler.WithGroup(name)}
}

// Logger builds a JSON-handler slog.Logger writing to w at the given
// level, optionally annotating each record with its source location.
func Logger(w io.Writer, addSource bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: addSource, Level: level}
	return slog.New(ctxHandler{slog.NewJSONHandler(w, opts)})
}

// AppendCtx returns a context carrying attrs alongside whatever the
// parent context already carried; every logger built by Logger will
// attach them to every record logged through the returned context.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}
