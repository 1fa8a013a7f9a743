package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes that change over the process lifetime,
// such as the page currently loaded in the inspected target.
type ContextProvider func() []slog.Attr

type ctxAttrsKey struct{}

// WithContextAttrs returns a context whose log records carry attrs when
// logged through a ContextHandler with the *Context methods of slog.Logger.
func WithContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if prev, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
		attrs = append(append([]slog.Attr{}, prev...), attrs...)
	}
	return context.WithValue(ctx, ctxAttrsKey{}, attrs)
}

// ContextHandler injects provider attributes and context-carried attributes
// into every record.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		r.AddAttrs(h.provider()...)
	}
	if ctx != nil {
		if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}
