package xlog

import "context"

// C is a short alias for FromContext.
var C = FromContext

type contextKey struct{}

// FromContext returns the Logger stored in ctx, or the default Logger if none is set.
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		logger = Default()
	}
	return logger
}

// WithContext returns a child context carrying a Logger annotated with args.
func WithContext(ctx context.Context, args ...any) context.Context {
	logger := FromContext(ctx)
	return context.WithValue(ctx, contextKey{}, logger.With(args...))
}
