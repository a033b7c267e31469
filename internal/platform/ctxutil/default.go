package ctxutil

import "context"

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Detached keeps the values of parent (trace ids, spans) but drops its
// deadline and cancellation, so fire-and-forget work outlives the request.
func Detached(parent context.Context) context.Context {
	return context.WithoutCancel(Default(parent))
}
