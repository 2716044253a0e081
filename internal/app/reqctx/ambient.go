package reqctx

import "context"

type ctxKey struct{}

// WithContext establishes rc as the current RequestContext for everything
// that runs with the returned context. A nil rc hides any enclosing value.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, ctxKey{}, rc)
}

// Without returns a context in which no RequestContext is established.
func Without(ctx context.Context) context.Context {
	return WithContext(ctx, nil)
}

// FromContext returns the RequestContext established in ctx.
// It reports false when called outside any scope or when ctx is nil.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}

	rc, _ := ctx.Value(ctxKey{}).(*RequestContext)
	return rc, rc != nil
}

// Current is like FromContext but returns nil when nothing is established.
func Current(ctx context.Context) *RequestContext {
	rc, _ := FromContext(ctx)
	return rc
}
