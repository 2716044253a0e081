package reqctx

import (
	"context"
	"runtime"
)

// Poll is the outcome of driving a Future one step.
type Poll[T any] struct {
	Value T
	Err   error
	Done  bool

	// Wake is closed when the future is worth polling again.
	// A nil Wake asks the driver to poll again after yielding.
	Wake <-chan struct{}
}

// Ready returns a completed Poll.
func Ready[T any](v T, err error) Poll[T] {
	return Poll[T]{Value: v, Err: err, Done: true}
}

// Pending returns a Poll for a future that suspended.
func Pending[T any](wake <-chan struct{}) Poll[T] {
	return Poll[T]{Wake: wake}
}

// Future is a computation driven forward one step per call to Poll.
// Poll must not be called again after it returned a Done result.
type Future[T any] interface {
	Poll(ctx context.Context) Poll[T]
}

// FutureFunc adapts a step function to Future.
type FutureFunc[T any] func(ctx context.Context) Poll[T]

// Poll calls f.
func (f FutureFunc[T]) Poll(ctx context.Context) Poll[T] {
	return f(ctx)
}

// ScopedFuture drives an inner Future with its RequestContext established
// for the duration of every step.
type ScopedFuture[T any] struct {
	inner Future[T]
	rc    *RequestContext
}

// Scoped wraps inner so that each Poll runs with rc established.
func Scoped[T any](inner Future[T], rc *RequestContext) *ScopedFuture[T] {
	return &ScopedFuture[T]{inner: inner, rc: rc}
}

// Poll drives the inner future exactly one step. The context handed to the
// inner future carries rc; ctx itself is not modified, so on return, panic
// or abandonment the caller still observes whatever it had before.
// Results and panics of the inner future pass through unchanged.
func (s *ScopedFuture[T]) Poll(ctx context.Context) Poll[T] {
	return s.inner.Poll(WithContext(ctx, s.rc))
}

// Context returns the RequestContext installed on every step.
func (s *ScopedFuture[T]) Context() *RequestContext {
	return s.rc
}

// Await drives f to completion, waiting on each Pending result's Wake
// channel. If ctx is canceled first, Await stops driving f and returns
// ctx.Err().
func Await[T any](ctx context.Context, f Future[T]) (T, error) {
	for {
		p := f.Poll(ctx)
		if p.Done {
			return p.Value, p.Err
		}

		if p.Wake == nil {
			if err := ctx.Err(); err != nil {
				var zero T
				return zero, err
			}

			runtime.Gosched()
			continue
		}

		select {
		case <-p.Wake:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}
