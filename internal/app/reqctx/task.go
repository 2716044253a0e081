package reqctx

import "context"

// Task is the handle of a function running on its own goroutine.
// It implements Future, so it can be awaited or wrapped with Scoped.
type Task[T any] struct {
	done chan struct{}

	value T
	err   error

	panicked bool
	fault    any
}

// Go runs fn on a new goroutine with ctx, so the RequestContext established
// in ctx (if any) is established for fn as well. A panic in fn is held by
// the Task and re-raised in whoever waits on it.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.panicked = true
				t.fault = r
			}
		}()

		t.value, t.err = fn(ctx)
	}()

	return t
}

// Done is closed when fn has returned or panicked.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until fn finishes or ctx is done. If fn panicked, Wait
// panics with the same value.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll reports the result without blocking. If fn panicked, Poll panics
// with the same value.
func (t *Task[T]) Poll(_ context.Context) Poll[T] {
	select {
	case <-t.done:
		v, err := t.result()
		return Ready(v, err)
	default:
		return Pending[T](t.done)
	}
}

func (t *Task[T]) result() (T, error) {
	if t.panicked {
		panic(t.fault)
	}

	return t.value, t.err
}
