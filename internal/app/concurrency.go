// Package app holds the request-scoped fan-out helper used by handlers.
//
// Every goroutine started here receives a context derived from the caller's,
// so the reqctx.RequestContext established for the request is visible in
// each worker. A panic in a worker cancels the others and is raised again in
// the caller with the original value once all workers have returned.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// errBranchPanicked cancels the group when a branch panics. It never
// escapes: the caller re-panics instead.
var errBranchPanicked = errors.New("branch panicked")

// group is an errgroup that holds on to the first panic of its branches.
type group struct {
	eg *errgroup.Group

	once  sync.Once
	fault any
	set   bool
}

func newGroup(ctx context.Context) (*group, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)

	return &group{eg: eg}, ctx
}

func (g *group) Go(fn func() error) {
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				g.once.Do(func() {
					g.fault = r
					g.set = true
				})
				err = errBranchPanicked
			}
		}()

		return fn()
	})
}

// Wait waits for all branches and re-panics with the first panic value.
func (g *group) Wait() error {
	err := g.eg.Wait()
	if g.set {
		panic(g.fault)
	}

	return err
}

// FanOut hands items to a fixed number of workers. Each worker processes
// items one after another; workers run in parallel.
func FanOut[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}

	g, ctx := newGroup(ctx)
	itemCh := make(chan T)

	for range workers {
		g.Go(func() error {
			for item := range itemCh {
				if err := fn(ctx, item); err != nil {
					return err
				}
			}

			return nil
		})
	}

	g.Go(func() error {
		defer close(itemCh)

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}

			select {
			case itemCh <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fan out failed: %w", err)
	}

	return nil
}
