package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fetch is one independent remote call.
type Fetch[T any] func(ctx context.Context) (T, error)

// Task is a fetch whose result the caller captures itself, used when the
// fanned-out calls return different types.
type Task func(ctx context.Context) error

// All runs every fetch concurrently and waits for all of them. Results are
// returned in input order. The first error to occur is returned and the
// context handed to the remaining fetches is cancelled; no partial results
// are returned in that case.
func All[T any](ctx context.Context, fetches ...Fetch[T]) ([]T, error) {
	out := make([]T, len(fetches))
	tasks := make([]Task, len(fetches))
	for i, fetch := range fetches {
		i, fetch := i, fetch
		tasks[i] = func(ctx context.Context) error {
			v, err := fetch(ctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		}
	}
	if err := Join(ctx, tasks...); err != nil {
		return nil, err
	}
	return out, nil
}

// Join runs tasks concurrently with the same first-error-wins semantics as All.
func Join(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		if task == nil {
			continue
		}
		task := task
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &PanicError{Value: r}
				}
			}()
			return task(gctx)
		})
	}
	return g.Wait()
}
