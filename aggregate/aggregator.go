package aggregate

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Aggregator carries the logging and deadline policy shared by every
// aggregation. A nil *Aggregator is usable and applies no deadline.
type Aggregator struct {
	log     logrus.FieldLogger
	timeout time.Duration
}

type Option func(*Aggregator)

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithTimeout bounds every aggregation; zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func New(opts ...Option) *Aggregator {
	a := &Aggregator{log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Aggregator) logger() logrus.FieldLogger {
	if a == nil || a.log == nil {
		return logrus.StandardLogger()
	}
	return a.log
}

func (a *Aggregator) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}

// finish records the outcome of one aggregation.
func finish[R any](a *Aggregator, name string, start time.Time, res Result[R]) Result[R] {
	elapsed := time.Since(start)
	runs.WithLabelValues(name, res.State.String()).Inc()
	duration.WithLabelValues(name).Observe(elapsed.Seconds())

	entry := a.logger().WithFields(logrus.Fields{
		"aggregate": name,
		"state":     res.State.String(),
		"elapsed":   elapsed.String(),
	})
	if res.IsError() {
		entry.WithError(res.Err).WithField("kind", Classify(res.Err).String()).Warn("aggregate failed")
	} else {
		entry.Debug("aggregate finished")
	}
	return res
}

// Collect runs fetches concurrently and returns Success with the results in
// input order, Error with the first failure, or Empty when there is nothing
// to fetch.
func Collect[T any](ctx context.Context, a *Aggregator, name string, fetches ...Fetch[T]) Result[[]T] {
	return Merge(ctx, a, name, func(items []T) ([]T, bool) { return items, true }, fetches...)
}

// Merge is Collect with a merge step; merge reports false when the merged
// value should be presented as Empty.
func Merge[T, R any](ctx context.Context, a *Aggregator, name string, merge func([]T) (R, bool), fetches ...Fetch[T]) Result[R] {
	start := time.Now()
	if len(fetches) == 0 {
		return finish(a, name, start, Empty[R]())
	}
	ctx, cancel := a.context(ctx)
	defer cancel()

	items, err := All(ctx, fetches...)
	if err != nil {
		return finish(a, name, start, Failure[R](err))
	}
	merged, ok := merge(items)
	if !ok {
		return finish(a, name, start, Empty[R]())
	}
	return finish(a, name, start, Success(merged))
}

// Flatten concatenates per-fetch slices in input order; zero total items
// yields Empty.
func Flatten[T any](ctx context.Context, a *Aggregator, name string, fetches ...Fetch[[]T]) Result[[]T] {
	return Merge(ctx, a, name, func(parts [][]T) ([]T, bool) {
		var out []T
		for _, p := range parts {
			out = append(out, p...)
		}
		return out, len(out) > 0
	}, fetches...)
}

// Gather joins heterogeneous tasks and then calls assemble to build the
// value from whatever the tasks captured. assemble runs only when every task
// succeeded.
func Gather[R any](ctx context.Context, a *Aggregator, name string, assemble func() (R, bool), tasks ...Task) Result[R] {
	start := time.Now()
	ctx, cancel := a.context(ctx)
	defer cancel()

	if err := Join(ctx, tasks...); err != nil {
		return finish(a, name, start, Failure[R](err))
	}
	v, ok := assemble()
	if !ok {
		return finish(a, name, start, Empty[R]())
	}
	return finish(a, name, start, Success(v))
}

// Run emits Loading, then the terminal result of produce.
func Run[R any](ctx context.Context, emit func(Result[R]), produce func(context.Context) Result[R]) Result[R] {
	if emit == nil {
		emit = func(Result[R]) {}
	}
	emit(Loading[R]())
	res := produce(ctx)
	emit(res)
	return res
}
