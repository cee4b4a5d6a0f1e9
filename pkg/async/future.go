package async

import (
	"context"
	"sync"
)

// Future is a read handle to an asynchronous computation.
// It completes exactly once with either a value or an error
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	value     T
	err       error

	successHandlers []func(T)
	failureHandlers []func(error)
}

// Promise is the write side of a Future
type Promise[T any] struct {
	Future[T]
}

// NewPromise creates a new unresolved promise
func NewPromise[T any]() *Promise[T] {
	p := &Promise[T]{}
	p.done = make(chan struct{})
	return p
}

// Completed returns a future already resolved with value
func Completed[T any](value T) *Future[T] {
	p := NewPromise[T]()
	p.Complete(value)
	return &p.Future
}

// Failed returns a future already resolved with err
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Fail(err)
	return &p.Future
}

// Complete resolves the promise with a value.
// Returns false if the promise was already resolved
func (p *Promise[T]) Complete(value T) bool {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return false
	}
	p.completed = true
	p.value = value
	handlers := p.successHandlers
	p.successHandlers = nil
	p.failureHandlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		h(value)
	}
	return true
}

// Fail resolves the promise with an error.
// Returns false if the promise was already resolved
func (p *Promise[T]) Fail(err error) bool {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return false
	}
	p.completed = true
	p.err = err
	handlers := p.failureHandlers
	p.successHandlers = nil
	p.failureHandlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
	return true
}

// Await blocks until the future resolves or the context is cancelled.
// Provides async/await-style syntax: result, err := future.Await(ctx)
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the future resolves
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// OnSuccess registers a callback invoked with the value on success.
// If the future already succeeded the callback runs immediately
func (f *Future[T]) OnSuccess(handler func(T)) *Future[T] {
	f.mu.Lock()
	if f.completed {
		value, err := f.value, f.err
		f.mu.Unlock()
		if err == nil {
			handler(value)
		}
		return f
	}
	f.successHandlers = append(f.successHandlers, handler)
	f.mu.Unlock()
	return f
}

// OnFailure registers a callback invoked with the error on failure.
// If the future already failed the callback runs immediately
func (f *Future[T]) OnFailure(handler func(error)) *Future[T] {
	f.mu.Lock()
	if f.completed {
		err := f.err
		f.mu.Unlock()
		if err != nil {
			handler(err)
		}
		return f
	}
	f.failureHandlers = append(f.failureHandlers, handler)
	f.mu.Unlock()
	return f
}

// Then chains a transformation, returning a new future with the mapped type
func Then[T any, R any](f *Future[T], fn func(T) (R, error)) *Future[R] {
	mapped := NewPromise[R]()
	f.OnSuccess(func(value T) {
		result, err := fn(value)
		if err != nil {
			mapped.Fail(err)
		} else {
			mapped.Complete(result)
		}
	})
	f.OnFailure(func(err error) {
		mapped.Fail(err)
	})
	return &mapped.Future
}

// All waits for every future to succeed and collects the results in order.
// The first failure fails the returned future
func All[T any](ctx context.Context, futures ...*Future[T]) *Future[[]T] {
	promise := NewPromise[[]T]()

	go func() {
		results := make([]T, 0, len(futures))
		for _, f := range futures {
			result, err := f.Await(ctx)
			if err != nil {
				promise.Fail(err)
				return
			}
			results = append(results, result)
		}
		promise.Complete(results)
	}()

	return &promise.Future
}
