package driver

import "context"

// Callback is invoked once with the settled result of an async call.
type Callback[T any] func(result T, err error)

// Future is the pending result of an async call.
type Future[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Done is closed once the call has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call settles or ctx ends. An ended ctx stops the
// wait only; the call itself runs under the context it was started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// settle runs fn on its own goroutine, then resolves the future and
// invokes cb, in that order.
func settle[T any](fn func() (T, error), cb Callback[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		f.result, f.err = fn()
		close(f.done)
		if cb != nil {
			cb(f.result, f.err)
		}
	}()
	return f
}

// Async exposes the driver through futures and optional callbacks. A nil
// callback is allowed everywhere.
type Async struct {
	d *Driver
}

// Async returns the future-returning form of d.
func (d *Driver) Async() *Async {
	return &Async{d: d}
}

// GetItem is the async form of Driver.GetItem.
func (a *Async) GetItem(ctx context.Context, key string, cb Callback[any]) *Future[any] {
	return settle(func() (any, error) { return a.d.GetItem(ctx, key) }, cb)
}

// SetItem is the async form of Driver.SetItem.
func (a *Async) SetItem(ctx context.Context, key string, value any, cb Callback[any]) *Future[any] {
	return settle(func() (any, error) { return a.d.SetItem(ctx, key, value) }, cb)
}

// RemoveItem is the async form of Driver.RemoveItem.
func (a *Async) RemoveItem(ctx context.Context, key string, cb Callback[struct{}]) *Future[struct{}] {
	return settle(func() (struct{}, error) { return struct{}{}, a.d.RemoveItem(ctx, key) }, cb)
}

// Clear is the async form of Driver.Clear.
func (a *Async) Clear(ctx context.Context, cb Callback[struct{}]) *Future[struct{}] {
	return settle(func() (struct{}, error) { return struct{}{}, a.d.Clear(ctx) }, cb)
}

// Keys is the async form of Driver.Keys.
func (a *Async) Keys(ctx context.Context, cb Callback[[]string]) *Future[[]string] {
	return settle(func() ([]string, error) { return a.d.Keys(ctx) }, cb)
}

// Length is the async form of Driver.Length.
func (a *Async) Length(ctx context.Context, cb Callback[int]) *Future[int] {
	return settle(func() (int, error) { return a.d.Length(ctx) }, cb)
}

// Key is the async form of Driver.Key.
func (a *Async) Key(ctx context.Context, n int, cb Callback[string]) *Future[string] {
	return settle(func() (string, error) { return a.d.Key(ctx, n) }, cb)
}

// Iterate is the async form of Driver.Iterate. fn runs on the call's
// goroutine.
func (a *Async) Iterate(ctx context.Context, fn IteratorFunc, cb Callback[any]) *Future[any] {
	return settle(func() (any, error) { return a.d.Iterate(ctx, fn) }, cb)
}
