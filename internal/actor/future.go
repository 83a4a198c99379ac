package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Future represents the result of an asynchronous computation external to
// the actor runtime — a network call, a timer, a subprocess exit. It is the
// "external awaitable" X of spec.md §4.3. The teacher's interface.go
// declares this shape (Await/ThenApply/OnComplete) but its implementation
// was not present in the retrieved files; it is built from scratch here.
type Future[T any] interface {
	// Await blocks until the result is available or ctx is cancelled.
	Await(ctx context.Context) fn.Result[T]

	// OnComplete registers fn to run when the result is ready. If ctx is
	// cancelled first, fn is invoked with the context's error.
	OnComplete(ctx context.Context, fn func(fn.Result[T]))
}

// Promise completes the Future associated with it. Exactly one of its
// Complete calls wins; later calls are no-ops.
type Promise[T any] interface {
	// Future returns the Future this promise will complete.
	Future() Future[T]

	// Complete sets the result, returning true iff this call was the
	// first to do so.
	Complete(result fn.Result[T]) bool
}

// promiseImpl is a single-assignment, channel-backed Promise/Future pair.
type promiseImpl[T any] struct {
	once   sync.Once
	done   chan struct{}
	result fn.Result[T]
}

// NewPromise creates an uncompleted Promise.
func NewPromise[T any]() Promise[T] {
	return &promiseImpl[T]{done: make(chan struct{})}
}

// Complete implements Promise.
func (p *promiseImpl[T]) Complete(result fn.Result[T]) bool {
	won := false
	p.once.Do(func() {
		p.result = result
		close(p.done)
		won = true
	})

	return won
}

// Future implements Promise.
func (p *promiseImpl[T]) Future() Future[T] {
	return p
}

// Await implements Future.
func (p *promiseImpl[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// OnComplete implements Future.
func (p *promiseImpl[T]) OnComplete(ctx context.Context, fn func(fn.Result[T])) {
	go func() {
		fn(p.Await(ctx))
	}()
}

// awaitable is the type-erased form of a Future used internally by the
// procedure driver, which must juggle awaitables of heterogeneous T without
// becoming generic itself (a suspension request channel can't carry a
// variable type parameter). subscribe arranges for onDone to be invoked
// exactly once, with the boxed result or the context's cancellation error.
// Best-effort cancellation of the underlying operation is the separate
// cancellableAwaitable interface.
type awaitable interface {
	subscribe(ctx context.Context, onDone func(value any, err error))
}

// CancellableFuture extends Future with best-effort cancellation, for use
// as the external awaitable X of spec.md §4.3 when the underlying operation
// can actually be aborted (an in-flight HTTP request, a subprocess wait).
// Futures that don't implement this are simply left to resolve naturally;
// the bridge still swallows a late result once the body has moved on.
type CancellableFuture[T any] interface {
	Future[T]

	// Cancel requests that the underlying asynchronous computation stop.
	// It does not block for the computation to actually finish.
	Cancel()
}

// futureAwaitable boxes a Future[T] as an awaitable.
type futureAwaitable[T any] struct {
	future Future[T]
}

// Cancel forwards to the wrapped future's Cancel if it implements
// CancellableFuture[T]; otherwise it is a no-op.
func (a futureAwaitable[T]) Cancel() {
	if c, ok := a.future.(CancellableFuture[T]); ok {
		c.Cancel()
	}
}

// Await wraps any Future[T] so it can be passed to Proc.Await, which only
// deals in the type-erased awaitable interface.
func Await[T any](f Future[T]) awaitable {
	return futureAwaitable[T]{future: f}
}

func (a futureAwaitable[T]) subscribe(ctx context.Context, onDone func(any, error)) {
	a.future.OnComplete(ctx, func(res fn.Result[T]) {
		val, err := res.Unpack()
		onDone(val, err)
	})
}
