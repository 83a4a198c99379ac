package actor

import (
	"context"
	"sync"
)

// activeAwait tracks the single outstanding external await a bridge may
// hold at a time (a procedure has at most one suspension in flight).
type activeAwait struct {
	aw        awaitable
	subCancel context.CancelFunc
	resultCh  chan boxedResult
	cancelled bool
}

// awaitableBridge is the Awaitable Bridge of spec.md §4.3: it wraps an
// external awaitable so a procedure body can pause on it without observing
// progress while the owning cell is PAUSED, and without leaking a result
// into the body once the cell is STOPPED.
type awaitableBridge struct {
	cell *Cell

	mu     sync.Mutex
	active *activeAwait
	cached *boxedResult

	// bodyCtx is cancelled the moment the owning procedure is torn down
	// by Stop, so external calls the body issues directly (outside of
	// Await) can also be cut short.
	bodyCtx    context.Context
	bodyCancel context.CancelFunc
}

func newAwaitableBridge(cell *Cell) *awaitableBridge {
	ctx, cancel := context.WithCancel(context.Background())

	return &awaitableBridge{cell: cell, bodyCtx: ctx, bodyCancel: cancel}
}

// register subscribes to aw and returns the channel that will eventually
// carry its resolved value or failure, subject to the RUNNING/PAUSED
// caching rule of spec.md §4.3.
func (b *awaitableBridge) register(aw awaitable) chan boxedResult {
	subCtx, subCancel := context.WithCancel(context.Background())
	resultCh := make(chan boxedResult, 1)

	b.mu.Lock()
	b.active = &activeAwait{aw: aw, subCancel: subCancel, resultCh: resultCh}
	b.mu.Unlock()

	aw.subscribe(subCtx, func(value any, err error) {
		b.deliver(resultCh, value, err)
	})

	return resultCh
}

// deliver is the subscription callback: it completes resultCh immediately
// if the owning cell is RUNNING, caches the result for delivery on the next
// RUNNING transition if PAUSED, and drops it silently if this await was
// already cancelled by Stop.
func (b *awaitableBridge) deliver(resultCh chan boxedResult, value any, err error) {
	b.mu.Lock()

	active := b.active
	if active == nil || active.resultCh != resultCh || active.cancelled {
		// Stale subscription: superseded, already cancelled, or this
		// delivery raced a cancellation. Swallowed per spec.md §4.3.
		b.mu.Unlock()

		return
	}

	if b.cell.getState() == StateRunning {
		b.active = nil
		b.mu.Unlock()

		resultCh <- boxedResult{value: value, err: err}

		return
	}

	// PAUSED: cache it; flushCached delivers it on the next resume.
	b.cached = &boxedResult{value: value, err: err}
	b.mu.Unlock()
}

// flushCached delivers a cached external result, if any, into the currently
// active await. Called by Cell.Resume before any buffered sends are
// replayed (spec.md §8: "cached external results are delivered before any
// buffered send").
func (b *awaitableBridge) flushCached() {
	b.mu.Lock()
	cached := b.cached
	b.cached = nil

	var resultCh chan boxedResult
	if cached != nil && b.active != nil {
		resultCh = b.active.resultCh
		b.active = nil
	}
	b.mu.Unlock()

	if resultCh != nil {
		resultCh <- *cached
	}
}

// cancelActive tears down any outstanding await as part of Stop: it cancels
// the subscription context, invokes best-effort cancellation on the
// external awaitable if it supports it, and discards any cached pending
// failure with a warning (spec.md §7 LostFailure).
func (b *awaitableBridge) cancelActive() {
	b.mu.Lock()
	active := b.active
	cached := b.cached
	b.cached = nil
	if active != nil {
		active.cancelled = true
		b.active = nil
	}
	b.mu.Unlock()

	b.bodyCancel()

	if active != nil {
		active.subCancel()

		if c, ok := active.aw.(cancellableAwaitable); ok {
			c.Cancel()
		}
	}

	if cached != nil && cached.err != nil {
		warnS(context.Background(),
			"discarding pending external failure buffered while "+
				"paused: cell stopped before it could be delivered",
			"cell_id", b.cell.ID())
	}
}

// cancellableAwaitable is implemented by awaitables whose underlying
// external operation supports best-effort cancellation.
type cancellableAwaitable interface {
	Cancel()
}
