package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Body is a user-supplied suspendable procedure: a linear, cooperative
// function that drives its own control flow by calling Proc.Get and
// Proc.Await at well-defined suspension points (spec.md §4.4, §5). A body
// that returns a non-nil error is treated as BodyFailure (spec.md §7); a
// body returning nil simply terminates the cell in the ordinary way.
type Body func(p *Proc) error

// Proc is the body-authoring interface of spec.md §6: the only surface a
// procedure body uses to interact with the runtime.
type Proc struct {
	cell *Cell

	cancelOnce sync.Once
	cancelCh   chan struct{}

	bridge *awaitableBridge
}

// boxedResult carries a suspension's resolved value or failure back to the
// blocked body goroutine.
type boxedResult struct {
	value any
	err   error
}

func newProc(cell *Cell) *Proc {
	p := &Proc{
		cell:     cell,
		cancelCh: make(chan struct{}),
	}
	p.bridge = newAwaitableBridge(cell)

	return p
}

// cancel is invoked exactly once by Cell.Stop to inject cancellation at the
// procedure's current suspension point (spec.md §4.4).
func (p *Proc) cancel() {
	p.cancelOnce.Do(func() {
		close(p.cancelCh)
	})

	p.bridge.cancelActive()
	p.cell.mailbox.cancelAwaiter()
}

// Get waits for the next message matching filter (Any() for "any message"),
// per spec.md §6. At most one Get may be outstanding at a time; a second
// concurrent Get returns ErrMailboxAwaiterConflict synchronously. If the
// cell is stopped while Get is outstanding, it returns ErrCancelled.
func (p *Proc) Get(filter Pattern) (any, error) {
	tr, err := p.cell.mailbox.take(filter)
	if err != nil {
		return nil, err
	}

	if !tr.immediate.IsNone() {
		return tr.immediate.UnwrapOr(nil), nil
	}

	resultCh := make(chan boxedResult, 1)
	tr.pending.OnComplete(context.Background(), func(res fn.Result[any]) {
		val, resErr := res.Unpack()
		resultCh <- boxedResult{value: val, err: resErr}
	})

	select {
	case r := <-resultCh:
		return r.value, r.err

	case <-p.cancelCh:
		return nil, ErrCancelled
	}
}

// Await suspends the body on an external asynchronous result (spec.md §4.3,
// §6). Use actor.Await(future) to box any Future[T] into the awaitable
// argument.
func (p *Proc) Await(a awaitable) (any, error) {
	resultCh := p.bridge.register(a)

	select {
	case r := <-resultCh:
		return r.value, r.err

	case <-p.cancelCh:
		// Stop may have run before this await was registered; cancel
		// it here so the external awaitable is always told to stop.
		p.bridge.cancelActive()

		return nil, ErrCancelled
	}
}

// Put sends message to the cell's single connected downstream peer,
// returning ErrNoRoute if none is connected (spec.md §6, §7).
func (p *Proc) Put(ctx context.Context, message any) error {
	return p.cell.put(ctx, message)
}

// Spawn creates a child of the procedure's own cell. See Cell.Spawn.
func (p *Proc) Spawn(opts ...CellOption) *Cell {
	return p.cell.Spawn(opts...)
}

// Context returns a context bound to the body's own cancellation: it is
// cancelled the moment Stop() injects cancellation at the current
// suspension point, so external calls issued by the body (HTTP requests,
// subprocess waits) can be cut short promptly.
func (p *Proc) Context() context.Context {
	return p.bridge.bodyCtx
}
