package actor

import (
	"container/list"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultHWM is the default high-water-mark threshold of spec.md §4.2: an
// observability event fires every time the queue length crosses a multiple
// of this value.
const DefaultHWM = 10000

// HighWaterMarkReached is the observability event of spec.md §6, emitted
// whenever a mailbox's queue length crosses a multiple of its HWM threshold.
type HighWaterMarkReached struct {
	// CellID identifies the cell whose mailbox crossed the threshold.
	CellID string

	// QueueLength is the queue length observed at the crossing.
	QueueLength int
}

// HWMObserver receives HighWaterMarkReached events. Cells install one via
// mailbox.onHWM; the default is a no-op so mailboxes are usable standalone
// (e.g. in tests) without a cell.
type HWMObserver func(HighWaterMarkReached)

// awaiter is the single outstanding selective-receive registration a mailbox
// may hold (spec.md §3: "at most one pending awaiter").
type awaiter struct {
	filter  Pattern
	promise Promise[any]
}

// mailbox is an in-order FIFO of messages for one cell, supporting
// selective receive via pattern filter and high-water-mark signaling
// (spec.md §4.2). A container/list backs the queue instead of a channel
// because selective receive must be able to remove an arbitrary interior
// element without disturbing the order of the rest.
type mailbox struct {
	mu      sync.Mutex
	queue   *list.List // of any (the message values)
	waiting *awaiter
	cellID  string
	hwm     int
	onHWM   HWMObserver
	maxLen  int
}

// newMailbox creates an empty mailbox. hwm <= 0 defaults to DefaultHWM.
func newMailbox(cellID string, hwm int, onHWM HWMObserver) *mailbox {
	if hwm <= 0 {
		hwm = DefaultHWM
	}
	if onHWM == nil {
		onHWM = func(HighWaterMarkReached) {}
	}

	return &mailbox{
		queue:  list.New(),
		cellID: cellID,
		hwm:    hwm,
		onHWM:  onHWM,
	}
}

// enqueue appends message to the mailbox, or — if a registered awaiter's
// filter matches it — resolves that awaiter directly instead, per spec.md
// §4.2. Messages not matching the current awaiter are appended in arrival
// order and never reordered.
func (m *mailbox) enqueue(message any) {
	m.mu.Lock()

	if m.waiting != nil {
		if bound := match(m.waiting.filter, message); !bound.IsNone() {
			w := m.waiting
			m.waiting = nil
			m.mu.Unlock()

			w.promise.Complete(fn.Ok(bound.UnwrapOr(nil)))

			return
		}
	}

	m.queue.PushBack(message)
	length := m.queue.Len()
	if length > m.maxLen {
		m.maxLen = length
	}
	crossedHWM := length > 0 && length%m.hwm == 0
	m.mu.Unlock()

	if crossedHWM {
		m.onHWM(HighWaterMarkReached{CellID: m.cellID, QueueLength: length})
	}
}

// takeResult is what take returns: either the match was found immediately,
// or a Future the caller must wait on (resolved by a later enqueue or
// cancelled by cancelAwaiter).
type takeResult struct {
	immediate fn.Option[any]
	pending   Future[any]
}

// take scans the queue in arrival order for the first message matching
// filter. If found, it is removed and returned immediately; otherwise a
// single awaiter is registered (ErrMailboxAwaiterConflict if one already
// exists) and a pending handle is returned. filter == nil matches anything.
func (m *mailbox) take(filter Pattern) (takeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for e := m.queue.Front(); e != nil; e = e.Next() {
		bound := match(filter, e.Value)
		if bound.IsNone() {
			continue
		}

		m.queue.Remove(e)

		return takeResult{immediate: bound}, nil
	}

	if m.waiting != nil {
		return takeResult{}, ErrMailboxAwaiterConflict
	}

	promise := NewPromise[any]()
	m.waiting = &awaiter{filter: filter, promise: promise}

	return takeResult{immediate: fn.None[any](), pending: promise.Future()}, nil
}

// cancelAwaiter drops the registered awaiter, if any, signaling its pending
// handle as cancelled. Used when stop() tears down an awaiting-message
// suspension (spec.md §4.4).
func (m *mailbox) cancelAwaiter() {
	m.mu.Lock()
	w := m.waiting
	m.waiting = nil
	m.mu.Unlock()

	if w != nil {
		w.promise.Complete(fn.Err[any](ErrCancelled))
	}
}

// length returns the current queue length, for diagnostics and tests.
func (m *mailbox) length() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.queue.Len()
}

// snapshot returns the queued messages in arrival order without consuming
// them. Used by tests asserting FIFO-preservation under selective receive.
func (m *mailbox) snapshot() []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]any, 0, m.queue.Len())
	for e := m.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}

	return out
}

// hwmEventCount returns floor(maxObservedLength / hwm), the invariant
// checked by spec.md §8 ("HighWaterMark event count equals
// floor(max_queue_len / HWM) across the run").
func (m *mailbox) hwmEventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.maxLen / m.hwm
}
