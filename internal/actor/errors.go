package actor

import "errors"

// Sentinel errors for the lifecycle-misuse and caller-driven-misuse error
// kinds of spec.md §7. These are surfaced synchronously to the caller and
// never escalated to a parent.
var (
	// ErrActorNotRunning is returned when an operation that requires a
	// RUNNING cell (Send to a cell that never started, pause of a
	// non-running cell) is attempted outside that state.
	ErrActorNotRunning = errors.New("actor: not running")

	// ErrActorAlreadyRunning is returned by Resume when the cell is already
	// RUNNING, and by Start when it is RUNNING or PAUSED.
	ErrActorAlreadyRunning = errors.New("actor: already running")

	// ErrActorAlreadyStopped is returned by Start, Resume and Stop on a
	// STOPPED cell, including a second Stop. Send and Pause on a STOPPED
	// cell return ErrActorNotRunning.
	ErrActorAlreadyStopped = errors.New("actor: already stopped")

	// ErrNoRoute is returned by Proc.Put when the procedure's cell has no
	// connected downstream peer.
	ErrNoRoute = errors.New("actor: no outbound route")

	// ErrMailboxAwaiterConflict is returned by Proc.Get when a second Get
	// is issued while a prior one is still outstanding.
	ErrMailboxAwaiterConflict = errors.New("actor: mailbox awaiter conflict")

	// ErrCancelled is delivered to a procedure body at its current
	// suspension point when the owning cell is stopped.
	ErrCancelled = errors.New("actor: cancelled")
)
