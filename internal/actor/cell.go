package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// CellState is one of the four states of spec.md §3: NOT_STARTED, RUNNING,
// PAUSED, STOPPED. State is monotone except RUNNING<->PAUSED; STOPPED is
// absorbing.
type CellState int32

const (
	StateNotStarted CellState = iota
	StateRunning
	StatePaused
	StateStopped
)

// String implements fmt.Stringer for log output.
func (s CellState) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("CellState(%d)", int32(s))
	}
}

// Terminal is the value a cell's terminal signal resolves with once it
// reaches STOPPED (spec.md §6, "start() -> Terminal").
type Terminal struct{}

// Handler is the stateless-handler flavor of actor behavior (spec.md §4.5):
// invoked synchronously, once per message, on the caller's own goroutine
// while the cell's state is RUNNING.
type Handler func(ctx context.Context, self *Cell, message any) error

// TellTarget is anything a Cell can Put a message to. *Cell itself
// satisfies this, so one cell's downstream can be another cell, a router,
// or a transport-adapter cell such as transport/wsrelay.
type TellTarget interface {
	Send(ctx context.Context, message any) error
}

// CellOption configures a Cell at construction time.
type CellOption func(*cellConfig)

type cellConfig struct {
	id          string
	handler     Handler
	body        Body
	hwm         int
	downstream  TellTarget
	stopTimeout time.Duration
	onHWM       HWMObserver
}

// WithID sets the cell's identifier. If unset, a random UUID is used,
// following the teacher repo's identifier convention.
func WithID(id string) CellOption {
	return func(c *cellConfig) { c.id = id }
}

// WithHandler makes this a stateless-handler cell.
func WithHandler(h Handler) CellOption {
	return func(c *cellConfig) { c.handler = h }
}

// WithBody makes this a procedure cell, driven by body in its own goroutine.
func WithBody(b Body) CellOption {
	return func(c *cellConfig) { c.body = b }
}

// WithHWM overrides the mailbox's high-water-mark threshold.
func WithHWM(n int) CellOption {
	return func(c *cellConfig) { c.hwm = n }
}

// WithDownstream connects the cell's single outbound route, used by
// Proc.Put.
func WithDownstream(t TellTarget) CellOption {
	return func(c *cellConfig) { c.downstream = t }
}

// WithStopTimeout overrides how long Stop waits for a procedure body to
// unwind after cancellation before reporting RefusedToStop (spec.md §7).
// Defaults to 5s, mirroring the teacher's ActorConfig.CleanupTimeout.
func WithStopTimeout(d time.Duration) CellOption {
	return func(c *cellConfig) { c.stopTimeout = d }
}

// WithHWMObserver installs a callback for HighWaterMarkReached events.
func WithHWMObserver(observer HWMObserver) CellOption {
	return func(c *cellConfig) { c.onHWM = observer }
}

// Cell is the actor cell / state machine of spec.md §4.5: it owns a
// mailbox, a child set, a non-owning parent back-reference, and either a
// stateless Handler or a suspendable procedure Body.
type Cell struct {
	id string

	state atomic.Int32 // CellState, lock-free for awaitableBridge reads

	mu       sync.Mutex
	parent   *Cell
	children []*Cell // insertion order; owning
	buffered []any   // sends buffered while PAUSED

	mailbox *mailbox
	handler Handler
	body    Body
	proc    *Proc

	bodyExited chan struct{} // closed exactly once, when the body goroutine returns
	stopOnce   sync.Once
	stopTimeout time.Duration

	downstream TellTarget

	terminal Promise[Terminal]
}

// NewCell constructs a standalone, NOT_STARTED cell. Use Spawn to create
// and link a child under an existing cell, or Start directly for a
// freestanding root (see NewRoot).
func NewCell(opts ...CellOption) *Cell {
	cfg := cellConfig{stopTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}

	cell := &Cell{
		id:          cfg.id,
		handler:     cfg.handler,
		body:        cfg.body,
		bodyExited:  make(chan struct{}),
		stopTimeout: cfg.stopTimeout,
		downstream:  cfg.downstream,
		terminal:    NewPromise[Terminal](),
	}
	cell.mailbox = newMailbox(cell.id, cfg.hwm, cfg.onHWM)

	if cell.body != nil {
		cell.proc = newProc(cell)
	} else {
		// No body goroutine will ever run; bodyExited starts "already
		// exited" so Stop never waits on it.
		close(cell.bodyExited)
	}

	return cell
}

// ID returns the cell's identifier.
func (c *Cell) ID() string {
	return c.id
}

// State returns the cell's current lifecycle state.
func (c *Cell) State() CellState {
	return CellState(c.state.Load())
}

// getState is the lock-free read used internally by the awaitableBridge,
// which must check a cell's state from inside its own mutex without risking
// a deadlock against Cell's transition methods.
func (c *Cell) getState() CellState {
	return c.State()
}

// Done returns the terminal signal: a Future that resolves exactly once,
// when the cell reaches STOPPED (spec.md §3, §6).
func (c *Cell) Done() Future[Terminal] {
	return c.terminal.Future()
}

// Start transitions the cell from NOT_STARTED to RUNNING and, for a
// procedure cell, launches its body in a new goroutine.
func (c *Cell) Start() error {
	switch c.State() {
	case StateRunning, StatePaused:
		return ErrActorAlreadyRunning
	case StateStopped:
		return ErrActorAlreadyStopped
	}

	c.state.Store(int32(StateRunning))
	debugS(context.Background(), "cell started", "cell_id", c.id)

	if c.body != nil {
		go c.runBody()
	}

	return nil
}

// runBody drives the procedure body to completion on its own goroutine,
// recovering a panic as a BodyFailure (spec.md §7).
func (c *Cell) runBody() {
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("actor: body panicked: %v", r)
			}
		}()

		err = c.body(c.proc)
	}()

	c.bodyFinish(err)
}

// bodyFinish is called exactly once, from runBody, after the body returns
// or panics.
func (c *Cell) bodyFinish(err error) {
	close(c.bodyExited)

	if err == ErrCancelled {
		// Expected unwind from an in-flight Stop(); that caller is
		// already driving doStop and waiting on bodyExited.
		return
	}

	if err == nil {
		_ = c.stopInternal(false, "")
		return
	}

	// BodyFailure: escalate, then self-stop silently — the error
	// message already conveys termination (spec.md §8 scenario 5).
	if parent := c.getParent(); parent != nil {
		parent.Send(context.Background(), ErrorReportMsg{
			Child: c,
			Err:   err,
		})
	} else {
		errorS(context.Background(), "body failed with no parent to report to", err,
			"cell_id", c.id)
	}

	_ = c.stopInternal(true, "")
}

// Send delivers message to the cell (spec.md §4.5). Non-blocking.
func (c *Cell) Send(ctx context.Context, message any) error {
	switch c.State() {
	case StateNotStarted, StateStopped:
		return ErrActorNotRunning

	case StatePaused:
		c.mu.Lock()
		c.buffered = append(c.buffered, message)
		c.mu.Unlock()

		return nil
	}

	// RUNNING.
	if c.handler != nil {
		c.dispatchToHandler(ctx, message)
		return nil
	}

	c.mailbox.enqueue(message)

	return nil
}

// dispatchToHandler invokes a stateless handler synchronously, catching a
// panic or returned error as a HandlerFailure that is escalated to the
// parent without stopping the cell (spec.md §7: handler failures don't
// auto-stop; that's a supervision decision left to the parent).
func (c *Cell) dispatchToHandler(ctx context.Context, message any) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("actor: handler panicked: %v", r)
			}
		}()

		return c.handler(ctx, c, message)
	}()

	if err == nil {
		return
	}

	if parent := c.getParent(); parent != nil {
		parent.Send(ctx, ErrorReportMsg{Child: c, Err: err})
	} else {
		errorS(ctx, "handler failed with no parent to report to", err,
			"cell_id", c.id)
	}
}

// Pause transitions RUNNING -> PAUSED, recursively pausing every RUNNING
// child in insertion order (spec.md §4.5).
func (c *Cell) Pause() error {
	if c.State() != StateRunning {
		return ErrActorNotRunning
	}

	c.state.Store(int32(StatePaused))

	c.mu.Lock()
	kids := append([]*Cell(nil), c.children...)
	c.mu.Unlock()

	for _, kid := range kids {
		if kid.State() == StateRunning {
			_ = kid.Pause()
		}
	}

	debugS(context.Background(), "cell paused", "cell_id", c.id)

	return nil
}

// Resume transitions PAUSED -> RUNNING, resumes every non-running child,
// delivers any external result cached by the awaitable bridge while
// PAUSED, and finally replays buffered sends in arrival order (spec.md
// §4.5, §8).
func (c *Cell) Resume() error {
	switch c.State() {
	case StateRunning:
		return ErrActorAlreadyRunning
	case StateStopped:
		return ErrActorAlreadyStopped
	case StateNotStarted:
		return ErrActorNotRunning
	}

	c.state.Store(int32(StateRunning))

	c.mu.Lock()
	kids := append([]*Cell(nil), c.children...)
	c.mu.Unlock()

	for _, kid := range kids {
		if kid.State() != StateRunning {
			_ = kid.Resume()
		}
	}

	if c.proc != nil {
		c.proc.bridge.flushCached()
	}

	c.mu.Lock()
	pending := c.buffered
	c.buffered = nil
	c.mu.Unlock()

	for _, msg := range pending {
		_ = c.Send(context.Background(), msg)
	}

	debugS(context.Background(), "cell resumed", "cell_id", c.id)

	return nil
}

// Stop transitions the cell to STOPPED (spec.md §4.5): it pauses first if
// RUNNING, cancels an in-flight procedure suspension, stops every child
// with silent=true, resolves the terminal signal, and — unless silent —
// reports to the parent.
func (c *Cell) Stop() error {
	return c.stopInternal(false, "")
}

// stopInternal is the single entry point for every path that can terminate
// a cell: an explicit caller Stop(), a parent cascading silent=true onto
// its children, and the cell's own body finishing spontaneously. stopOnce
// guarantees the state-mutating half (doStop) runs exactly once even if
// two of those paths race.
func (c *Cell) stopInternal(silent bool, presetUnclean string) error {
	switch c.State() {
	case StateNotStarted:
		return ErrActorNotRunning
	case StateStopped:
		return ErrActorAlreadyStopped
	}

	ran := false
	c.stopOnce.Do(func() {
		ran = true
		c.doStop(silent, presetUnclean)
	})

	if !ran {
		return ErrActorAlreadyStopped
	}

	return nil
}

// doStop performs the actual state transition exactly once; see
// stopInternal.
func (c *Cell) doStop(silent bool, presetUnclean string) {
	if c.State() == StateRunning {
		_ = c.Pause()
	}

	unclean := presetUnclean
	if c.proc != nil {
		c.proc.cancel()

		select {
		case <-c.bodyExited:

		case <-time.After(c.stopTimeout):
			if unclean == "" {
				unclean = "refused to stop: body did not exit " +
					"after cancellation within the stop timeout"
			}
		}
	}

	c.mu.Lock()
	kids := append([]*Cell(nil), c.children...)
	c.children = nil
	c.mu.Unlock()

	for _, kid := range kids {
		_ = kid.stopInternal(true, "")
	}

	c.state.Store(int32(StateStopped))
	c.terminal.Complete(fn.Ok(Terminal{}))

	debugS(context.Background(), "cell stopped", "cell_id", c.id,
		"unclean", unclean != "")

	parent := c.getParent()
	if parent == nil {
		return
	}

	if !silent {
		if unclean != "" {
			parent.Send(context.Background(),
				StoppedUncleanMsg{Child: c, Reason: unclean})
		} else {
			parent.Send(context.Background(), StoppedMsg{Child: c})
		}
	}

	parent.removeChild(c)
}

// Spawn constructs a child cell from opts, links it under c, starts it, and
// returns it (spec.md §4.7).
func (c *Cell) Spawn(opts ...CellOption) *Cell {
	child := NewCell(opts...)

	c.mu.Lock()
	child.parent = c
	c.children = append(c.children, child)
	c.mu.Unlock()

	_ = child.Start()

	return child
}

// put sends message to the cell's single connected downstream peer, used
// by Proc.Put.
func (c *Cell) put(ctx context.Context, message any) error {
	if c.downstream == nil {
		return ErrNoRoute
	}

	return c.downstream.Send(ctx, message)
}

func (c *Cell) getParent() *Cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.parent
}

func (c *Cell) removeChild(child *Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, kid := range c.children {
		if kid == child {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return
		}
	}
}

// Children returns a snapshot of the cell's current children, in insertion
// order. Used by tests and by diagnostics; not part of the body-authoring
// interface.
func (c *Cell) Children() []*Cell {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Cell(nil), c.children...)
}

// NewRoot builds the synthetic parent of spec.md §4.7: a pre-started
// handler cell that logs terminal events, for use as the root of a cell
// tree (grounded in original_source/spinoff's ActorRunner).
func NewRoot(opts ...CellOption) *Cell {
	runnerHandler := func(ctx context.Context, self *Cell, message any) error {
		switch m := message.(type) {
		case StoppedMsg:
			infoS(ctx, "root: child terminated", "child_id", m.Child.ID())

		case StoppedUncleanMsg:
			warnS(ctx, "root: child terminated uncleanly",
				"child_id", m.Child.ID(), "reason", m.Reason)

		case ErrorReportMsg:
			errorS(ctx, "root: child raised", m.Err, "child_id", m.Child.ID())

		default:
			debugS(ctx, "root: received message", "type", fmt.Sprintf("%T", message))
		}

		return nil
	}

	cfg := append([]CellOption{WithHandler(runnerHandler)}, opts...)
	root := NewCell(cfg...)
	_ = root.Start()

	return root
}
