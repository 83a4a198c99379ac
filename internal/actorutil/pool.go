package actorutil

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/loomwire/actorcore/internal/actor"
)

// Pool distributes messages across a fixed set of sibling cells using
// round-robin scheduling, spreading load horizontally across identically
// configured workers. Pool itself satisfies actor.TellTarget, so a pool can
// be passed anywhere a single cell can (e.g. as another cell's downstream).
type Pool struct {
	id    string
	cells []*actor.Cell
	next  atomic.Uint64
}

// PoolConfig configures a new Pool.
type PoolConfig struct {
	// ID names the pool; each member cell is named "<ID>-<index>".
	ID string

	// Size is the number of member cells to create. Defaults to 1.
	Size int

	// Factory returns the CellOptions (a WithHandler or WithBody, plus
	// any of HWM/downstream/etc.) for pool member idx.
	Factory func(idx int) []actor.CellOption
}

// NewPool creates and starts Size member cells, each built from Factory.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}

	p := &Pool{id: cfg.ID, cells: make([]*actor.Cell, cfg.Size)}

	for i := 0; i < cfg.Size; i++ {
		opts := append(
			[]actor.CellOption{actor.WithID(fmt.Sprintf("%s-%d", cfg.ID, i))},
			cfg.Factory(i)...,
		)

		cell := actor.NewCell(opts...)
		_ = cell.Start()
		p.cells[i] = cell
	}

	return p
}

// ID returns the pool's identifier.
func (p *Pool) ID() string {
	return p.id
}

// Size returns the number of member cells.
func (p *Pool) Size() int {
	return len(p.cells)
}

// Cells returns a copy of the pool's member cells.
func (p *Pool) Cells() []*actor.Cell {
	cells := make([]*actor.Cell, len(p.cells))
	copy(cells, p.cells)

	return cells
}

func (p *Pool) pick() *actor.Cell {
	idx := p.next.Add(1) % uint64(len(p.cells))
	return p.cells[idx]
}

// Send implements actor.TellTarget by forwarding to the next member in
// round-robin order.
func (p *Pool) Send(ctx context.Context, msg any) error {
	return p.pick().Send(ctx, msg)
}

// Tell is an alias for Send, kept for call-site symmetry with Ask.
func (p *Pool) Tell(ctx context.Context, msg any) error {
	return p.Send(ctx, msg)
}

// Ask sends msg to the next member in round-robin order via the ask
// pattern (see actorutil.Ask) and returns its reply.
func (p *Pool) Ask(ctx context.Context, msg any) (any, error) {
	return Ask(ctx, p.pick(), msg)
}

// Broadcast sends msg to every member cell.
func (p *Pool) Broadcast(ctx context.Context, msg any) {
	for _, cell := range p.cells {
		_ = cell.Send(ctx, msg)
	}
}

// BroadcastAsk sends msg to every member cell via the ask pattern and
// collects every reply, in member order.
func (p *Pool) BroadcastAsk(ctx context.Context, msg any) []fn.Result[any] {
	targets := make([]actor.TellTarget, len(p.cells))
	for i, cell := range p.cells {
		targets[i] = cell
	}

	return ParallelAskSame(ctx, targets, msg)
}

// Stop stops every member cell and waits for each to reach STOPPED.
func (p *Pool) Stop() {
	for _, cell := range p.cells {
		_ = cell.Stop()
	}

	for _, cell := range p.cells {
		cell.Done().Await(context.Background())
	}
}
