package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/loomwire/actorcore/internal/actor"
)

// demoRegistry maps a demo name to the CellOptions that build its body.
// Each entry is a small, self-contained illustration of one corner of the
// runtime: selective receive, ticking state, and supervision.
var demoRegistry = map[string]func() []actor.CellOption{
	"echo":       func() []actor.CellOption { return []actor.CellOption{actor.WithBody(echoBody)} },
	"counter":    func() []actor.CellOption { return []actor.CellOption{actor.WithBody(counterBody)} },
	"supervisor": func() []actor.CellOption { return []actor.CellOption{actor.WithBody(supervisorBody)} },
}

func demoNames() string {
	names := make([]string, 0, len(demoRegistry))
	for name := range demoRegistry {
		names = append(names, name)
	}
	sort.Strings(names)

	out := ""
	for i, name := range names {
		if i > 0 {
			out += ", "
		}
		out += name
	}

	return out
}

// echoBody receives any message and logs it back, demonstrating the
// simplest possible suspendable procedure: one Get per iteration.
func echoBody(p *actor.Proc) error {
	for {
		msg, err := p.Get(actor.Any())
		if err != nil {
			return err
		}

		fmt.Printf("actorrun/echo: %v\n", msg)
	}
}

// tick is the value delivered by each timer future counterBody awaits.
type tick struct{ n int }

// counterBody awaits a sequence of timer ticks, demonstrating Proc.Await
// suspending on an external awaitable instead of the mailbox.
func counterBody(p *actor.Proc) error {
	for n := 1; ; n++ {
		val, err := p.Await(actor.Await(newTimerFuture(n, 200*time.Millisecond)))
		if err != nil {
			return err
		}

		fmt.Printf("actorrun/counter: tick %v\n", val)
	}
}

// newTimerFuture resolves once, after d, with tick{n}.
func newTimerFuture(n int, d time.Duration) actor.Future[tick] {
	promise := actor.NewPromise[tick]()

	go func() {
		time.Sleep(d)
		promise.Complete(fn.Ok(tick{n: n}))
	}()

	return promise.Future()
}

// supervisorBody spawns a child that always fails, then waits for the
// resulting escalation, demonstrating the parent/child supervision
// protocol (spec.md §4.6): an ErrorReportMsg arrives at the supervisor's
// mailbox exactly once per child failure.
func supervisorBody(p *actor.Proc) error {
	child := p.Spawn(actor.WithBody(failingChildBody))

	for {
		msg, err := p.Get(actor.Type[actor.ErrorReportMsg]())
		if err != nil {
			return err
		}

		report := msg.(actor.ErrorReportMsg)
		fmt.Printf(
			"actorrun/supervisor: child %s raised: %v\n",
			report.Child.ID(), report.Err,
		)

		if report.Child == child {
			return nil
		}
	}
}

func failingChildBody(p *actor.Proc) error {
	time.Sleep(200 * time.Millisecond)
	return errors.New("actorrun: demo child failing on purpose")
}
