package actorutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/loomwire/actorcore/internal/actor"
)

// doublingHandler replies to an AskEnvelope carrying an int with twice its
// value, or fails if failWith is set.
func doublingHandler(received *atomic.Int64, delay time.Duration, failWith error) actor.Handler {
	return func(ctx context.Context, self *actor.Cell, message any) error {
		env, ok := message.(AskEnvelope)
		if !ok {
			return nil
		}

		received.Add(1)

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return env.ReplyTo.Send(ctx, ctx.Err())
			}
		}

		if failWith != nil {
			return env.ReplyTo.Send(ctx, failWith)
		}

		value := env.Payload.(int)
		return env.ReplyTo.Send(ctx, value*2)
	}
}

func newDoublingCell(id string, received *atomic.Int64, delay time.Duration, failWith error) *actor.Cell {
	cell := actor.NewCell(
		actor.WithID(id),
		actor.WithHandler(doublingHandler(received, delay, failWith)),
	)
	_ = cell.Start()

	return cell
}

// TestAsk exercises the ask-pattern helper against a handler cell that
// replies directly to the envelope's ReplyTo.
func TestAsk(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	cell := newDoublingCell("ask-basic", &received, 0, nil)
	defer func() { _ = cell.Stop() }()

	reply, err := Ask(context.Background(), cell, 21)
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}

	if reply != 42 {
		t.Errorf("expected 42, got %v", reply)
	}

	if received.Load() != 1 {
		t.Errorf("expected 1 message received, got %d", received.Load())
	}
}

// TestAsk_ContextCancelled verifies Ask respects context cancellation while
// waiting on a slow reply.
func TestAsk_ContextCancelled(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	cell := newDoublingCell("ask-slow", &received, 100*time.Millisecond, nil)
	defer func() { _ = cell.Stop() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Ask(ctx, cell, 10)
	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
}

// TestAskTyped exercises the type-asserting variant of Ask.
func TestAskTyped(t *testing.T) {
	t.Parallel()

	var received atomic.Int64
	cell := newDoublingCell("ask-typed", &received, 0, nil)
	defer func() { _ = cell.Stop() }()

	result, err := AskTyped[int](context.Background(), cell, 5)
	if err != nil {
		t.Fatalf("AskTyped returned error: %v", err)
	}

	if result != 10 {
		t.Errorf("expected 10, got %d", result)
	}
}

// TestAskTyped_WrongType verifies AskTyped rejects a reply of the wrong
// dynamic type.
func TestAskTyped_WrongType(t *testing.T) {
	t.Parallel()

	cell := actor.NewCell(actor.WithID("ask-typed-wrong"), actor.WithHandler(
		func(ctx context.Context, self *actor.Cell, message any) error {
			env := message.(AskEnvelope)
			return env.ReplyTo.Send(ctx, "not an int")
		},
	))
	_ = cell.Start()
	defer func() { _ = cell.Stop() }()

	_, err := AskTyped[int](context.Background(), cell, 1)
	if err == nil {
		t.Fatal("expected a type-mismatch error")
	}
}

// discardTarget implements actor.TellTarget by discarding everything sent
// to it, used where TellAll's fire-and-forget semantics don't need a reply.
type discardTarget struct{}

func (discardTarget) Send(context.Context, any) error { return nil }

// TestTellAll verifies every target receives the message.
func TestTellAll(t *testing.T) {
	t.Parallel()

	const numCells = 3

	var receiveds [numCells]atomic.Int64
	targets := make([]actor.TellTarget, numCells)

	for i := range targets {
		cell := newDoublingCell("tell-all", &receiveds[i], 0, nil)
		targets[i] = cell
		defer func(c *actor.Cell) { _ = c.Stop() }(cell)
	}

	TellAll(context.Background(), targets, AskEnvelope{Payload: 1, ReplyTo: discardTarget{}})

	time.Sleep(50 * time.Millisecond)

	for i := range receiveds {
		if receiveds[i].Load() != 1 {
			t.Errorf("target %d: expected 1 received message, got %d", i, receiveds[i].Load())
		}
	}
}

// TestParallelAsk verifies per-target messages are matched back up by
// index.
func TestParallelAsk(t *testing.T) {
	t.Parallel()

	const numCells = 3

	var receiveds [numCells]atomic.Int64
	targets := make([]actor.TellTarget, numCells)
	msgs := make([]any, numCells)

	for i := range targets {
		cell := newDoublingCell("parallel-ask", &receiveds[i], 0, nil)
		targets[i] = cell
		msgs[i] = (i + 1) * 10
		defer func(c *actor.Cell) { _ = c.Stop() }(cell)
	}

	results := ParallelAsk(context.Background(), targets, msgs)
	if len(results) != numCells {
		t.Fatalf("expected %d results, got %d", numCells, len(results))
	}

	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			t.Errorf("result %d: unexpected error: %v", i, err)
			continue
		}

		expected := (i + 1) * 10 * 2
		if val != expected {
			t.Errorf("result %d: expected %d, got %v", i, expected, val)
		}
	}
}

// TestParallelAsk_Panic verifies the length mismatch guard.
func TestParallelAsk_Panic(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for mismatched slice lengths")
		}
	}()

	var received atomic.Int64
	cell := newDoublingCell("parallel-panic", &received, 0, nil)
	defer func() { _ = cell.Stop() }()

	ParallelAsk(context.Background(),
		[]actor.TellTarget{cell}, []any{1, 2})
}

// TestParallelAskSame verifies the same message reaches every target.
func TestParallelAskSame(t *testing.T) {
	t.Parallel()

	const numCells = 3

	var receiveds [numCells]atomic.Int64
	targets := make([]actor.TellTarget, numCells)

	for i := range targets {
		cell := newDoublingCell("parallel-same", &receiveds[i], 0, nil)
		targets[i] = cell
		defer func(c *actor.Cell) { _ = c.Stop() }(cell)
	}

	results := ParallelAskSame(context.Background(), targets, 50)
	if len(results) != numCells {
		t.Fatalf("expected %d results, got %d", numCells, len(results))
	}

	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			t.Errorf("result %d: unexpected error: %v", i, err)
			continue
		}

		if val != 100 {
			t.Errorf("result %d: expected 100, got %v", i, val)
		}
	}
}

// TestFirstSuccess verifies the first successful reply wins.
func TestFirstSuccess(t *testing.T) {
	t.Parallel()

	failErr := errors.New("intentional failure")

	var r1, r2, r3 atomic.Int64
	a1 := newDoublingCell("fail-1", &r1, 20*time.Millisecond, failErr)
	a2 := newDoublingCell("fail-2", &r2, 20*time.Millisecond, failErr)
	a3 := newDoublingCell("success", &r3, 10*time.Millisecond, nil)
	defer func() { _ = a1.Stop() }()
	defer func() { _ = a2.Stop() }()
	defer func() { _ = a3.Stop() }()

	targets := []actor.TellTarget{a1, a2, a3}

	result, err := FirstSuccess(context.Background(), targets, 25)
	if err != nil {
		t.Fatalf("FirstSuccess returned error: %v", err)
	}

	if result != 50 {
		t.Errorf("expected 50, got %v", result)
	}
}

// TestFirstSuccess_AllFail verifies the last error is surfaced when every
// target fails.
func TestFirstSuccess_AllFail(t *testing.T) {
	t.Parallel()

	failErr := errors.New("intentional failure")

	var r1, r2 atomic.Int64
	a1 := newDoublingCell("fail-all-1", &r1, 0, failErr)
	a2 := newDoublingCell("fail-all-2", &r2, 0, failErr)
	defer func() { _ = a1.Stop() }()
	defer func() { _ = a2.Stop() }()

	_, err := FirstSuccess(context.Background(), []actor.TellTarget{a1, a2}, 10)
	if err == nil {
		t.Fatal("expected error when every target fails")
	}
}

// TestFirstSuccess_NoTargets verifies the empty-input guard.
func TestFirstSuccess_NoTargets(t *testing.T) {
	t.Parallel()

	_, err := FirstSuccess(context.Background(), nil, 10)
	if err == nil {
		t.Fatal("expected error for empty target slice")
	}
}

// TestMapResponses verifies success and error results are handled
// correctly.
func TestMapResponses(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")

	results := []fn.Result[int]{
		fn.Ok(10),
		fn.Err[int](testErr),
		fn.Ok(20),
	}

	mapped := MapResponses(results, func(v int) int { return v * 2 })
	if len(mapped) != 3 {
		t.Fatalf("expected 3 mapped results, got %d", len(mapped))
	}

	v1, err := mapped[0].Unpack()
	if err != nil || v1 != 20 {
		t.Errorf("mapped[0]: expected 20, got %d (err %v)", v1, err)
	}

	if _, err := mapped[1].Unpack(); !errors.Is(err, testErr) {
		t.Errorf("mapped[1]: expected test error, got %v", err)
	}

	v3, err := mapped[2].Unpack()
	if err != nil || v3 != 40 {
		t.Errorf("mapped[2]: expected 40, got %d (err %v)", v3, err)
	}
}

// TestCollectSuccesses verifies only successes are kept, in order.
func TestCollectSuccesses(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")

	results := []fn.Result[int]{
		fn.Ok(10), fn.Err[int](testErr), fn.Ok(20), fn.Err[int](testErr), fn.Ok(30),
	}

	successes := CollectSuccesses(results)
	expected := []int{10, 20, 30}

	if len(successes) != len(expected) {
		t.Fatalf("expected %d successes, got %d", len(expected), len(successes))
	}

	for i, v := range successes {
		if v != expected[i] {
			t.Errorf("successes[%d]: expected %d, got %d", i, expected[i], v)
		}
	}
}

// TestAllSucceeded covers the boolean aggregation over a table of cases.
func TestAllSucceeded(t *testing.T) {
	t.Parallel()

	testErr := errors.New("test error")

	tests := []struct {
		name     string
		results  []fn.Result[int]
		expected bool
	}{
		{"all success", []fn.Result[int]{fn.Ok(1), fn.Ok(2), fn.Ok(3)}, true},
		{"one failure", []fn.Result[int]{fn.Ok(1), fn.Err[int](testErr), fn.Ok(3)}, false},
		{"all failures", []fn.Result[int]{fn.Err[int](testErr), fn.Err[int](testErr)}, false},
		{"empty", []fn.Result[int]{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllSucceeded(tc.results); got != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

// TestFirstError covers the first-error lookup over a table of cases.
func TestFirstError(t *testing.T) {
	t.Parallel()

	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	tests := []struct {
		name     string
		results  []fn.Result[int]
		expected error
	}{
		{"all success", []fn.Result[int]{fn.Ok(1), fn.Ok(2)}, nil},
		{"first is error", []fn.Result[int]{fn.Err[int](err1), fn.Ok(2)}, err1},
		{"second is error", []fn.Result[int]{fn.Ok(1), fn.Err[int](err2)}, err2},
		{"empty", []fn.Result[int]{}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FirstError(tc.results); !errors.Is(got, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}
