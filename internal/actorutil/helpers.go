// Package actorutil provides ask-pattern and fan-out helpers layered on top
// of internal/actor's tell-only Cell API.
package actorutil

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/loomwire/actorcore/internal/actor"
)

// AskEnvelope wraps a payload with a one-shot reply target, the convention
// Ask uses to get a response out of a cell that only exposes Send. A body
// or handler that wants to support Ask replies by type-asserting its
// incoming message to AskEnvelope, unwrapping Payload, and eventually
// calling ReplyTo.Send(ctx, result).
type AskEnvelope struct {
	Payload any
	ReplyTo actor.TellTarget
}

// Ask sends payload to target wrapped in an AskEnvelope and blocks until a
// reply arrives or ctx is done. It spins up a short-lived handler cell as
// the reply address, mirroring the teacher's Ask-over-Future convenience
// functions but adapted to the dynamic, pattern-matched message model:
// there is no per-actor reply type to parameterize over, so the reply
// cell simply forwards whatever it receives into a Promise. A reply whose
// dynamic type is error is treated as a handler-signaled failure and
// surfaced as Ask's error return, rather than as a successful value.
func Ask(ctx context.Context, target actor.TellTarget, payload any) (any, error) {
	promise := actor.NewPromise[any]()

	replyCell := actor.NewCell(actor.WithHandler(
		func(_ context.Context, _ *actor.Cell, message any) error {
			if errVal, ok := message.(error); ok {
				promise.Complete(fn.Err[any](errVal))
				return nil
			}
			promise.Complete(fn.Ok(message))
			return nil
		},
	))
	if err := replyCell.Start(); err != nil {
		return nil, err
	}
	defer func() { _ = replyCell.Stop() }()

	if err := target.Send(ctx, AskEnvelope{Payload: payload, ReplyTo: replyCell}); err != nil {
		return nil, err
	}

	return promise.Future().Await(ctx).Unpack()
}

// AskTyped is like Ask, but additionally type-asserts the reply against T.
func AskTyped[T any](ctx context.Context, target actor.TellTarget, payload any) (T, error) {
	reply, err := Ask(ctx, target, payload)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := reply.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("actorutil: unexpected reply type: got %T, want %T",
			reply, zero)
	}

	return typed, nil
}

// TellAll sends msg to every target, fire-and-forget, ignoring individual
// send errors (a target that refuses delivery — e.g. a stopped cell — is
// simply skipped).
func TellAll(ctx context.Context, targets []actor.TellTarget, msg any) {
	for _, target := range targets {
		_ = target.Send(ctx, msg)
	}
}

// ParallelAsk sends msgs[i] to targets[i] concurrently and collects every
// response. targets and msgs must have the same length. Results are
// returned in the same order as targets.
func ParallelAsk(ctx context.Context, targets []actor.TellTarget, msgs []any) []fn.Result[any] {
	if len(targets) != len(msgs) {
		panic("actorutil: targets and msgs must have the same length")
	}

	type indexed struct {
		idx int
		res fn.Result[any]
	}

	resultCh := make(chan indexed, len(targets))
	for i, target := range targets {
		go func(idx int, t actor.TellTarget, msg any) {
			val, err := Ask(ctx, t, msg)
			if err != nil {
				resultCh <- indexed{idx: idx, res: fn.Err[any](err)}
				return
			}
			resultCh <- indexed{idx: idx, res: fn.Ok(val)}
		}(i, target, msgs[i])
	}

	results := make([]fn.Result[any], len(targets))
	for range targets {
		r := <-resultCh
		results[r.idx] = r.res
	}

	return results
}

// ParallelAskSame sends the same msg to every target concurrently and
// collects every response, in target order.
func ParallelAskSame(ctx context.Context, targets []actor.TellTarget, msg any) []fn.Result[any] {
	msgs := make([]any, len(targets))
	for i := range msgs {
		msgs[i] = msg
	}

	return ParallelAsk(ctx, targets, msgs)
}

// FirstSuccess sends msg to every target concurrently and returns the
// first successful reply, cancelling the rest. If every target fails, the
// last observed error is returned.
func FirstSuccess(ctx context.Context, targets []actor.TellTarget, msg any) (any, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("actorutil: no targets provided")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		val any
		err error
	}

	resultCh := make(chan result, len(targets))
	for _, target := range targets {
		go func(t actor.TellTarget) {
			val, err := Ask(ctx, t, msg)
			select {
			case resultCh <- result{val: val, err: err}:
			case <-ctx.Done():
			}
		}(target)
	}

	var lastErr error
	for i := 0; i < len(targets); i++ {
		select {
		case r := <-resultCh:
			if r.err == nil {
				return r.val, nil
			}
			lastErr = r.err

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// MapResponses transforms a slice of results using mapFn, passing errors
// through unchanged.
func MapResponses[R any, T any](results []fn.Result[R], mapFn func(R) T) []fn.Result[T] {
	mapped := make([]fn.Result[T], len(results))
	for i, r := range results {
		val, err := r.Unpack()
		if err != nil {
			mapped[i] = fn.Err[T](err)
		} else {
			mapped[i] = fn.Ok(mapFn(val))
		}
	}

	return mapped
}

// CollectSuccesses returns only the successful values in results, discarding
// errors.
func CollectSuccesses[R any](results []fn.Result[R]) []R {
	var successes []R
	for _, r := range results {
		if val, err := r.Unpack(); err == nil {
			successes = append(successes, val)
		}
	}

	return successes
}

// AllSucceeded reports whether every result in results is successful.
func AllSucceeded[R any](results []fn.Result[R]) bool {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return false
		}
	}

	return true
}

// FirstError returns the first error in results, or nil if every result
// succeeded.
func FirstError[R any](results []fn.Result[R]) error {
	for _, r := range results {
		if _, err := r.Unpack(); err != nil {
			return err
		}
	}

	return nil
}
