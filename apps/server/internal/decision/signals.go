package decision

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

// gatherSignals queries every signal source concurrently. A source that
// fails, panics or outlives SignalTimeout contributes its neutral default.
func (d *Decider) gatherSignals(ctx context.Context, sess Session, gs bluff.GameState, message string) npc.Signals {
	sig := npc.NeutralSignals()
	timeout := d.cfg.SignalTimeout

	var g errgroup.Group
	g.Go(func() error {
		if v, err := runSignal(ctx, timeout, "policy", func(context.Context) (bluff.ActionKey, error) {
			return d.advisor.Suggest(gs), nil
		}); err == nil {
			sig.Suggestion = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := runSignal(ctx, timeout, "pattern", func(ctx context.Context) (npc.Prediction, error) {
			pred, err := d.predictor(ctx, sess)
			if err != nil {
				return npc.Prediction{}, err
			}
			return pred.Predict(), nil
		}); err == nil {
			sig.Prediction = v
		}
		return nil
	})
	g.Go(func() error {
		if v, err := runSignal(ctx, timeout, "difficulty", func(context.Context) (npc.Modifiers, error) {
			return d.difficulty.Modifiers(d.monitor.Skill()), nil
		}); err == nil {
			sig.Modifiers = v
		}
		return nil
	})
	if d.chat != nil && message != "" {
		g.Go(func() error {
			if v, err := runSignal(ctx, timeout, "chat", func(ctx context.Context) (*float64, error) {
				a, err := d.chat.Analyze(ctx, message)
				if err != nil || !a.HasBluffSignal() {
					return nil, err
				}
				p := a.BluffIndicators.Probability
				return &p, nil
			}); err == nil {
				sig.ChatBluff = v
			}
			return nil
		})
	}
	_ = g.Wait()
	return sig
}

// runSignal runs fn with its own deadline. The returned error is a
// *SignalError, already logged and counted.
func runSignal[T any](ctx context.Context, timeout time.Duration, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()

	var zero T
	var err error
	select {
	case r := <-ch:
		if r.err == nil {
			return r.v, nil
		}
		err = r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	signalFailures.WithLabelValues(name).Inc()
	serr := &SignalError{Signal: name, Err: err}
	log.WithError(serr).Warn("signal replaced by neutral default")
	return zero, serr
}
