package decision

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/recovery"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

// predictor returns the opponent's pattern predictor, loading its stored
// record on first use. The read is detached from ctx so a short signal
// deadline cannot cut it off. A missing or unreadable record starts the
// opponent empty; any other failure is returned and retried next call.
func (d *Decider) predictor(ctx context.Context, sess Session) (*npc.PatternPredictor, error) {
	id := sess.opponent()
	var load func() (*npc.PatternRecord, error)
	if d.store != nil {
		load = func() (*npc.PatternRecord, error) {
			lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.LoadTimeout)
			defer cancel()

			var rec npc.PatternRecord
			err := d.store.Load(lctx, store.PatternRecordKey(id), &rec)
			switch {
			case err == nil:
				return &rec, nil
			case errors.Is(err, store.ErrNotFound):
				return nil, nil
			case errors.Is(err, store.ErrSchema):
				log.WithError(err).WithField("opponent", id).Warn("pattern record unreadable, starting empty")
				return nil, nil
			default:
				return nil, err
			}
		}
	}
	return d.patterns.GetOrLoad(id, load)
}

// RecordOutcome feeds a resolved AI move to the policy, the opponent's
// reply (if any) to the pattern predictor, and the result to monitoring.
// Guarded updates whose lock is unavailable are skipped; the returned
// error joins every failure for the caller to log.
func (d *Decider) RecordOutcome(ctx context.Context, sess Session, o Outcome) error {
	for _, err := range []error{o.State.Validate(), o.NextState.Validate(), o.Action.Validate()} {
		if err != nil {
			return err
		}
	}
	entry := log.WithFields(logrus.Fields{"game": sess.GameID, "opponent": sess.opponent()})

	var errs []error
	err := lock.WithLock(ctx, d.locker, store.PolicyTableKey, d.cfg.LockTTL, func(ctx context.Context) error {
		if err := d.syncPolicy(ctx); err != nil {
			return err
		}
		d.policy.Update(o.State, o.Action, o.Reward, o.NextState)
		return d.save(ctx, store.PolicyTableKey, "policyTable", func() any { return d.policy.Snapshot() })
	})
	if err != nil {
		d.guardFailed(entry, store.PolicyTableKey, err)
		errs = append(errs, err)
	}

	if o.OpponentMove != nil {
		if err := d.ObserveOpponent(ctx, sess, *o.OpponentMove); err != nil {
			errs = append(errs, err)
		}
	}

	if o.DecisionID != "" {
		if err := d.monitor.RecordOutcome(o.DecisionID, o.Successful, o.Reward); err != nil {
			entry.WithError(err).Warn("outcome not attached to decision")
			errs = append(errs, err)
		} else {
			d.flushMonitor(ctx)
		}
	}

	d.StateProgressed(ctx, sess, o.State)
	return errors.Join(errs...)
}

// syncPolicy merges the stored policy table into memory so that updates
// written by other processes sharing the store are not overwritten. It
// runs under the policyTable lock.
func (d *Decider) syncPolicy(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	table, err := recovery.WithRetry(ctx, "store.policyTable.load", d.cfg.Retry, func(ctx context.Context) (npc.PolicyTable, error) {
		var t npc.PolicyTable
		err := d.store.Load(ctx, store.PolicyTableKey, &t)
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrSchema) {
			return t, recovery.Permanent(err)
		}
		return t, err
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case errors.Is(err, store.ErrSchema):
		log.WithError(err).Warn("stored policy table unreadable, keeping memory")
		return nil
	case err != nil:
		return err
	}
	n, err := d.policy.Merge(table)
	if err != nil {
		log.WithError(err).Warn("stored policy table invalid, keeping memory")
		return nil
	}
	if n > 0 {
		log.WithField("entries", n).Debug("adopted stored policy entries")
	}
	return nil
}

// ObserveOpponent feeds one resolved opponent move to that opponent's
// pattern predictor and persists the record.
func (d *Decider) ObserveOpponent(ctx context.Context, sess Session, obs npc.Observation) error {
	if err := obs.Action.Validate(); err != nil {
		return err
	}
	id := sess.opponent()
	key := store.PatternRecordKey(id)
	entry := log.WithFields(logrus.Fields{"game": sess.GameID, "opponent": id})

	err := lock.WithLock(ctx, d.locker, key, d.cfg.LockTTL, func(ctx context.Context) error {
		pred, err := d.predictor(ctx, sess)
		if err != nil {
			return err
		}
		pred.Observe(obs)
		return d.save(ctx, key, "patternRecord", func() any { return pred.Snapshot() })
	})
	if err != nil {
		d.guardFailed(entry, key, err)
	}
	return err
}

// StateProgressed drops any cached decision for gs. Callers invoke it once
// a move has been applied to gs.
func (d *Decider) StateProgressed(ctx context.Context, sess Session, gs bluff.GameState) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Invalidate(ctx, sess.opponent(), gs); err != nil {
		log.WithError(err).WithField("opponent", sess.opponent()).Warn("cache invalidate failed")
	}
}

// RecordGameEnd counts a finished game. The win rate drives difficulty,
// so every cached decision is dropped.
func (d *Decider) RecordGameEnd(ctx context.Context, sess Session, aiWon bool) {
	d.monitor.RecordGameResult(aiWon)
	d.flushMonitor(ctx)
	log.WithFields(logrus.Fields{"game": sess.GameID, "opponent": sess.opponent(), "ai_won": aiWon}).Info("game recorded")
	if d.cache == nil {
		return
	}
	if err := d.cache.InvalidateAll(ctx); err != nil {
		log.WithError(err).Warn("cache invalidate-all failed")
	}
}

// save persists doc() under key with retries. Without a store it is a no-op.
func (d *Decider) save(ctx context.Context, key, document string, doc func() any) error {
	if d.store == nil {
		return nil
	}
	_, err := recovery.WithRetry(ctx, "store."+document, d.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		err := d.store.Save(ctx, key, doc())
		if errors.Is(err, store.ErrInvalidKey) || errors.Is(err, store.ErrSchema) ||
			errors.Is(err, store.ErrTooLarge) || errors.Is(err, store.ErrTooManyElements) {
			return struct{}{}, recovery.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		persistenceFailures.WithLabelValues(document).Inc()
	}
	return err
}

func (d *Decider) guardFailed(entry *logrus.Entry, key string, err error) {
	if errors.Is(err, lock.ErrNotAcquired) {
		lockSkips.WithLabelValues(lockLabel(key)).Inc()
		entry.WithError(err).WithField("key", key).Warn("update skipped, lock unavailable")
		return
	}
	entry.WithError(err).WithField("key", key).Warn("guarded update failed")
}

func lockLabel(key string) string {
	if key == store.PolicyTableKey {
		return key
	}
	return "patternRecord"
}
