package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/cache"
	"bluff-lite/apps/server/internal/chat"
	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/monitoring"
	"bluff-lite/apps/server/internal/recovery"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

var log = logrus.WithField("component", "decision")

// Config bounds the time spent on one decision and on each guarded update.
type Config struct {
	SignalTimeout time.Duration
	Budget        time.Duration
	LockTTL       time.Duration
	// LoadTimeout bounds the first read of an opponent's pattern record.
	// It is independent of the caller's deadline.
	LoadTimeout time.Duration
	Retry       recovery.Policy
}

func (c Config) withDefaults() Config {
	if c.SignalTimeout <= 0 {
		c.SignalTimeout = DefaultSignalTimeout
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.LockTTL <= 0 {
		c.LockTTL = lock.DefaultTTL
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
	return c
}

// Deps are the collaborators of a Decider. Nil fields get in-process
// defaults, except Store and Cache: nil disables them.
type Deps struct {
	Policy     *npc.Policy
	Advisor    npc.Advisor
	Patterns   *npc.PatternBook
	Brain      *npc.RuleBrain
	Difficulty npc.Modulator
	Monitor    *monitoring.Monitor
	Store      *store.Store
	Cache      cache.DecisionCache
	Locker     lock.Locker
	Chat       chat.Analyzer
	Config     Config
}

// Decider turns game states into AI actions and learns from their
// outcomes. It is safe for concurrent use.
type Decider struct {
	policy     *npc.Policy
	advisor    npc.Advisor
	patterns   *npc.PatternBook
	brain      *npc.RuleBrain
	difficulty npc.Modulator
	monitor    *monitoring.Monitor
	store      *store.Store
	cache      cache.DecisionCache
	locker     lock.Locker
	chat       chat.Analyzer
	cfg        Config
}

func New(deps Deps) *Decider {
	seed := time.Now().UnixNano()
	d := &Decider{
		policy:     deps.Policy,
		advisor:    deps.Advisor,
		patterns:   deps.Patterns,
		brain:      deps.Brain,
		difficulty: deps.Difficulty,
		monitor:    deps.Monitor,
		store:      deps.Store,
		cache:      deps.Cache,
		locker:     deps.Locker,
		chat:       deps.Chat,
		cfg:        deps.Config.withDefaults(),
	}
	if d.policy == nil {
		d.policy = npc.NewPolicy(npc.DefaultPolicyConfig(), seed)
	}
	if d.advisor == nil {
		d.advisor = d.policy
	}
	if d.patterns == nil {
		d.patterns = npc.NewPatternBook()
	}
	if d.brain == nil {
		d.brain = npc.NewRuleBrain(nil, npc.DefaultFusion(), seed)
	}
	if d.difficulty == nil {
		d.difficulty = npc.DefaultDifficulty()
	}
	if d.locker == nil {
		d.locker = lock.NewMemory()
	}
	if d.monitor == nil {
		d.monitor = monitoring.New(d.store, d.locker)
	}
	return d
}

// Monitor exposes the decision monitor, e.g. for HTTP handlers.
func (d *Decider) Monitor() *monitoring.Monitor { return d.monitor }

// Load restores the policy table and monitoring documents. Unreadable
// documents are logged and replaced by empty ones; Load never fails.
func (d *Decider) Load(ctx context.Context) {
	if d.store == nil {
		return
	}
	var table npc.PolicyTable
	err := d.store.Load(ctx, store.PolicyTableKey, &table)
	if err == nil {
		err = d.policy.Restore(table)
	}
	switch {
	case err == nil:
		log.WithField("states", d.policy.Len()).Info("policy table restored")
	case errors.Is(err, store.ErrNotFound):
		log.Info("no policy table stored, starting empty")
	default:
		log.WithError(err).Warn("policy table unreadable, starting empty")
		_ = d.policy.Restore(npc.PolicyTable{})
	}
	if err := d.monitor.Load(ctx); err != nil {
		log.WithError(err).Warn("monitoring documents partially restored")
	}
}

// Decide returns the AI's action for gs. message is the opponent's latest
// chat line and may be empty. Decide never fails: problems degrade to a
// Pass with StatusRecovered.
func (d *Decider) Decide(ctx context.Context, sess Session, gs bluff.GameState, message string) (res Result) {
	timer := prometheus.NewTimer(decideSeconds)
	defer timer.ObserveDuration()

	entry := log.WithFields(logrus.Fields{"game": sess.GameID, "opponent": sess.opponent()})
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("decide panicked")
			res = recovered("panic", fmt.Sprintf("internal error: %v", r))
		}
		decisionsTotal.WithLabelValues(res.Action.Type.String(), string(res.Source)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Budget)
	defer cancel()

	if err := gs.Validate(); err != nil {
		entry.WithError(err).Warn("invalid game state")
		return recovered("invalid_state", err.Error())
	}

	if action, ok := d.cached(ctx, sess, gs); ok {
		rec := d.monitor.RecordDecision(monitoring.DecisionRecord{
			GameID:     sess.GameID,
			OpponentID: sess.opponent(),
			State:      monitoring.Summarize(gs),
			Decision: monitoring.DecisionSummary{
				Type:   action.Type.String(),
				Source: string(SourceCache),
			},
		})
		d.flushMonitor(ctx)
		return Result{Action: action, Status: StatusOK, Source: SourceCache, DecisionID: rec.ID}
	}

	sig := d.gatherSignals(ctx, sess, gs, message)
	fused := d.brain.Fuse(gs, sig)
	snapshot := monitoring.SignalSnapshot{
		BluffProbability:     fused.BluffProbability,
		ChallengeProbability: fused.ChallengeProbability,
		PatternConfidence:    fused.PatternConfidence,
		RiskLevel:            fused.RiskLevel,
	}

	res = Result{Action: fused.Action, Status: StatusOK, Source: SourceFused, Signals: snapshot}
	if err := fused.Action.ValidateAgainst(gs); err != nil {
		entry.WithError(err).WithField("action", fused.Action.String()).Warn("fused action rejected")
		recoveredTotal.WithLabelValues("invalid_action").Inc()
		res.Action = bluff.Pass()
		res.Status = StatusRecovered
		res.Reason = err.Error()
		res.Source = SourceFallback
	}

	rec := d.monitor.RecordDecision(monitoring.DecisionRecord{
		GameID:     sess.GameID,
		OpponentID: sess.opponent(),
		State:      monitoring.Summarize(gs),
		Signals:    snapshot,
		Decision: monitoring.DecisionSummary{
			Type:         res.Action.Type.String(),
			Confidence:   fused.Confidence,
			Alternatives: fused.Alternatives,
			Source:       string(res.Source),
			Recovered:    res.Status == StatusRecovered,
		},
	})
	res.DecisionID = rec.ID
	d.flushMonitor(ctx)

	if d.cache != nil && res.Status == StatusOK {
		_, err := recovery.WithRetry(ctx, "cache.put", d.cfg.Retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d.cache.Put(ctx, sess.opponent(), gs, res.Action)
		})
		if err != nil {
			entry.WithError(err).Warn("cache put failed")
		}
	}

	entry.WithFields(logrus.Fields{
		"action":   res.Action.String(),
		"source":   res.Source,
		"decision": res.DecisionID,
	}).Debug("decided")
	return res
}

func recovered(reason, detail string) Result {
	recoveredTotal.WithLabelValues(reason).Inc()
	return Result{
		Action: bluff.Pass(),
		Status: StatusRecovered,
		Reason: detail,
		Source: SourceFallback,
	}
}

type cacheHit struct {
	action bluff.Action
	ok     bool
}

// cached returns a cached action that is still playable from gs. A stale
// or unplayable entry is dropped.
func (d *Decider) cached(ctx context.Context, sess Session, gs bluff.GameState) (bluff.Action, bool) {
	if d.cache == nil {
		return bluff.Action{}, false
	}
	hit, _ := recovery.WithFallback(ctx, "cache.get",
		func(ctx context.Context) (cacheHit, error) {
			a, ok, err := d.cache.Get(ctx, sess.opponent(), gs)
			return cacheHit{action: a, ok: ok}, err
		},
		func(context.Context) cacheHit { return cacheHit{} })
	if !hit.ok {
		return bluff.Action{}, false
	}
	if err := hit.action.ValidateAgainst(gs); err != nil {
		log.WithError(err).WithField("opponent", sess.opponent()).Warn("dropping unplayable cached action")
		if ierr := d.cache.Invalidate(ctx, sess.opponent(), gs); ierr != nil {
			log.WithError(ierr).Warn("cache invalidate failed")
		}
		return bluff.Action{}, false
	}
	return hit.action, true
}

func (d *Decider) flushMonitor(ctx context.Context) {
	_, err := recovery.WithRetry(ctx, "monitoring.flush", d.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.monitor.Flush(ctx)
	})
	if err != nil {
		persistenceFailures.WithLabelValues("monitoring").Inc()
		log.WithError(err).Warn("monitoring flush failed")
	}
}

// LearningProgress summarizes the policy table.
func (d *Decider) LearningProgress() npc.LearningProgress { return d.policy.Progress() }

func (d *Decider) PerformanceSnapshot() monitoring.ModelPerformance { return d.monitor.Performance() }

// RecentDecisions returns up to limit decision records, oldest first.
func (d *Decider) RecentDecisions(limit int) []monitoring.DecisionRecord {
	return d.monitor.Recent(limit)
}
