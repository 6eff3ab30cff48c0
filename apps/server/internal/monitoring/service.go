package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bluff-lite/apps/server/internal/lock"
	"bluff-lite/apps/server/internal/store"
	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

const (
	// MaxHistory caps the decision history and the game result log.
	MaxHistory = 1000
	// DefaultRecentLimit is used when Recent is called with limit <= 0.
	DefaultRecentLimit = 10
)

var log = logrus.WithField("component", "monitoring")

var (
	ErrUnknownDecision = errors.New("unknown decision")
	ErrOutcomeRecorded = errors.New("outcome already recorded")
)

type StateSummary struct {
	AICards     int         `json:"aiCards" validate:"gte=0"`
	PlayerCards int         `json:"playerCards" validate:"gte=0"`
	CenterPile  int         `json:"centerPile" validate:"gte=0"`
	CurrentTurn bluff.Actor `json:"currentTurn"`
}

func Summarize(gs bluff.GameState) StateSummary {
	return StateSummary{
		AICards:     len(gs.AIHand),
		PlayerCards: len(gs.PlayerHand),
		CenterPile:  len(gs.CenterPile),
		CurrentTurn: gs.CurrentTurn,
	}
}

type SignalSnapshot struct {
	BluffProbability     float64 `json:"bluffProbability" validate:"gte=0,lte=1"`
	ChallengeProbability float64 `json:"challengeProbability" validate:"gte=0,lte=1"`
	PatternConfidence    float64 `json:"patternConfidence" validate:"gte=0,lte=1"`
	RiskLevel            float64 `json:"riskLevel" validate:"gte=0,lte=1"`
}

type DecisionSummary struct {
	Type         string   `json:"type" validate:"oneof=PASS CHALLENGE PLAY_CARDS"`
	Confidence   float64  `json:"confidence" validate:"gte=0,lte=1"`
	Alternatives []string `json:"alternativesConsidered" validate:"max=64"`
	Source       string   `json:"source,omitempty"`
	Recovered    bool     `json:"recovered,omitempty"`
}

type Outcome struct {
	Successful bool    `json:"successful"`
	Reward     float64 `json:"reward"`
}

// DecisionRecord is one decision and, once known, its outcome.
type DecisionRecord struct {
	ID         string          `json:"id" validate:"required"`
	GameID     string          `json:"gameId,omitempty"`
	OpponentID string          `json:"opponentId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	State      StateSummary    `json:"gameState"`
	Signals    SignalSnapshot  `json:"signals"`
	Decision   DecisionSummary `json:"decision"`
	Outcome    *Outcome        `json:"outcome,omitempty"`
}

type ModelPerformance struct {
	Accuracy             float64 `json:"accuracy" validate:"gte=0,lte=1"`
	BluffSuccessRate     float64 `json:"bluffSuccessRate" validate:"gte=0,lte=1"`
	ChallengeSuccessRate float64 `json:"challengeSuccessRate" validate:"gte=0,lte=1"`
	AverageReward        float64 `json:"averageReward"`
	WinRate              float64 `json:"winRate" validate:"gte=0,lte=1"`
	GamesPlayed          int     `json:"gamesPlayed" validate:"gte=0"`
	GamesWon             int     `json:"gamesWon" validate:"gte=0,ltefield=GamesPlayed"`
	TotalMoves           int     `json:"totalMoves" validate:"gte=0"`
}

// tallies are the raw counts ModelPerformance is derived from.
type tallies struct {
	Plays         int     `json:"plays" validate:"gte=0"`
	PlayWins      int     `json:"playWins" validate:"gte=0"`
	Challenges    int     `json:"challenges" validate:"gte=0"`
	ChallengeWins int     `json:"challengeWins" validate:"gte=0"`
	Successes     int     `json:"successes" validate:"gte=0"`
	RewardSum     float64 `json:"rewardSum"`
}

type GameResult struct {
	Timestamp time.Time `json:"timestamp"`
	Won       bool      `json:"won"`
}

// HistoryDocument is the persisted decisionHistory document.
type HistoryDocument struct {
	Decisions []DecisionRecord `json:"decisions" validate:"max=1000,dive"`
}

// MetricsDocument is the persisted metrics document.
type MetricsDocument struct {
	Performance ModelPerformance `json:"performance"`
	Tallies     tallies          `json:"tallies"`
	Games       []GameResult     `json:"games" validate:"max=1000"`
}

// Monitor keeps the capped decision history and the rolling performance
// figures. It is safe for concurrent use.
type Monitor struct {
	store  *store.Store
	locker lock.Locker

	// flushMu keeps snapshot-and-save atomic so an older snapshot never
	// lands after a newer one.
	flushMu sync.Mutex

	mu      sync.RWMutex
	history []DecisionRecord
	perf    ModelPerformance
	tally   tallies
	games   []GameResult
	subs    map[int]func(DecisionRecord)
	nextSub int
	now     func() time.Time
}

// New returns an empty monitor. st may be nil, in which case Flush and
// Load are no-ops. Saves hold locker's lock on the document key; a nil
// locker gets an in-process one.
func New(st *store.Store, locker lock.Locker) *Monitor {
	if locker == nil {
		locker = lock.NewMemory()
	}
	return &Monitor{
		store:  st,
		locker: locker,
		subs:   make(map[int]func(DecisionRecord)),
		now:    time.Now,
	}
}

// Load restores history and metrics. Missing documents leave the monitor
// empty; unreadable ones are logged and ignored.
func (m *Monitor) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	var hist HistoryDocument
	histErr := m.store.Load(ctx, store.DecisionHistoryKey, &hist)
	var met MetricsDocument
	metErr := m.store.Load(ctx, store.MetricsKey, &met)

	m.mu.Lock()
	defer m.mu.Unlock()
	if histErr == nil {
		m.history = hist.Decisions
	} else if !errors.Is(histErr, store.ErrNotFound) {
		log.WithError(histErr).Warn("decision history unreadable, starting empty")
	}
	if metErr == nil {
		m.perf = met.Performance
		m.tally = met.Tallies
		m.games = met.Games
	} else if !errors.Is(metErr, store.ErrNotFound) {
		log.WithError(metErr).Warn("metrics unreadable, starting empty")
	}
	return errors.Join(ignoreNotFound(histErr), ignoreNotFound(metErr))
}

func ignoreNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// RecordDecision appends rec, assigning an id and timestamp when missing,
// and notifies subscribers. The record is held in memory until Flush.
func (m *Monitor) RecordDecision(rec DecisionRecord) DecisionRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = m.now().UTC()
	}
	rec.Outcome = nil

	m.mu.Lock()
	m.history = append(m.history, rec)
	if over := len(m.history) - MaxHistory; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	subs := make([]func(DecisionRecord), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(rec)
	}
	return rec
}

// RecordOutcome attaches an outcome to a recorded decision and folds it
// into the running performance figures.
func (m *Monitor) RecordOutcome(decisionID string, successful bool, reward float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].ID == decisionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDecision, decisionID)
	}
	rec := &m.history[idx]
	if rec.Outcome != nil {
		return fmt.Errorf("%w: %s", ErrOutcomeRecorded, decisionID)
	}
	rec.Outcome = &Outcome{Successful: successful, Reward: reward}

	win := 0
	if successful {
		win = 1
	}
	switch rec.Decision.Type {
	case bluff.ActionChallenge.String():
		m.tally.Challenges++
		m.tally.ChallengeWins += win
	case bluff.ActionPlayCards.String():
		m.tally.Plays++
		m.tally.PlayWins += win
	}
	m.tally.Successes += win
	m.tally.RewardSum += reward
	m.perf.TotalMoves++
	m.derive()
	return nil
}

// RecordGameResult counts a finished game from the AI's point of view.
func (m *Monitor) RecordGameResult(won bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, GameResult{Timestamp: m.now().UTC(), Won: won})
	if over := len(m.games) - MaxHistory; over > 0 {
		m.games = append(m.games[:0:0], m.games[over:]...)
	}
	m.perf.GamesPlayed++
	if won {
		m.perf.GamesWon++
	}
	m.derive()
}

func (m *Monitor) derive() {
	m.perf.Accuracy = ratio(m.tally.Successes, m.perf.TotalMoves)
	m.perf.BluffSuccessRate = ratio(m.tally.PlayWins, m.tally.Plays)
	m.perf.ChallengeSuccessRate = ratio(m.tally.ChallengeWins, m.tally.Challenges)
	if m.perf.TotalMoves > 0 {
		m.perf.AverageReward = m.tally.RewardSum / float64(m.perf.TotalMoves)
	}
	m.perf.WinRate = ratio(m.perf.GamesWon, m.perf.GamesPlayed)
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (m *Monitor) Performance() ModelPerformance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perf
}

// Skill is the input the difficulty modulator reads.
func (m *Monitor) Skill() npc.Performance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return npc.Performance{WinRate: m.perf.WinRate, GamesPlayed: m.perf.GamesPlayed}
}

// Recent returns up to limit records, oldest first.
func (m *Monitor) Recent(limit int) []DecisionRecord {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := max(len(m.history)-limit, 0)
	out := make([]DecisionRecord, 0, len(m.history)-start)
	for _, rec := range m.history[start:] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

// Distribution counts recorded decisions per action type.
func (m *Monitor) Distribution() map[string]int {
	dist := map[string]int{
		bluff.ActionChallenge.String(): 0,
		bluff.ActionPlayCards.String(): 0,
		bluff.ActionPass.String():      0,
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.history {
		dist[rec.Decision.Type]++
	}
	return dist
}

// Subscribe registers fn for every new decision record. The returned func
// removes it.
func (m *Monitor) Subscribe(fn func(DecisionRecord)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Flush persists the decisionHistory and metrics documents, each under
// the lock named after it. A held lock fails the flush with
// lock.ErrNotAcquired; callers retry.
func (m *Monitor) Flush(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	hist, met := m.documents()
	if err := m.save(ctx, store.DecisionHistoryKey, hist); err != nil {
		return err
	}
	return m.save(ctx, store.MetricsKey, met)
}

func (m *Monitor) save(ctx context.Context, key string, doc any) error {
	return lock.WithLock(ctx, m.locker, key, lock.DefaultTTL, func(ctx context.Context) error {
		return m.store.Save(ctx, key, doc)
	})
}

func (m *Monitor) documents() (HistoryDocument, MetricsDocument) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := HistoryDocument{Decisions: make([]DecisionRecord, 0, len(m.history))}
	for _, rec := range m.history {
		hist.Decisions = append(hist.Decisions, cloneRecord(rec))
	}
	met := MetricsDocument{
		Performance: m.perf,
		Tallies:     m.tally,
		Games:       append([]GameResult{}, m.games...),
	}
	return hist, met
}

func cloneRecord(rec DecisionRecord) DecisionRecord {
	rec.Decision.Alternatives = append([]string(nil), rec.Decision.Alternatives...)
	if rec.Outcome != nil {
		o := *rec.Outcome
		rec.Outcome = &o
	}
	return rec
}
