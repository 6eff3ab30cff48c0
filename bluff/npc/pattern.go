package npc

import (
	"fmt"
	"sync"

	"bluff-lite/bluff"
	"bluff-lite/card"
)

const (
	// MoveHistoryLimit caps the observed move history.
	MoveHistoryLimit = 20
	// StreakThreshold is the PlayCards run length that marks a challenge
	// as coming after a streak.
	StreakThreshold = 3
	// PressureHandSize is the hand size at or below which a bluff counts
	// as made under pressure.
	PressureHandSize = 5
)

type BluffTriggers struct {
	LowRank       int `json:"lowRank" validate:"gte=0"`
	HighRank      int `json:"highRank" validate:"gte=0"`
	UnderPressure int `json:"underPressure" validate:"gte=0"`
}

func (b BluffTriggers) Total() int { return b.LowRank + b.HighRank + b.UnderPressure }

type ChallengeTriggers struct {
	AfterStreak  int `json:"afterStreak" validate:"gte=0"`
	LowRankSeen  int `json:"lowRankSeen" validate:"gte=0"`
	HighRankSeen int `json:"highRankSeen" validate:"gte=0"`
}

func (c ChallengeTriggers) Total() int { return c.AfterStreak + c.LowRankSeen + c.HighRankSeen }

// PatternRecord is the persisted behavior model of one opponent.
type PatternRecord struct {
	MoveHistory       []bluff.Action    `json:"moveHistory" validate:"max=20"`
	BluffTriggers     BluffTriggers     `json:"bluffTriggers"`
	ChallengeTriggers ChallengeTriggers `json:"challengeTriggers"`
}

// Prediction is the opponent's estimated propensities, each in [0,1].
type Prediction struct {
	LikelyToBluff     float64 `json:"likelyToBluff"`
	LikelyToChallenge float64 `json:"likelyToChallenge"`
}

// Confidence is the stronger of the two propensities.
func (p Prediction) Confidence() float64 {
	if p.LikelyToBluff > p.LikelyToChallenge {
		return p.LikelyToBluff
	}
	return p.LikelyToChallenge
}

// Observation is one resolved opponent move.
type Observation struct {
	Action bluff.Action `json:"action"`
	// OpponentHandSize is the opponent's hand size when the move was made.
	OpponentHandSize int `json:"opponentHandSize"`
	// ChallengedRank is the declared rank of the claim a challenge targets,
	// when known.
	ChallengedRank *card.Rank `json:"challengedRank,omitempty"`
}

// PatternPredictor tracks one opponent's moves and trigger counters.
type PatternPredictor struct {
	mu  sync.RWMutex
	rec PatternRecord
}

func NewPatternPredictor() *PatternPredictor {
	return &PatternPredictor{rec: PatternRecord{MoveHistory: []bluff.Action{}}}
}

// Observe records a move and updates the trigger counters. A challenge
// feeds at most one challenge counter; a detected bluff feeds exactly one
// bluff counter.
func (p *PatternPredictor) Observe(obs Observation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch obs.Action.Type {
	case bluff.ActionChallenge:
		streak := trailingPlayStreak(p.rec.MoveHistory)
		switch {
		case streak >= StreakThreshold:
			p.rec.ChallengeTriggers.AfterStreak++
		case obs.ChallengedRank != nil && obs.ChallengedRank.UpperHalf():
			p.rec.ChallengeTriggers.HighRankSeen++
		case obs.ChallengedRank != nil:
			p.rec.ChallengeTriggers.LowRankSeen++
		}
	case bluff.ActionPlayCards:
		if obs.Action.IsBluff() {
			switch {
			case obs.OpponentHandSize <= PressureHandSize:
				p.rec.BluffTriggers.UnderPressure++
			case obs.Action.DeclaredRank.UpperHalf():
				p.rec.BluffTriggers.HighRank++
			default:
				p.rec.BluffTriggers.LowRank++
			}
		}
	}

	p.rec.MoveHistory = append(p.rec.MoveHistory, obs.Action)
	if over := len(p.rec.MoveHistory) - MoveHistoryLimit; over > 0 {
		p.rec.MoveHistory = append([]bluff.Action(nil), p.rec.MoveHistory[over:]...)
	}
}

// Predict divides each counter family by the history length (at least 1)
// and clamps to [0,1]. Counters are never decremented when history is
// evicted.
func (p *PatternPredictor) Predict() Prediction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.rec.MoveHistory)
	if n < 1 {
		n = 1
	}
	return Prediction{
		LikelyToBluff:     clamp01(float64(p.rec.BluffTriggers.Total()) / float64(n)),
		LikelyToChallenge: clamp01(float64(p.rec.ChallengeTriggers.Total()) / float64(n)),
	}
}

// Snapshot copies the record for persistence.
func (p *PatternPredictor) Snapshot() PatternRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := p.rec
	out.MoveHistory = append([]bluff.Action{}, p.rec.MoveHistory...)
	return out
}

// Restore replaces the record. Records violating the history cap or with
// negative counters are rejected.
func (p *PatternPredictor) Restore(rec PatternRecord) error {
	if len(rec.MoveHistory) > MoveHistoryLimit {
		return fmt.Errorf("pattern record: %d moves exceeds limit %d", len(rec.MoveHistory), MoveHistoryLimit)
	}
	b, c := rec.BluffTriggers, rec.ChallengeTriggers
	if b.LowRank < 0 || b.HighRank < 0 || b.UnderPressure < 0 ||
		c.AfterStreak < 0 || c.LowRankSeen < 0 || c.HighRankSeen < 0 {
		return fmt.Errorf("pattern record: negative trigger counter")
	}
	rec.MoveHistory = append([]bluff.Action{}, rec.MoveHistory...)
	p.mu.Lock()
	p.rec = rec
	p.mu.Unlock()
	return nil
}

func trailingPlayStreak(history []bluff.Action) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type != bluff.ActionPlayCards {
			break
		}
		n++
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
