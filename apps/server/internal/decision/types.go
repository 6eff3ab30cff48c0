package decision

import (
	"fmt"
	"time"

	"bluff-lite/apps/server/internal/monitoring"
	"bluff-lite/bluff"
	"bluff-lite/bluff/npc"
)

// Status tells the caller whether Decide fell back.
type Status string

const (
	StatusOK        Status = "ok"
	StatusRecovered Status = "recovered"
)

// Source is where the returned action came from.
type Source string

const (
	SourceFused    Source = "fused"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

const (
	DefaultSignalTimeout = 200 * time.Millisecond
	DefaultBudget        = 2 * time.Second
	DefaultLoadTimeout   = 5 * time.Second
)

// Session identifies the game and the opponent a call belongs to.
type Session struct {
	GameID     string `json:"gameId"`
	OpponentID string `json:"opponentId"`
}

func (s Session) opponent() string {
	if s.OpponentID == "" {
		return npc.DefaultOpponentID
	}
	return s.OpponentID
}

// Result is the outcome of one Decide call. Action is always structurally
// valid for the state it was decided for.
type Result struct {
	Action     bluff.Action              `json:"action"`
	Status     Status                    `json:"status"`
	Reason     string                    `json:"reason,omitempty"`
	Source     Source                    `json:"source"`
	DecisionID string                    `json:"decisionId,omitempty"`
	Signals    monitoring.SignalSnapshot `json:"signals"`
}

// Outcome is a resolved AI move reported back by the rules engine.
type Outcome struct {
	// DecisionID links the outcome to the Decide call that produced the
	// move; empty when unknown.
	DecisionID string          `json:"decisionId,omitempty"`
	State      bluff.GameState `json:"gameState"`
	Action     bluff.Action    `json:"action"`
	Reward     float64         `json:"reward"`
	Successful bool            `json:"successful"`
	NextState  bluff.GameState `json:"nextState"`
	// OpponentMove is the opponent's reply, when it is already known.
	OpponentMove *npc.Observation `json:"opponentMove,omitempty"`
}

// SignalError wraps the failure of one signal source.
type SignalError struct {
	Signal string
	Err    error
}

func (e *SignalError) Error() string { return fmt.Sprintf("signal %s: %v", e.Signal, e.Err) }

func (e *SignalError) Unwrap() error { return e.Err }
