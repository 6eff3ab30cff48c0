package bluff

import (
	"fmt"

	"bluff-lite/card"
)

// Actor identifies which side of the table made a move.
type Actor byte

const (
	ActorPlayer Actor = iota
	ActorAI
)

var ActorDictionary = map[Actor]string{
	ActorPlayer: "player",
	ActorAI:     "ai",
}

func (a Actor) Valid() bool { return a == ActorPlayer || a == ActorAI }

func (a Actor) String() string {
	if s, ok := ActorDictionary[a]; ok {
		return s
	}
	return "?"
}

func (a Actor) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid actor: %d", a)
	}
	return []byte(a.String()), nil
}

func (a *Actor) UnmarshalText(text []byte) error {
	for k, v := range ActorDictionary {
		if v == string(text) {
			*a = k
			return nil
		}
	}
	return fmt.Errorf("invalid actor: %q", string(text))
}

// LastPlay is the most recent PlayCards move on the table.
type LastPlay struct {
	Actor        Actor       `json:"actor"`
	DeclaredRank card.Rank   `json:"declaredRank"`
	ActualCards  []card.Card `json:"actualCards"`
}

// GameState is a read-only snapshot supplied by the rules engine for one
// decision call. Hands and pile must be non-nil; an empty hand is an empty
// slice.
type GameState struct {
	PlayerHand  []card.Card `json:"playerHand"`
	AIHand      []card.Card `json:"aiHand"`
	CenterPile  []card.Card `json:"centerPile"`
	CurrentTurn Actor       `json:"currentTurn"`
	LastPlay    *LastPlay   `json:"lastPlay,omitempty"`
}

// OpponentLastPlay reports whether the table's last play belongs to the
// human player, which is what makes a challenge available.
func (gs GameState) OpponentLastPlay() bool {
	return gs.LastPlay != nil && gs.LastPlay.Actor == ActorPlayer
}
