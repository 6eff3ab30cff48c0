package bluff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"bluff-lite/card"
)

// ActionType 动作类型
type ActionType byte

const (
	ActionPass ActionType = iota
	ActionChallenge
	ActionPlayCards
)

var ActionTypeDictionary = map[ActionType]string{
	ActionPass:      "PASS",
	ActionChallenge: "CHALLENGE",
	ActionPlayCards: "PLAY_CARDS",
}

func (t ActionType) Valid() bool {
	_, ok := ActionTypeDictionary[t]
	return ok
}

func (t ActionType) String() string {
	if s, ok := ActionTypeDictionary[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseActionType is the inverse of ActionType.String.
func ParseActionType(raw string) (ActionType, error) {
	for k, v := range ActionTypeDictionary {
		if v == raw {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown action type %q", raw)
}

func (t ActionType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid action type: %d", t)
	}
	return []byte(t.String()), nil
}

func (t *ActionType) UnmarshalText(text []byte) error {
	v, err := ParseActionType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Action is the tagged variant returned to the rules engine. Cards and
// DeclaredRank are meaningful only for ActionPlayCards.
type Action struct {
	Type         ActionType
	Cards        []card.Card
	DeclaredRank card.Rank
}

func Pass() Action      { return Action{Type: ActionPass} }
func Challenge() Action { return Action{Type: ActionChallenge} }

func PlayCards(cards []card.Card, declared card.Rank) Action {
	out := make([]card.Card, len(cards))
	copy(out, cards)
	return Action{Type: ActionPlayCards, Cards: out, DeclaredRank: declared}
}

// IsBluff reports whether a PlayCards action contains a card whose true
// rank differs from the declared one.
func (a Action) IsBluff() bool {
	if a.Type != ActionPlayCards {
		return false
	}
	for _, c := range a.Cards {
		if c.Rank != a.DeclaredRank {
			return true
		}
	}
	return false
}

func (a Action) String() string {
	if a.Type != ActionPlayCards {
		return a.Type.String()
	}
	ids := make([]string, 0, len(a.Cards))
	for _, c := range a.Cards {
		ids = append(ids, c.String())
	}
	return fmt.Sprintf("%s(%s as %s)", a.Type, strings.Join(ids, ","), a.DeclaredRank)
}

type playPayload struct {
	Cards        []card.Card `json:"cards"`
	DeclaredRank card.Rank   `json:"declaredRank"`
}

type actionWire struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	w := actionWire{Type: a.Type.String()}
	if a.Type == ActionPlayCards {
		raw, err := json.Marshal(playPayload{Cards: a.Cards, DeclaredRank: a.DeclaredRank})
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON rejects unknown variants and payloads on non-play variants.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return &ValidationError{Field: "action", Reason: err.Error()}
	}

	typ, err := ParseActionType(w.Type)
	if err != nil {
		return &ValidationError{Field: "action.type", Reason: err.Error()}
	}

	out := Action{Type: typ}
	hasPayload := len(w.Payload) > 0 && !bytes.Equal(bytes.TrimSpace(w.Payload), []byte("null"))
	switch typ {
	case ActionPass, ActionChallenge:
		if hasPayload {
			return &ValidationError{Field: "action.payload", Reason: fmt.Sprintf("%s takes no payload", typ)}
		}
	case ActionPlayCards:
		if !hasPayload {
			return &ValidationError{Field: "action.payload", Reason: "PLAY_CARDS requires a payload"}
		}
		var p playPayload
		pdec := json.NewDecoder(bytes.NewReader(w.Payload))
		pdec.DisallowUnknownFields()
		if err := pdec.Decode(&p); err != nil {
			return &ValidationError{Field: "action.payload", Reason: err.Error()}
		}
		out.Cards = p.Cards
		out.DeclaredRank = p.DeclaredRank
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*a = out
	return nil
}
