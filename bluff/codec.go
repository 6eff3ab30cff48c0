package bluff

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"bluff-lite/card"
)

// StateKey is the discretized view of a GameState the policy learns over.
type StateKey struct {
	AICards     int
	PlayerCards int
	CenterPile  int
	HasLast     bool
	LastRank    card.Rank
	LastCount   int
}

// ActionKey is the abstract form of an Action: its type and, for
// PlayCards, how many cards at which declared rank.
type ActionKey struct {
	Type  ActionType
	Count int
	Rank  card.Rank
}

// StateActionKey is comparable and used directly as a map key. Its text
// form has a fixed field order and round-trips through UnmarshalText.
type StateActionKey struct {
	State  StateKey
	Action ActionKey
}

// Discretize projects gs onto a StateKey. Pure and deterministic.
func Discretize(gs GameState) StateKey {
	k := StateKey{
		AICards:     len(gs.AIHand),
		PlayerCards: len(gs.PlayerHand),
		CenterPile:  len(gs.CenterPile),
	}
	if gs.LastPlay != nil {
		k.HasLast = true
		k.LastRank = gs.LastPlay.DeclaredRank
		k.LastCount = len(gs.LastPlay.ActualCards)
	}
	return k
}

// ActionKeyOf abstracts a concrete action.
func ActionKeyOf(a Action) ActionKey {
	if a.Type != ActionPlayCards {
		return ActionKey{Type: a.Type}
	}
	return ActionKey{Type: a.Type, Count: len(a.Cards), Rank: a.DeclaredRank}
}

// KeyFor pairs the discretized state with an abstract action.
func KeyFor(gs GameState, a ActionKey) StateActionKey {
	return StateActionKey{State: Discretize(gs), Action: a}
}

func (k StateKey) String() string {
	last := "-"
	if k.HasLast {
		last = k.LastRank.String()
	}
	return fmt.Sprintf("ai=%d|pl=%d|pile=%d|last=%s|lastn=%d", k.AICards, k.PlayerCards, k.CenterPile, last, k.LastCount)
}

func (a ActionKey) String() string {
	rank := "-"
	if a.Type == ActionPlayCards {
		rank = a.Rank.String()
	}
	return fmt.Sprintf("act=%s|n=%d|rank=%s", a.Type, a.Count, rank)
}

func (k StateActionKey) String() string {
	return k.State.String() + "|" + k.Action.String()
}

func (k StateActionKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

var keyFields = [...]string{"ai", "pl", "pile", "last", "lastn", "act", "n", "rank"}

// ParseStateActionKey is the inverse of StateActionKey.String.
func ParseStateActionKey(raw string) (StateActionKey, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != len(keyFields) {
		return StateActionKey{}, fmt.Errorf("state-action key %q: want %d fields, got %d", raw, len(keyFields), len(parts))
	}
	vals := make([]string, len(parts))
	for i, p := range parts {
		name, val, ok := strings.Cut(p, "=")
		if !ok || name != keyFields[i] {
			return StateActionKey{}, fmt.Errorf("state-action key %q: field %d must be %q", raw, i, keyFields[i])
		}
		vals[i] = val
	}

	var k StateActionKey
	var err error
	ints := []*int{&k.State.AICards, &k.State.PlayerCards, &k.State.CenterPile}
	for i, dst := range ints {
		if *dst, err = parseCount(vals[i]); err != nil {
			return StateActionKey{}, fmt.Errorf("state-action key %q: %s: %w", raw, keyFields[i], err)
		}
	}
	if vals[3] != "-" {
		k.State.HasLast = true
		if k.State.LastRank, err = card.ParseRank(vals[3]); err != nil {
			return StateActionKey{}, fmt.Errorf("state-action key %q: %w", raw, err)
		}
	}
	if k.State.LastCount, err = parseCount(vals[4]); err != nil {
		return StateActionKey{}, fmt.Errorf("state-action key %q: lastn: %w", raw, err)
	}
	if k.Action.Type, err = ParseActionType(vals[5]); err != nil {
		return StateActionKey{}, fmt.Errorf("state-action key %q: %w", raw, err)
	}
	if k.Action.Count, err = parseCount(vals[6]); err != nil {
		return StateActionKey{}, fmt.Errorf("state-action key %q: n: %w", raw, err)
	}
	if k.Action.Type == ActionPlayCards {
		if k.Action.Rank, err = card.ParseRank(vals[7]); err != nil {
			return StateActionKey{}, fmt.Errorf("state-action key %q: %w", raw, err)
		}
	} else if vals[7] != "-" || k.Action.Count != 0 {
		return StateActionKey{}, fmt.Errorf("state-action key %q: %s carries no play", raw, k.Action.Type)
	}
	if k.String() != raw {
		return StateActionKey{}, fmt.Errorf("state-action key %q is not canonical", raw)
	}
	return k, nil
}

func (k *StateActionKey) UnmarshalText(text []byte) error {
	parsed, err := ParseStateActionKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// Fingerprint hashes every field of gs that can change the decision. Hands
// and pile are treated as multisets, so card order does not matter.
func Fingerprint(gs GameState) string {
	var b strings.Builder
	writeCards(&b, "player", gs.PlayerHand)
	writeCards(&b, "ai", gs.AIHand)
	writeCards(&b, "pile", gs.CenterPile)
	fmt.Fprintf(&b, "turn=%s;", gs.CurrentTurn)
	if lp := gs.LastPlay; lp != nil {
		fmt.Fprintf(&b, "last=%s/%s;", lp.Actor, lp.DeclaredRank)
		writeCards(&b, "lastcards", lp.ActualCards)
	} else {
		b.WriteString("last=none;")
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writeCards(b *strings.Builder, label string, cards []card.Card) {
	b.WriteString(label)
	b.WriteByte('[')
	for i, c := range card.CardList(cards).Sorted() {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d/%d/%d:%s", c.Rank, c.Suit, len(c.ID), c.ID)
	}
	b.WriteString("];")
}
