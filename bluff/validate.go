package bluff

import (
	"fmt"

	"bluff-lite/card"
)

// MaxPlayCount is the largest number of cards a single PlayCards may carry.
const MaxPlayCount = 4

// Validate checks the structural shape of a state: every collection
// present, cards well formed and unique across hands and pile, enums in
// range.
func (gs GameState) Validate() error {
	if gs.PlayerHand == nil {
		return &ValidationError{Field: "playerHand", Reason: "missing", Err: ErrNilCollection}
	}
	if gs.AIHand == nil {
		return &ValidationError{Field: "aiHand", Reason: "missing", Err: ErrNilCollection}
	}
	if gs.CenterPile == nil {
		return &ValidationError{Field: "centerPile", Reason: "missing", Err: ErrNilCollection}
	}
	if !gs.CurrentTurn.Valid() {
		return &ValidationError{Field: "currentTurn", Reason: fmt.Sprintf("unknown actor %d", gs.CurrentTurn)}
	}

	seen := make(map[string]string)
	for _, part := range []struct {
		name  string
		cards []card.Card
	}{
		{"playerHand", gs.PlayerHand},
		{"aiHand", gs.AIHand},
		{"centerPile", gs.CenterPile},
	} {
		for i, c := range part.cards {
			if err := validateCard(c); err != nil {
				return &ValidationError{Field: fmt.Sprintf("%s[%d]", part.name, i), Reason: err.Error()}
			}
			if prev, dup := seen[c.ID]; dup {
				return &ValidationError{
					Field:  fmt.Sprintf("%s[%d]", part.name, i),
					Reason: fmt.Sprintf("card %s already present in %s", c.ID, prev),
				}
			}
			seen[c.ID] = part.name
		}
	}

	if lp := gs.LastPlay; lp != nil {
		if !lp.Actor.Valid() {
			return &ValidationError{Field: "lastPlay.actor", Reason: fmt.Sprintf("unknown actor %d", lp.Actor)}
		}
		if !lp.DeclaredRank.Valid() {
			return &ValidationError{Field: "lastPlay.declaredRank", Reason: "out of range"}
		}
		if len(lp.ActualCards) == 0 {
			return &ValidationError{Field: "lastPlay.actualCards", Reason: "empty play"}
		}
		for i, c := range lp.ActualCards {
			if err := validateCard(c); err != nil {
				return &ValidationError{Field: fmt.Sprintf("lastPlay.actualCards[%d]", i), Reason: err.Error()}
			}
		}
	}
	return nil
}

// Validate checks the action's own shape, independent of any state.
func (a Action) Validate() error {
	switch a.Type {
	case ActionPass, ActionChallenge:
		if len(a.Cards) > 0 {
			return &ValidationError{Field: "action.cards", Reason: a.Type.String() + " carries no cards"}
		}
		return nil
	case ActionPlayCards:
	default:
		return &ValidationError{Field: "action.type", Reason: fmt.Sprintf("unknown type %d", a.Type)}
	}

	if len(a.Cards) == 0 || len(a.Cards) > MaxPlayCount {
		return &ValidationError{
			Field:  "action.cards",
			Reason: fmt.Sprintf("must play 1..%d cards, got %d", MaxPlayCount, len(a.Cards)),
		}
	}
	if !a.DeclaredRank.Valid() {
		return &ValidationError{Field: "action.declaredRank", Reason: "out of range"}
	}
	ids := make(map[string]struct{}, len(a.Cards))
	for i, c := range a.Cards {
		if err := validateCard(c); err != nil {
			return &ValidationError{Field: fmt.Sprintf("action.cards[%d]", i), Reason: err.Error()}
		}
		if _, dup := ids[c.ID]; dup {
			return &ValidationError{Field: fmt.Sprintf("action.cards[%d]", i), Reason: "duplicate card " + c.ID}
		}
		ids[c.ID] = struct{}{}
	}
	return nil
}

// ValidateAgainst checks that a is well formed and playable from gs by the
// AI: cards come from the AI hand, challenges target an opponent play, and
// the declared rank is not lower than the last claim.
func (a Action) ValidateAgainst(gs GameState) error {
	if err := a.Validate(); err != nil {
		return err
	}
	switch a.Type {
	case ActionChallenge:
		if !gs.OpponentLastPlay() {
			return &ValidationError{Field: "action", Reason: "no opponent play to challenge"}
		}
	case ActionPlayCards:
		if !card.CardList(gs.AIHand).Contains(a.Cards) {
			return &ValidationError{Field: "action.cards", Reason: "cards not in ai hand"}
		}
		if gs.LastPlay != nil && a.DeclaredRank < gs.LastPlay.DeclaredRank {
			return &ValidationError{
				Field:  "action.declaredRank",
				Reason: fmt.Sprintf("%s is lower than last claim %s", a.DeclaredRank, gs.LastPlay.DeclaredRank),
			}
		}
	}
	return nil
}

func validateCard(c card.Card) error {
	if !c.Valid() {
		return fmt.Errorf("malformed card %+v", c)
	}
	if c.ID == "" {
		return fmt.Errorf("card without id")
	}
	return nil
}
