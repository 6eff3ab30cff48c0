package bluff

import "bluff-lite/card"

// LegalActions enumerates the AI's abstract action space for gs in a fixed
// order: Pass, then Challenge when the opponent made the last play, then
// PlayCards by count ascending and rank ascending. Ranks lower than the
// last declared rank are excluded.
func LegalActions(gs GameState) []ActionKey {
	out := []ActionKey{{Type: ActionPass}}
	if gs.OpponentLastPlay() {
		out = append(out, ActionKey{Type: ActionChallenge})
	}

	minRank := card.Rank2
	if gs.LastPlay != nil {
		minRank = gs.LastPlay.DeclaredRank
	}
	maxCount := len(gs.AIHand)
	if maxCount > MaxPlayCount {
		maxCount = MaxPlayCount
	}
	for n := 1; n <= maxCount; n++ {
		for r := minRank; r.Valid(); r++ {
			out = append(out, ActionKey{Type: ActionPlayCards, Count: n, Rank: r})
		}
	}
	return out
}
