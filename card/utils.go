package card

// NewDeck returns a fresh 52-card deck in rank-then-suit order.
func NewDeck() CardList {
	deck := make(CardList, 0, RankCount*len(suitNames))
	for _, r := range Ranks() {
		for _, s := range Suits() {
			deck = append(deck, New(r, s))
		}
	}
	return deck
}

// MustParseAll parses a list of card strings, panicking on the first error.
func MustParseAll(strs ...string) []Card {
	out := make([]Card, 0, len(strs))
	for _, s := range strs {
		out = append(out, MustParse(s))
	}
	return out
}
