package card

import "fmt"

type Suit byte

const (
	Hearts   Suit = iota // ♥️
	Diamonds             // ♦️
	Clubs                // ♣️
	Spades               // ♠️
)

var suitNames = [...]string{
	Hearts:   "hearts",
	Diamonds: "diamonds",
	Clubs:    "clubs",
	Spades:   "spades",
}

// Suits returns all four suits in declaration order.
func Suits() []Suit {
	return []Suit{Hearts, Diamonds, Clubs, Spades}
}

func (s Suit) Valid() bool { return s <= Spades }

func (s Suit) String() string {
	if !s.Valid() {
		return "?"
	}
	return suitNames[s]
}

// ParseSuit accepts the lower-case suit name.
func ParseSuit(raw string) (Suit, error) {
	for i, name := range suitNames {
		if name == raw {
			return Suit(i), nil
		}
	}
	return 0, fmt.Errorf("invalid suit: %q", raw)
}

func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit: %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	v, err := ParseSuit(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
