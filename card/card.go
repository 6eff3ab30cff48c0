package card

import (
	"fmt"
	"strings"
)

// Card is a single playing card. ID is opaque and unique within a deck.
type Card struct {
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
	ID   string `json:"id"`
}

func New(rank Rank, suit Suit) Card {
	return Card{Suit: suit, Rank: rank, ID: fmt.Sprintf("%s-%s", rank, suit)}
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, suitSymbol(c.Suit))
}

// Valid reports whether suit and rank are in range.
func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Valid()
}

// Less orders cards by rank, then suit, then id.
func (c Card) Less(o Card) bool {
	if c.Rank != o.Rank {
		return c.Rank < o.Rank
	}
	if c.Suit != o.Suit {
		return c.Suit < o.Suit
	}
	return c.ID < o.ID
}

// Parse converts strings such as "As", "10h", "Td" into a Card.
func Parse(cardStr string) (Card, error) {
	cardStr = strings.TrimSpace(cardStr)
	if len(cardStr) < 2 {
		return Card{}, fmt.Errorf("invalid card string: %s", cardStr)
	}

	var suit Suit
	switch cardStr[len(cardStr)-1] {
	case 'h', 'H':
		suit = Hearts
	case 'd', 'D':
		suit = Diamonds
	case 'c', 'C':
		suit = Clubs
	case 's', 'S':
		suit = Spades
	default:
		return Card{}, fmt.Errorf("invalid suit: %c", cardStr[len(cardStr)-1])
	}

	rank, err := ParseRank(cardStr[:len(cardStr)-1])
	if err != nil {
		return Card{}, err
	}
	return New(rank, suit), nil
}

// MustParse is Parse for fixtures; it panics on malformed input.
func MustParse(cardStr string) Card {
	c, err := Parse(cardStr)
	if err != nil {
		panic(err)
	}
	return c
}

func suitSymbol(s Suit) string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	}
	return "?"
}
