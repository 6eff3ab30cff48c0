package card

import (
	"fmt"
	"strings"
)

// Rank is a card face value. The zero value is the lowest rank ("2") and
// the numeric order of the constants is the game's total order.
type Rank byte

const (
	Rank2 Rank = iota
	Rank3
	Rank4
	Rank5
	Rank6
	Rank7
	Rank8
	Rank9
	Rank10
	RankJ
	RankQ
	RankK
	RankA
)

// RankCount is the number of distinct ranks.
const RankCount = int(RankA) + 1

var rankNames = [RankCount]string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Ranks returns every rank, lowest first.
func Ranks() []Rank {
	out := make([]Rank, RankCount)
	for i := range out {
		out[i] = Rank(i)
	}
	return out
}

func (r Rank) Valid() bool { return int(r) < RankCount }

// Index is the position of r in the rank order (0 for "2", 12 for "A").
func (r Rank) Index() int { return int(r) }

func (r Rank) String() string {
	if !r.Valid() {
		return "?"
	}
	return rankNames[r]
}

// UpperHalf reports whether r sits strictly above the median rank ("8"),
// i.e. one of 9, 10, J, Q, K, A.
func (r Rank) UpperHalf() bool {
	return r.Valid() && r.Index() > RankCount/2
}

// Next returns the rank one step above r, saturating at the ace.
func (r Rank) Next() Rank {
	if r >= RankA {
		return RankA
	}
	return r + 1
}

// ParseRank accepts "2".."10", "J", "Q", "K", "A" (case-insensitive) and "T"
// as an alias for ten.
func ParseRank(raw string) (Rank, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "T" {
		return Rank10, nil
	}
	for i, name := range rankNames {
		if name == s {
			return Rank(i), nil
		}
	}
	return 0, fmt.Errorf("invalid rank: %q", raw)
}

func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid rank: %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(text []byte) error {
	v, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}
