package card

import (
	"math/rand"
	"sort"
)

type CardList []Card

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

// Sorted returns a copy ordered by Card.Less.
func (ds CardList) Sorted() CardList {
	out := make(CardList, len(ds))
	copy(out, ds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Lowest returns the n lowest-ranked cards (fewer if the list is shorter).
func (ds CardList) Lowest(n int) CardList {
	sorted := ds.Sorted()
	if n > len(sorted) {
		n = len(sorted)
	}
	if n < 0 {
		n = 0
	}
	return sorted[:n]
}

// OfRank returns the cards with the given rank, in list order.
func (ds CardList) OfRank(r Rank) CardList {
	var out CardList
	for _, c := range ds {
		if c.Rank == r {
			out = append(out, c)
		}
	}
	return out
}

// Without returns the cards whose IDs are not in exclude.
func (ds CardList) Without(exclude []Card) CardList {
	skip := make(map[string]struct{}, len(exclude))
	for _, c := range exclude {
		skip[c.ID] = struct{}{}
	}
	out := make(CardList, 0, len(ds))
	for _, c := range ds {
		if _, ok := skip[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether every card in sub is present in ds (matched by ID).
func (ds CardList) Contains(sub []Card) bool {
	have := make(map[string]int, len(ds))
	for _, c := range ds {
		have[c.ID]++
	}
	for _, c := range sub {
		if have[c.ID] == 0 {
			return false
		}
		have[c.ID]--
	}
	return true
}

// Group is a run of same-rank cards held together.
type Group struct {
	Rank  Rank
	Cards CardList
}

// GroupByRank buckets cards by rank, lowest rank first.
func (ds CardList) GroupByRank() []Group {
	var buckets [RankCount]CardList
	for _, c := range ds.Sorted() {
		if c.Rank.Valid() {
			buckets[c.Rank] = append(buckets[c.Rank], c)
		}
	}
	var out []Group
	for i, b := range buckets {
		if len(b) > 0 {
			out = append(out, Group{Rank: Rank(i), Cards: b})
		}
	}
	return out
}
