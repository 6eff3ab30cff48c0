package npc

import (
	"math/rand"
	"sync"

	"bluff-lite/bluff"
	"bluff-lite/card"
)

// TieBreak picks between equally large same-rank groups.
type TieBreak string

const (
	TieBreakLowestRank  TieBreak = "lowest"
	TieBreakHighestRank TieBreak = "highest"
)

// FusionConfig exposes the fusion thresholds.
type FusionConfig struct {
	// ChallengeThreshold is the adjusted challenge probability above which
	// the brain challenges an opponent claim.
	ChallengeThreshold float64 `json:"challengeThreshold" yaml:"challengeThreshold"`
	// ChatBluffWeight blends the chat bluff indicator into the challenge
	// probability: p *= 1 - w + w*chat. At 1 the probability is multiplied
	// by the indicator outright; at 0 chat is ignored.
	ChatBluffWeight float64 `json:"chatBluffWeight" yaml:"chatBluffWeight"`
	// BluffScale turns persona deceptiveness into the base bluff likelihood.
	BluffScale    float64  `json:"bluffScale" yaml:"bluffScale"`
	GroupTieBreak TieBreak `json:"groupTieBreak" yaml:"groupTieBreak"`
}

func DefaultFusion() FusionConfig {
	return FusionConfig{
		ChallengeThreshold: 0.5,
		ChatBluffWeight:    1.0,
		BluffScale:         0.5,
		GroupTieBreak:      TieBreakLowestRank,
	}
}

// Fused is the brain's output: the action plus the derived probabilities
// monitoring records alongside it.
type Fused struct {
	Action               bluff.Action
	ChallengeProbability float64
	BluffProbability     float64
	PatternConfidence    float64
	RiskLevel            float64
	Bluffed              bool
	Confidence           float64
	Alternatives         []string
}

// RuleBrain turns fused signals into a concrete action, shaped by a
// persona.
type RuleBrain struct {
	Persona *NPCPersona
	cfg     FusionConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRuleBrain creates a RuleBrain from a persona definition.
func NewRuleBrain(persona *NPCPersona, cfg FusionConfig, seed int64) *RuleBrain {
	if persona == nil {
		persona = DefaultPersona()
	}
	return &RuleBrain{
		Persona: persona,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *RuleBrain) Name() string { return b.Persona.Name }

// Fuse picks the action for gs. When the opponent made the last play the
// brain either challenges (the policy suggests it or the adjusted challenge
// probability clears the threshold) or passes. Otherwise it plays if the AI
// has cards, following the policy's PlayCards suggestion (with an
// independent bluff roll) or the best same-rank group, and passes with an
// empty hand.
func (b *RuleBrain) Fuse(gs bluff.GameState, sig Signals) Fused {
	p := b.Persona.Brain

	out := Fused{
		RiskLevel:         clamp01(p.RiskTolerance * sig.Modifiers.RiskMultiplier),
		BluffProbability:  clamp01(sig.Modifiers.BluffMultiplier * p.Deceptiveness * b.cfg.BluffScale),
		PatternConfidence: sig.Prediction.Confidence(),
		Alternatives:      alternatives(gs),
	}

	challenge := clamp01(sig.Prediction.LikelyToChallenge * sig.Modifiers.RiskMultiplier)
	if sig.ChatBluff != nil {
		w := clamp01(b.cfg.ChatBluffWeight)
		challenge *= 1 - w + w*clamp01(*sig.ChatBluff)
	}
	out.ChallengeProbability = challenge

	switch {
	case gs.OpponentLastPlay():
		out.Alternatives = []string{bluff.ActionPass.String(), bluff.ActionChallenge.String()}
		if sig.Suggestion.Type == bluff.ActionChallenge || challenge > b.cfg.ChallengeThreshold {
			out.Action = bluff.Challenge()
			out.Confidence = clamp01(challenge * (1 - out.RiskLevel))
		} else {
			out.Action = bluff.Pass()
			out.Confidence = clamp01(1 - challenge)
		}
	case len(gs.AIHand) > 0:
		out.Action = b.play(gs, sig.Suggestion, out.BluffProbability)
		out.Bluffed = out.Action.IsBluff()
		if out.Bluffed {
			out.Confidence = clamp01((1 - challenge) * out.RiskLevel)
		} else {
			out.Confidence = out.PatternConfidence
		}
	default:
		out.Action = bluff.Pass()
		out.Confidence = out.PatternConfidence
	}
	return out
}

func (b *RuleBrain) play(gs bluff.GameState, suggestion bluff.ActionKey, bluffChance float64) bluff.Action {
	hand := card.CardList(gs.AIHand)
	floor := card.Rank2
	if gs.LastPlay != nil {
		floor = gs.LastPlay.DeclaredRank
	}

	if suggestion.Type == bluff.ActionPlayCards && suggestion.Rank >= floor {
		n := suggestion.Count
		if n > len(hand) {
			n = len(hand)
		}
		if n > bluff.MaxPlayCount {
			n = bluff.MaxPlayCount
		}
		if n > 0 {
			if b.roll() < bluffChance {
				return bluff.PlayCards(hand.Lowest(n), suggestion.Rank.Next())
			}
			return bluff.PlayCards(pickCards(hand, suggestion.Rank, n), suggestion.Rank)
		}
	}
	return b.bestGroup(hand, floor)
}

// bestGroup plays the largest same-rank group not lower than floor. With
// no such group the lowest card is played under the floor rank.
func (b *RuleBrain) bestGroup(hand card.CardList, floor card.Rank) bluff.Action {
	var best *card.Group
	groups := hand.GroupByRank()
	for i := range groups {
		g := &groups[i]
		if g.Rank < floor {
			continue
		}
		switch {
		case best == nil, len(g.Cards) > len(best.Cards):
			best = g
		case len(g.Cards) == len(best.Cards) && b.cfg.GroupTieBreak == TieBreakHighestRank:
			best = g
		}
	}
	if best == nil {
		return bluff.PlayCards(hand.Lowest(1), floor)
	}
	cards := best.Cards
	if len(cards) > bluff.MaxPlayCount {
		cards = cards[:bluff.MaxPlayCount]
	}
	return bluff.PlayCards(cards, best.Rank)
}

func (b *RuleBrain) roll() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}

// pickCards takes n cards, matching rank first, then the lowest others.
func pickCards(hand card.CardList, rank card.Rank, n int) []card.Card {
	picked := hand.OfRank(rank)
	if len(picked) >= n {
		return picked[:n]
	}
	rest := hand.Without(picked).Lowest(n - len(picked))
	return append(picked, rest...)
}

func alternatives(gs bluff.GameState) []string {
	seen := make(map[bluff.ActionType]bool)
	var out []string
	for _, a := range bluff.LegalActions(gs) {
		if !seen[a.Type] {
			seen[a.Type] = true
			out = append(out, a.Type.String())
		}
	}
	return out
}
