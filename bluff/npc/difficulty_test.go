package npc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifficultyNeutralInsideBandOrTooFewGames(t *testing.T) {
	c := DefaultDifficulty()
	assert.Equal(t, NeutralModifiers(), c.Modifiers(Performance{WinRate: 0.55, GamesPlayed: 20}))
	assert.Equal(t, NeutralModifiers(), c.Modifiers(Performance{WinRate: 1.0, GamesPlayed: 2}))
}

func TestDifficultyEasesOffWhenAIWins(t *testing.T) {
	m := DefaultDifficulty().Modifiers(Performance{WinRate: 0.9, GamesPlayed: 20})
	assert.InDelta(t, 0.6, m.BluffMultiplier, 1e-9)
	assert.InDelta(t, 0.8, m.RiskMultiplier, 1e-9)
}

func TestDifficultyPushesWhenAILoses(t *testing.T) {
	m := DefaultDifficulty().Modifiers(Performance{WinRate: 0.1, GamesPlayed: 20})
	assert.InDelta(t, 1.4, m.BluffMultiplier, 1e-9)
	assert.InDelta(t, 1.2, m.RiskMultiplier, 1e-9)
}

func TestDifficultyClampsAndIsPure(t *testing.T) {
	c := DefaultDifficulty()
	c.Sensitivity = 10
	perf := Performance{WinRate: 0, GamesPlayed: 50}

	first := c.Modifiers(perf)
	assert.Equal(t, c.MaxMultiplier, first.BluffMultiplier)
	assert.Equal(t, c.MaxMultiplier, first.RiskMultiplier)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Modifiers(perf))
	}

	low := c.Modifiers(Performance{WinRate: 1, GamesPlayed: 50})
	assert.Equal(t, c.MinMultiplier, low.BluffMultiplier)
}
