package npc

import "math"

// Performance is the slice of monitoring data difficulty depends on.
type Performance struct {
	WinRate     float64 `json:"winRate"`
	GamesPlayed int     `json:"gamesPlayed"`
}

// Modifiers scale bluff likelihood and risk appetite.
type Modifiers struct {
	BluffMultiplier float64 `json:"bluffMultiplier"`
	RiskMultiplier  float64 `json:"riskMultiplier"`
}

func NeutralModifiers() Modifiers {
	return Modifiers{BluffMultiplier: 1, RiskMultiplier: 1}
}

// DifficultyConfig steers the AI's win rate toward TargetWinRate.
type DifficultyConfig struct {
	TargetWinRate float64 `json:"targetWinRate" yaml:"targetWinRate"`
	Band          float64 `json:"band" yaml:"band"`
	Sensitivity   float64 `json:"sensitivity" yaml:"sensitivity"`
	MinMultiplier float64 `json:"minMultiplier" yaml:"minMultiplier"`
	MaxMultiplier float64 `json:"maxMultiplier" yaml:"maxMultiplier"`
	MinGames      int     `json:"minGames" yaml:"minGames"`
}

func DefaultDifficulty() DifficultyConfig {
	return DifficultyConfig{
		TargetWinRate: 0.5,
		Band:          0.1,
		Sensitivity:   1.0,
		MinMultiplier: 0.5,
		MaxMultiplier: 1.5,
		MinGames:      5,
	}
}

// Modifiers is pure: the same performance always yields the same result.
// Inside the target band, or with too few games, it is neutral. An AI that
// wins too often gets multipliers below 1, one that loses gets them above.
// Risk moves at half the slope of bluffing.
func (c DifficultyConfig) Modifiers(perf Performance) Modifiers {
	if perf.GamesPlayed < c.MinGames || math.IsNaN(perf.WinRate) {
		return NeutralModifiers()
	}
	delta := c.TargetWinRate - clamp01(perf.WinRate)
	if math.Abs(delta) <= c.Band {
		return NeutralModifiers()
	}
	return Modifiers{
		BluffMultiplier: c.clamp(1 + c.Sensitivity*delta),
		RiskMultiplier:  c.clamp(1 + c.Sensitivity*delta/2),
	}
}

func (c DifficultyConfig) clamp(v float64) float64 {
	if v < c.MinMultiplier {
		return c.MinMultiplier
	}
	if v > c.MaxMultiplier {
		return c.MaxMultiplier
	}
	return v
}
