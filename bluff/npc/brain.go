package npc

import "bluff-lite/bluff"

// Advisor proposes an abstract action for a state. Implemented by Policy.
type Advisor interface {
	Suggest(gs bluff.GameState) bluff.ActionKey
}

// Predictor estimates how the opponent behaves. Implemented by
// PatternPredictor.
type Predictor interface {
	Predict() Prediction
}

// Modulator turns recent performance into difficulty multipliers.
// Implemented by DifficultyConfig.
type Modulator interface {
	Modifiers(perf Performance) Modifiers
}

// Signals are the per-decision inputs the brain fuses into one action.
// Any of them may be the neutral default when its source failed.
type Signals struct {
	Suggestion bluff.ActionKey
	Prediction Prediction
	Modifiers  Modifiers
	// ChatBluff is the chat bluff-indicator probability; nil when no chat
	// message was analyzed.
	ChatBluff *float64
}

// NeutralSignals is what the brain sees when every source failed.
func NeutralSignals() Signals {
	return Signals{
		Suggestion: bluff.ActionKey{Type: bluff.ActionPass},
		Modifiers:  NeutralModifiers(),
	}
}
