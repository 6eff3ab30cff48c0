package npc

// PersonalityProfile defines the tunable traits of an AI opponent.
type PersonalityProfile struct {
	RiskTolerance  float64 `json:"riskTolerance" yaml:"riskTolerance"`   // 0.0–1.0: base risk level for plays and bluffs
	Aggressiveness float64 `json:"aggressiveness" yaml:"aggressiveness"` // 0.0–1.0: appetite for contesting claims
	Adaptability   float64 `json:"adaptability" yaml:"adaptability"`     // 0.0–1.0: how fast difficulty shifts are accepted
	Deceptiveness  float64 `json:"deceptiveness" yaml:"deceptiveness"`   // 0.0–1.0: base bluff frequency
	Confidence     float64 `json:"confidence" yaml:"confidence"`         // 0.0–1.0
	Impulsiveness  float64 `json:"impulsiveness" yaml:"impulsiveness"`   // 0.0–1.0
}

// NPCPersona defines a named AI character.
type NPCPersona struct {
	ID      string             `json:"id" yaml:"id"`
	Name    string             `json:"name" yaml:"name"`
	Tagline string             `json:"tagline" yaml:"tagline"`
	Tier    int                `json:"tier" yaml:"tier"` // 1=boss, 2=regular, 3=practice
	Brain   PersonalityProfile `json:"brain" yaml:"brain"`
}

// DefaultPersonaID names the persona used when none is configured.
const DefaultPersonaID = "default"

// DefaultPersona is a balanced opponent.
func DefaultPersona() *NPCPersona {
	return &NPCPersona{
		ID:      DefaultPersonaID,
		Name:    "Dealer",
		Tagline: "Plays it straight, mostly.",
		Tier:    2,
		Brain: PersonalityProfile{
			RiskTolerance:  0.6,
			Aggressiveness: 0.7,
			Adaptability:   0.5,
			Deceptiveness:  0.6,
			Confidence:     0.7,
			Impulsiveness:  0.4,
		},
	}
}

func (p PersonalityProfile) clamped() PersonalityProfile {
	return PersonalityProfile{
		RiskTolerance:  clamp01(p.RiskTolerance),
		Aggressiveness: clamp01(p.Aggressiveness),
		Adaptability:   clamp01(p.Adaptability),
		Deceptiveness:  clamp01(p.Deceptiveness),
		Confidence:     clamp01(p.Confidence),
		Impulsiveness:  clamp01(p.Impulsiveness),
	}
}
