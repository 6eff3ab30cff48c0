package chat

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "chat")

type Sentiment struct {
	Score           float64 `json:"score"`
	Confidence      float64 `json:"confidence"`
	DominantEmotion string  `json:"dominantEmotion"`
}

type BluffIndicators struct {
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// Analysis is what a chat message reveals about its author. Score is in
// [-1,1]; every other number is in [0,1].
type Analysis struct {
	Sentiment       Sentiment       `json:"sentiment"`
	BluffIndicators BluffIndicators `json:"bluffIndicators"`
	KeyPhrases      []string        `json:"keyPhrases"`
}

func Neutral() Analysis {
	return Analysis{
		Sentiment:  Sentiment{DominantEmotion: "unknown"},
		KeyPhrases: []string{},
	}
}

// HasBluffSignal reports whether the analysis carries a usable bluff
// probability.
func (a Analysis) HasBluffSignal() bool {
	return a.BluffIndicators.Probability > 0
}

func (a Analysis) normalized() Analysis {
	a.Sentiment.Score = clamp(a.Sentiment.Score, -1, 1)
	a.Sentiment.Confidence = clamp(a.Sentiment.Confidence, 0, 1)
	a.BluffIndicators.Probability = clamp(a.BluffIndicators.Probability, 0, 1)
	a.BluffIndicators.Confidence = clamp(a.BluffIndicators.Confidence, 0, 1)
	if a.Sentiment.DominantEmotion == "" {
		a.Sentiment.DominantEmotion = "unknown"
	}
	if a.KeyPhrases == nil {
		a.KeyPhrases = []string{}
	}
	return a
}

type Analyzer interface {
	Analyze(ctx context.Context, message string) (Analysis, error)
}

// Lexicon scores messages against fixed phrase lists. It never fails.
type Lexicon struct {
	bluffCues   []string
	nervousCues []string
	positive    []string
	negative    []string
}

func NewLexicon() *Lexicon {
	return &Lexicon{
		bluffCues: []string{
			"trust me", "believe me", "i swear", "honestly", "definitely",
			"for sure", "100%", "no bluff", "totally", "obviously",
		},
		nervousCues: []string{"um", "uh", "hmm", "maybe", "i think", "...", "whatever"},
		positive:    []string{"nice", "great", "good", "lol", "haha", "gg", "easy", "win"},
		negative:    []string{"ugh", "damn", "bad", "lucky", "cheat", "liar", "lose", "annoying"},
	}
}

func (l *Lexicon) Analyze(_ context.Context, message string) (Analysis, error) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Neutral(), nil
	}
	words := tokenize(text)

	var phrases []string
	bluffHits := 0
	for _, cue := range l.bluffCues {
		if strings.Contains(text, cue) {
			bluffHits++
			phrases = append(phrases, cue)
		}
	}
	nervousHits := 0
	for _, cue := range l.nervousCues {
		if hasCue(text, words, cue) {
			nervousHits++
			phrases = append(phrases, cue)
		}
	}
	pos, neg := 0, 0
	for _, w := range l.positive {
		if words[w] {
			pos++
		}
	}
	for _, w := range l.negative {
		if words[w] {
			neg++
		}
	}

	a := Analysis{KeyPhrases: phrases}
	a.BluffIndicators.Probability = 0.25*float64(bluffHits) + 0.15*float64(nervousHits)
	a.BluffIndicators.Confidence = 0.3 * float64(bluffHits+nervousHits)
	if pos+neg > 0 {
		a.Sentiment.Score = float64(pos-neg) / float64(pos+neg)
		a.Sentiment.Confidence = math.Min(1, 0.3*float64(pos+neg))
	}
	switch {
	case nervousHits > bluffHits:
		a.Sentiment.DominantEmotion = "nervous"
	case bluffHits > 0:
		a.Sentiment.DominantEmotion = "confident"
	case pos > neg:
		a.Sentiment.DominantEmotion = "happy"
	case neg > pos:
		a.Sentiment.DominantEmotion = "frustrated"
	default:
		a.Sentiment.DominantEmotion = "neutral"
	}
	return a.normalized(), nil
}

// hasCue matches single-word cues on word boundaries and the rest as
// substrings.
func hasCue(text string, words map[string]bool, cue string) bool {
	if strings.IndexFunc(cue, func(r rune) bool { return !unicode.IsLetter(r) }) < 0 {
		return words[cue]
	}
	return strings.Contains(text, cue)
}

func tokenize(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}
	return words
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
