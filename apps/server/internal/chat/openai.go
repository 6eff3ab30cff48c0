package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"bluff-lite/apps/server/internal/recovery"
)

const DefaultModel = "gpt-4o-mini"

var ErrThrottled = errors.New("chat analysis throttled")

const systemPrompt = `You read table talk from a card game where players may lie about the cards they put down.
Reply with a JSON object only:
{"sentiment":{"score":-1..1,"confidence":0..1,"dominantEmotion":"word"},
 "bluffIndicators":{"probability":0..1,"confidence":0..1},
 "keyPhrases":["..."]}
bluffIndicators.probability is how likely the speaker is bluffing right now.`

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// RatePerSec bounds remote calls; excess messages go to the fallback.
	RatePerSec float64
}

// OpenAI asks a chat completion model for the analysis and answers from
// the fallback analyzer when throttled or when the call fails.
type OpenAI struct {
	client   *openai.Client
	model    string
	limiter  *rate.Limiter
	fallback Analyzer
}

func NewOpenAI(cfg OpenAIConfig, fallback Analyzer) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if fallback == nil {
		fallback = NewLexicon()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	log.WithField("model", cfg.Model).Info("initializing openai chat analyzer")
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		fallback: fallback,
	}, nil
}

func (o *OpenAI) Analyze(ctx context.Context, message string) (Analysis, error) {
	if strings.TrimSpace(message) == "" {
		return Neutral(), nil
	}
	a, _ := recovery.WithFallback(ctx, "chat.openai",
		func(ctx context.Context) (Analysis, error) { return o.remote(ctx, message) },
		func(ctx context.Context) Analysis {
			fa, err := o.fallback.Analyze(ctx, message)
			if err != nil {
				return Neutral()
			}
			return fa
		})
	return a, nil
}

func (o *OpenAI) remote(ctx context.Context, message string) (Analysis, error) {
	if !o.limiter.Allow() {
		return Analysis{}, ErrThrottled
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, fmt.Errorf("openai returned no choices")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &a); err != nil {
		return Analysis{}, fmt.Errorf("decode chat analysis: %w", err)
	}
	log.WithField("finish_reason", resp.Choices[0].FinishReason).Debug("chat analysis received")
	return a.normalized(), nil
}
