package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned by a nil or keyless client.
var ErrNotConfigured = errors.New("generator: llm client not configured")

// OpenAIConfig configures OpenAICompleter.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional, e.g. a proxy or a test server
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAICompleter implements Completer with the chat completions API.
type OpenAICompleter struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAI returns a completer, or ErrNotConfigured when no key is set.
func NewOpenAI(cfg OpenAIConfig, log zerolog.Logger) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	log.Info().Str("model", cfg.Model).Msg("openai client initialized")
	return &OpenAICompleter{client: openai.NewClientWithConfig(oc), cfg: cfg, log: log}, nil
}

// Complete sends one system+user exchange and returns the first choice.
func (o *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	if o == nil || o.client == nil {
		return "", ErrNotConfigured
	}
	req := openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: float32(o.cfg.Temperature),
	}
	if o.cfg.MaxTokens > 0 {
		req.MaxCompletionTokens = o.cfg.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Str("model", o.cfg.Model).Msg("openai call failed")
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyOutput)
	}
	o.log.Debug().
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Msg("openai completion received")
	return resp.Choices[0].Message.Content, nil
}
