package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// PerplexityPlatform queries the Perplexity chat completions API.
type PerplexityPlatform struct {
	apiKey string
	model  string
	client *resty.Client
}

// NewPerplexityPlatform creates a Perplexity platform adapter.
func NewPerplexityPlatform(apiKey string) *PerplexityPlatform {
	return &PerplexityPlatform{
		apiKey: apiKey,
		model:  "sonar",
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (p *PerplexityPlatform) Name() string {
	return "perplexity"
}

// 0.1 cents per query
func (p *PerplexityPlatform) UnitCostMillicents() int64 {
	return 100
}

func (p *PerplexityPlatform) IsEnabled() bool {
	return p.apiKey != ""
}

func (p *PerplexityPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	// Perplexity mirrors the OpenAI chat completion shape.
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(chatCompletionRequest{
			Model:    p.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		Post("https://api.perplexity.ai/chat/completions")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", &apiError{platform: p.Name(), status: resp.StatusCode(), body: string(resp.Body())}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return "", fmt.Errorf("failed to decode perplexity response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("perplexity returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
