package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClaudePlatform queries the Anthropic messages API.
type ClaudePlatform struct {
	apiKey string
	model  string
	client *resty.Client
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClaudePlatform creates a Claude platform adapter.
func NewClaudePlatform(apiKey string) *ClaudePlatform {
	return &ClaudePlatform{
		apiKey: apiKey,
		model:  "claude-3-5-haiku-latest",
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (p *ClaudePlatform) Name() string {
	return "claude"
}

// 0.3 cents per query
func (p *ClaudePlatform) UnitCostMillicents() int64 {
	return 300
}

func (p *ClaudePlatform) IsEnabled() bool {
	return p.apiKey != ""
}

func (p *ClaudePlatform) Ask(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", p.apiKey).
		SetHeader("anthropic-version", "2023-06-01").
		SetHeader("Content-Type", "application/json").
		SetBody(claudeRequest{
			Model:     p.model,
			MaxTokens: 1024,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
		}).
		Post("https://api.anthropic.com/v1/messages")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", &apiError{platform: p.Name(), status: resp.StatusCode(), body: string(resp.Body())}
	}

	var message claudeResponse
	if err := json.Unmarshal(resp.Body(), &message); err != nil {
		return "", fmt.Errorf("failed to decode claude response: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("claude returned no text content")
}
