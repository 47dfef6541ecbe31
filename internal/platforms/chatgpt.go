package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ChatGPTPlatform queries the OpenAI chat completions API.
type ChatGPTPlatform struct {
	apiKey string
	model  string
	client *resty.Client
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewChatGPTPlatform creates a ChatGPT platform adapter.
func NewChatGPTPlatform(apiKey string) *ChatGPTPlatform {
	return &ChatGPTPlatform{
		apiKey: apiKey,
		model:  "gpt-4o-mini",
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (p *ChatGPTPlatform) Name() string {
	return "chatgpt"
}

// 0.2 cents per query
func (p *ChatGPTPlatform) UnitCostMillicents() int64 {
	return 200
}

func (p *ChatGPTPlatform) IsEnabled() bool {
	return p.apiKey != ""
}

func (p *ChatGPTPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(chatCompletionRequest{
			Model:    p.model,
			Messages: []chatMessage{{Role: "user", Content: prompt}},
		}).
		Post("https://api.openai.com/v1/chat/completions")

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", &apiError{platform: p.Name(), status: resp.StatusCode(), body: string(resp.Body())}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return "", fmt.Errorf("failed to decode chatgpt response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chatgpt returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
