package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// GeminiPlatform queries the Google Gemini generateContent API.
type GeminiPlatform struct {
	apiKey string
	model  string
	client *resty.Client
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// NewGeminiPlatform creates a Gemini platform adapter.
func NewGeminiPlatform(apiKey string) *GeminiPlatform {
	return &GeminiPlatform{
		apiKey: apiKey,
		model:  "gemini-1.5-flash",
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (p *GeminiPlatform) Name() string {
	return "gemini"
}

// 0.05 cents per query
func (p *GeminiPlatform) UnitCostMillicents() int64 {
	return 50
}

func (p *GeminiPlatform) IsEnabled() bool {
	return p.apiKey != ""
}

func (p *GeminiPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", p.model)

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(geminiRequest{
			Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		}).
		Post(url)

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", &apiError{platform: p.Name(), status: resp.StatusCode(), body: string(resp.Body())}
	}

	var generated geminiResponse
	if err := json.Unmarshal(resp.Body(), &generated); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(generated.Candidates) == 0 || len(generated.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return generated.Candidates[0].Content.Parts[0].Text, nil
}
