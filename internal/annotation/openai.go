package annotation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/go-resty/resty/v2"
)

// OpenAIAnnotator labels responses with a chat completion call asking for
// strict JSON output.
type OpenAIAnnotator struct {
	apiKey string
	model  string
	client *resty.Client
}

// NewOpenAIAnnotator creates an annotator backed by the OpenAI API.
func NewOpenAIAnnotator(apiKey string) *OpenAIAnnotator {
	return &OpenAIAnnotator{
		apiKey: apiKey,
		model:  "gpt-4o-mini",
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

const annotationPrompt = `You label how a real estate professional appears in an AI-generated answer.
Professional: %s
Answer text:
%s

Reply with only a JSON object, no prose:
{"sentiment": "positive|neutral|negative", "prominence": "high|medium|low", "topics": ["..."]}`

func (a *OpenAIAnnotator) Annotate(ctx context.Context, agentName, rawResponse string) (models.Annotation, error) {
	body := map[string]interface{}{
		"model": a.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(annotationPrompt, agentName, rawResponse)},
		},
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+a.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("https://api.openai.com/v1/chat/completions")

	if err != nil {
		return models.Annotation{}, err
	}
	if resp.StatusCode() != 200 {
		return models.Annotation{}, fmt.Errorf("annotation API returned status %d", resp.StatusCode())
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body(), &completion); err != nil {
		return models.Annotation{}, fmt.Errorf("failed to decode annotation response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return models.Annotation{}, fmt.Errorf("annotation API returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	// Models sometimes wrap JSON in a code fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var annotation models.Annotation
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &annotation); err != nil {
		return models.Annotation{}, fmt.Errorf("annotation output was not valid JSON: %w", err)
	}

	return annotation, nil
}
