package annotation

import (
	"context"
	"strings"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
)

// KeywordAnnotator labels responses with keyword heuristics. It needs no
// external service and backs local runs and tests.
type KeywordAnnotator struct{}

// NewKeywordAnnotator creates the offline annotator.
func NewKeywordAnnotator() *KeywordAnnotator {
	return &KeywordAnnotator{}
}

var positiveWords = []string{
	"excellent", "outstanding", "trusted", "top-rated", "recommend", "recommended",
	"great", "best", "experienced", "knowledgeable", "helpful", "professional",
}

var negativeWords = []string{
	"complaint", "complaints", "avoid", "scam", "unprofessional", "poor",
	"bad", "terrible", "lawsuit", "dispute", "unresponsive",
}

var topicKeywords = map[string]string{
	"luxury":      "luxury homes",
	"condo":       "condos",
	"first-time":  "first-time buyers",
	"commercial":  "commercial property",
	"investment":  "investment property",
	"rental":      "rentals",
	"waterfront":  "waterfront property",
	"relocation":  "relocation",
	"listing":     "listings",
	"negotiation": "negotiation",
}

func (a *KeywordAnnotator) Annotate(ctx context.Context, agentName, rawResponse string) (models.Annotation, error) {
	content := strings.ToLower(rawResponse)

	positiveCount := 0
	for _, word := range positiveWords {
		if strings.Contains(content, word) {
			positiveCount++
		}
	}

	negativeCount := 0
	for _, word := range negativeWords {
		if strings.Contains(content, word) {
			negativeCount++
		}
	}

	sentiment := models.SentimentNeutral
	if positiveCount > negativeCount {
		sentiment = models.SentimentPositive
	} else if negativeCount > positiveCount {
		sentiment = models.SentimentNegative
	}

	return models.Annotation{
		Sentiment:  sentiment,
		Prominence: prominenceByPosition(content, strings.ToLower(agentName)),
		Topics:     detectTopics(content),
	}, nil
}

// prominenceByPosition rates how early in the response the agent's name
// appears. Early mentions read as featured placement, trailing mentions as
// passing references.
func prominenceByPosition(content, agentName string) models.Prominence {
	if agentName == "" {
		return models.ProminenceMedium
	}

	index := strings.Index(content, agentName)
	if index < 0 {
		return models.ProminenceLow
	}

	position := float64(index) / float64(len(content))
	switch {
	case position < 0.25:
		return models.ProminenceHigh
	case position < 0.6:
		return models.ProminenceMedium
	default:
		return models.ProminenceLow
	}
}

func detectTopics(content string) []string {
	var topics []string
	for keyword, topic := range topicKeywords {
		if strings.Contains(content, keyword) {
			topics = append(topics, topic)
		}
	}
	if len(topics) == 0 {
		topics = []string{"real estate"}
	}
	return topics
}
