package annotation

import (
	"context"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
)

// Annotator turns a raw platform response into sentiment/prominence/topic
// labels. Implementations may fail or return out-of-range values; callers go
// through Validate, which clamps and falls back, so annotator output never
// breaks scoring.
type Annotator interface {
	Annotate(ctx context.Context, agentName, rawResponse string) (models.Annotation, error)
}

// Fallback is the annotation used when the annotator fails or returns
// invalid labels.
func Fallback() models.Annotation {
	return models.Annotation{
		Sentiment:  models.SentimentNeutral,
		Prominence: models.ProminenceMedium,
		Topics:     []string{"real estate"},
	}
}

// Validate clamps an annotation to the supported label sets, substituting
// fallback values for anything out of range.
func Validate(a models.Annotation) models.Annotation {
	fallback := Fallback()

	switch a.Sentiment {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
	default:
		a.Sentiment = fallback.Sentiment
	}

	switch a.Prominence {
	case models.ProminenceHigh, models.ProminenceMedium, models.ProminenceLow:
	default:
		a.Prominence = fallback.Prominence
	}

	if len(a.Topics) == 0 {
		a.Topics = fallback.Topics
	}

	return a
}
