package annotation

import (
	"context"
	"strings"
	"testing"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_PassesThroughValidAnnotation(t *testing.T) {
	in := models.Annotation{
		Sentiment:  models.SentimentPositive,
		Prominence: models.ProminenceHigh,
		Topics:     []string{"luxury homes"},
	}

	assert.Equal(t, in, Validate(in))
}

func TestValidate_ClampsOutOfRangeLabels(t *testing.T) {
	out := Validate(models.Annotation{
		Sentiment:  "euphoric",
		Prominence: "colossal",
	})

	assert.Equal(t, models.SentimentNeutral, out.Sentiment)
	assert.Equal(t, models.ProminenceMedium, out.Prominence)
	assert.Equal(t, []string{"real estate"}, out.Topics)
}

func TestValidate_PartiallyInvalidKeepsValidFields(t *testing.T) {
	out := Validate(models.Annotation{
		Sentiment:  models.SentimentNegative,
		Prominence: "huge",
		Topics:     []string{"condos"},
	})

	assert.Equal(t, models.SentimentNegative, out.Sentiment)
	assert.Equal(t, models.ProminenceMedium, out.Prominence)
	assert.Equal(t, []string{"condos"}, out.Topics)
}

func TestKeywordAnnotator_Sentiment(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     models.Sentiment
	}{
		{
			name:     "positive language",
			response: "Jordan Ellis is an excellent, highly recommended agent.",
			want:     models.SentimentPositive,
		},
		{
			name:     "negative language",
			response: "There are complaints about Jordan Ellis, best to avoid.",
			want:     models.SentimentNegative,
		},
		{
			name:     "neutral language",
			response: "Jordan Ellis is a real estate agent in Austin.",
			want:     models.SentimentNeutral,
		},
		{
			name:     "mixed language balances to neutral",
			response: "Jordan Ellis is experienced but there is one complaint on file.",
			want:     models.SentimentNeutral,
		},
	}

	annotator := NewKeywordAnnotator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			annotation, err := annotator.Annotate(context.Background(), "Jordan Ellis", tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, annotation.Sentiment)
		})
	}
}

func TestKeywordAnnotator_ProminenceByPosition(t *testing.T) {
	annotator := NewKeywordAnnotator()
	ctx := context.Background()

	early, err := annotator.Annotate(ctx, "Jordan Ellis",
		"Jordan Ellis tops the list. "+strings.Repeat("More names follow. ", 20))
	require.NoError(t, err)
	assert.Equal(t, models.ProminenceHigh, early.Prominence)

	late, err := annotator.Annotate(ctx, "Jordan Ellis",
		strings.Repeat("Other agents come first. ", 20)+"Finally, Jordan Ellis.")
	require.NoError(t, err)
	assert.Equal(t, models.ProminenceLow, late.Prominence)

	absent, err := annotator.Annotate(ctx, "Jordan Ellis", "No agents were named here.")
	require.NoError(t, err)
	assert.Equal(t, models.ProminenceLow, absent.Prominence)
}

func TestKeywordAnnotator_Topics(t *testing.T) {
	annotator := NewKeywordAnnotator()

	annotation, err := annotator.Annotate(context.Background(), "Jordan Ellis",
		"Jordan Ellis specializes in luxury properties and condo sales.")
	require.NoError(t, err)

	assert.Contains(t, annotation.Topics, "luxury homes")
	assert.Contains(t, annotation.Topics, "condos")

	plain, err := annotator.Annotate(context.Background(), "Jordan Ellis", "An agent in Austin.")
	require.NoError(t, err)
	assert.Equal(t, []string{"real estate"}, plain.Topics)
}

func TestFallback(t *testing.T) {
	fallback := Fallback()
	assert.Equal(t, models.SentimentNeutral, fallback.Sentiment)
	assert.Equal(t, models.ProminenceMedium, fallback.Prominence)
	assert.Equal(t, []string{"real estate"}, fallback.Topics)
}
