package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/scoring"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/google/uuid"
)

// Offline demonstration of the visibility score calculation using canned
// annotated mentions. No network access or API keys needed.
func main() {
	fmt.Println("📊 AI Visibility Bot - Score Calculation Demo")
	fmt.Println("=============================================")

	memory := store.NewMemory()
	calculator := scoring.NewCalculator(memory)
	ctx := context.Background()

	userID := "demo-user"
	mentions := sampleMentions(userID)

	fmt.Printf("\n📝 Sample run: %d mentions across %d platforms, 16 queries expected\n",
		len(mentions), distinctPlatforms(mentions))

	first := calculator.Score(ctx, userID, mentions, 16, 4)
	printScore("First run", first)

	// A weaker second run shows the trend calculation against the stored
	// previous score.
	second := calculator.Score(ctx, userID, mentions[:2], 16, 4)
	printScore("Second run (fewer mentions)", second)

	// Zero mentions short-circuits to the all-zero score.
	third := calculator.Score(ctx, userID, nil, 16, 4)
	printScore("Third run (no mentions)", third)
}

func sampleMentions(userID string) []models.AIMention {
	now := time.Now()
	samples := []struct {
		platform   string
		sentiment  models.Sentiment
		prominence models.Prominence
	}{
		{"chatgpt", models.SentimentPositive, models.ProminenceHigh},
		{"chatgpt", models.SentimentPositive, models.ProminenceMedium},
		{"claude", models.SentimentNeutral, models.ProminenceMedium},
		{"perplexity", models.SentimentPositive, models.ProminenceHigh},
		{"gemini", models.SentimentNegative, models.ProminenceLow},
	}

	var mentions []models.AIMention
	for _, sample := range samples {
		mentions = append(mentions, models.AIMention{
			ID:          uuid.NewString(),
			UserID:      userID,
			Platform:    sample.platform,
			QueryText:   "Who are the best real estate agents in Seattle?",
			RawResponse: "Jordan Ellis is a well-regarded agent in the Seattle area.",
			Sentiment:   sample.sentiment,
			Prominence:  sample.prominence,
			Topics:      []string{"real estate"},
			Timestamp:   now,
		})
	}
	return mentions
}

func distinctPlatforms(mentions []models.AIMention) int {
	seen := make(map[string]bool)
	for _, mention := range mentions {
		seen[mention.Platform] = true
	}
	return len(seen)
}

func printScore(label string, score *models.VisibilityScore) {
	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Printf("🏆 %s\n", label)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("   Score:              %d / 100\n", score.Score)
	fmt.Printf("   • Mention frequency: %d / 25\n", score.Breakdown.MentionFrequency)
	fmt.Printf("   • Sentiment:         %d / 35\n", score.Breakdown.Sentiment)
	fmt.Printf("   • Prominence:        %d / 25\n", score.Breakdown.Prominence)
	fmt.Printf("   • Diversity:         %d / 15\n", score.Breakdown.PlatformDiversity)
	fmt.Printf("   Mentions:           %d\n", score.MentionCount)
	fmt.Printf("   Trend:              %s (%.1f%%)\n", score.Trend, score.TrendPercentage)
}
