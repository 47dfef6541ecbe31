package scoring

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Component ranges. The four clamped components always sum to the final
// score, which is itself clamped to [0,100].
const (
	maxMentionFrequency  = 25
	maxSentiment         = 35
	maxProminence        = 25
	maxPlatformDiversity = 15
)

// Trend deadband: changes within +/-1% read as stable.
const trendDeadbandPercent = 1.0

// Calculator folds a run's annotated mentions into one visibility score and
// appends it to the user's score time series.
type Calculator struct {
	scores store.ScoreStore
	now    func() time.Time
}

// NewCalculator creates a calculator over the given score store.
func NewCalculator(scores store.ScoreStore) *Calculator {
	return &Calculator{
		scores: scores,
		now:    time.Now,
	}
}

// SetNow overrides the clock. Intended for tests.
func (c *Calculator) SetNow(now func() time.Time) {
	c.now = now
}

// Score computes, persists and returns the visibility score for one run.
// expectedQueries is the query volume the run was configured for;
// configuredPlatforms is how many platforms were configured (not how many
// responded). Any unexpected failure mid-calculation degrades to the all-zero
// score rather than propagating.
func (c *Calculator) Score(ctx context.Context, userID string, mentions []models.AIMention, expectedQueries, configuredPlatforms int) *models.VisibilityScore {
	score := c.calculate(ctx, userID, mentions, expectedQueries, configuredPlatforms)

	if err := c.scores.AppendScore(ctx, score); err != nil {
		logrus.Errorf("Failed to persist visibility score for user %s: %v", userID, err)
	}
	return score
}

func (c *Calculator) calculate(ctx context.Context, userID string, mentions []models.AIMention, expectedQueries, configuredPlatforms int) (result *models.VisibilityScore) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Score calculation failed for user %s, falling back to zero score: %v", userID, r)
			result = c.zeroScore(userID)
		}
	}()

	// Zero mentions is a valid, intentional outcome, not a failure.
	if len(mentions) == 0 {
		return c.zeroScore(userID)
	}

	breakdown := models.ScoreBreakdown{
		MentionFrequency:  mentionFrequencyComponent(len(mentions), expectedQueries),
		Sentiment:         sentimentComponent(mentions),
		Prominence:        prominenceComponent(mentions),
		PlatformDiversity: diversityComponent(mentions, configuredPlatforms),
	}

	total := clamp(breakdown.Total(), 0, 100)
	trend, trendPct := c.trendAgainstPrevious(ctx, userID, total)

	return &models.VisibilityScore{
		ID:              uuid.NewString(),
		UserID:          userID,
		Score:           total,
		Breakdown:       breakdown,
		MentionCount:    len(mentions),
		Trend:           trend,
		TrendPercentage: trendPct,
		CalculatedAt:    c.now(),
	}
}

func (c *Calculator) zeroScore(userID string) *models.VisibilityScore {
	return &models.VisibilityScore{
		ID:           uuid.NewString(),
		UserID:       userID,
		Score:        0,
		MentionCount: 0,
		Trend:        models.TrendStable,
		CalculatedAt: c.now(),
	}
}

// mentionFrequencyComponent scales mention count against the expected query
// volume into [0,25].
func mentionFrequencyComponent(mentionCount, expectedQueries int) int {
	if expectedQueries < 1 {
		expectedQueries = 1
	}
	ratio := float64(mentionCount) / float64(expectedQueries)
	return clamp(int(math.Round(ratio*maxMentionFrequency)), 0, maxMentionFrequency)
}

// sentimentComponent rescales the average sentiment (-1..+1) into [0,35].
func sentimentComponent(mentions []models.AIMention) int {
	var sum float64
	for _, mention := range mentions {
		switch mention.Sentiment {
		case models.SentimentPositive:
			sum++
		case models.SentimentNegative:
			sum--
		}
	}
	average := sum / float64(len(mentions))
	scaled := (average + 1) / 2 * maxSentiment
	return clamp(int(math.Round(scaled)), 0, maxSentiment)
}

// prominenceComponent weights how prominently the agent appeared, into
// [0,25].
func prominenceComponent(mentions []models.AIMention) int {
	var sum float64
	for _, mention := range mentions {
		switch mention.Prominence {
		case models.ProminenceHigh:
			sum += 1.0
		case models.ProminenceMedium:
			sum += 0.6
		case models.ProminenceLow:
			sum += 0.3
		}
	}
	average := sum / float64(len(mentions))
	return clamp(int(math.Round(average*maxProminence)), 0, maxProminence)
}

// diversityComponent is proportional to the share of configured platforms
// that surfaced at least one mention, into [0,15].
func diversityComponent(mentions []models.AIMention, configuredPlatforms int) int {
	if configuredPlatforms < 1 {
		configuredPlatforms = 1
	}
	distinct := make(map[string]bool)
	for _, mention := range mentions {
		distinct[mention.Platform] = true
	}
	ratio := float64(len(distinct)) / float64(configuredPlatforms)
	return clamp(int(math.Round(ratio*maxPlatformDiversity)), 0, maxPlatformDiversity)
}

// trendAgainstPrevious compares the new score to the immediately preceding
// stored score for the same user.
func (c *Calculator) trendAgainstPrevious(ctx context.Context, userID string, score int) (models.Trend, float64) {
	previous, err := c.scores.LatestScore(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logrus.Errorf("Failed to load previous score for user %s: %v", userID, err)
		}
		return models.TrendStable, 0
	}

	base := previous.Score
	if base < 1 {
		base = 1
	}
	trendPct := float64(score-previous.Score) / float64(base) * 100

	switch {
	case trendPct > trendDeadbandPercent:
		return models.TrendUp, trendPct
	case trendPct < -trendDeadbandPercent:
		return models.TrendDown, trendPct
	default:
		return models.TrendStable, trendPct
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
