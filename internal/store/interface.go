package store

import (
	"context"
	"errors"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ConfigStore reads and updates per-user monitoring configuration.
type ConfigStore interface {
	GetConfig(ctx context.Context, userID string) (*models.MonitoringConfig, error)
	ListEnabledConfigs(ctx context.Context) ([]models.MonitoringConfig, error)
	SaveConfig(ctx context.Context, cfg *models.MonitoringConfig) error
	SaveFrequency(ctx context.Context, userID string, frequency models.Frequency) error
	SaveLastExecuted(ctx context.Context, userID string, at time.Time) error
}

// BudgetStore is the durable usage/budget store. AddSpend must atomically
// append the usage record and increment the budget's current spend so that
// overlapping invocations cannot lose updates.
type BudgetStore interface {
	GetBudget(ctx context.Context, userID string) (*models.UserBudget, error)
	SaveBudget(ctx context.Context, budget *models.UserBudget) error
	AddSpend(ctx context.Context, record models.APIUsageRecord) error
	SumUsage(ctx context.Context, userID string, from, to time.Time) (int64, error)
	ListUsage(ctx context.Context, userID string, from, to time.Time) ([]models.APIUsageRecord, error)

	SaveSpikeAlert(ctx context.Context, alert *models.CostSpikeAlert) error
	ListSpikeAlerts(ctx context.Context, includeAcknowledged bool) ([]models.CostSpikeAlert, error)
	AcknowledgeSpikeAlert(ctx context.Context, alertID string) error
}

// ScoreStore keeps the append-only visibility score time series per user.
type ScoreStore interface {
	LatestScore(ctx context.Context, userID string) (*models.VisibilityScore, error)
	AppendScore(ctx context.Context, score *models.VisibilityScore) error
	ListScores(ctx context.Context, userID string, limit int) ([]models.VisibilityScore, error)
}

// Archive stores raw mention batches as opaque blobs.
type Archive interface {
	Store(filename string, data []byte) error
	Retrieve(filename string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(filename string) error
}
