package notifications

import "github.com/bayonhq/ai-visibility-bot/internal/models"

// Notifier delivers alerts and notices. Delivery is fire-and-forget from the
// scheduler's perspective: errors are logged by callers, never fatal to a run.
type Notifier interface {
	SendBudgetAlert(userID string, threshold float64, budget *models.UserBudget) error
	SendFrequencyReduction(userID string, newFrequency models.Frequency) error
	SendSpikeAlert(alert *models.CostSpikeAlert) error
	SendBatchReport(result *models.BatchResult) error
}
