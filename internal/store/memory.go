package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
)

// Memory is a mutex-guarded in-memory store. It backs local development runs
// when no DATABASE_URL is configured, and the test suites.
type Memory struct {
	mu      sync.Mutex
	configs map[string]models.MonitoringConfig
	budgets map[string]models.UserBudget
	usage   []models.APIUsageRecord
	scores  map[string][]models.VisibilityScore
	spikes  map[string]models.CostSpikeAlert
}

var (
	_ ConfigStore = (*Memory)(nil)
	_ BudgetStore = (*Memory)(nil)
	_ ScoreStore  = (*Memory)(nil)
)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		configs: make(map[string]models.MonitoringConfig),
		budgets: make(map[string]models.UserBudget),
		scores:  make(map[string][]models.VisibilityScore),
		spikes:  make(map[string]models.CostSpikeAlert),
	}
}

func (m *Memory) GetConfig(ctx context.Context, userID string) (*models.MonitoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := cfg
	return &copied, nil
}

func (m *Memory) ListEnabledConfigs(ctx context.Context) ([]models.MonitoringConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.MonitoringConfig
	for _, cfg := range m.configs {
		if cfg.Enabled {
			result = append(result, cfg)
		}
	}
	// Stable order keeps batch runs deterministic.
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (m *Memory) SaveConfig(ctx context.Context, cfg *models.MonitoringConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configs[cfg.UserID] = *cfg
	return nil
}

func (m *Memory) SaveFrequency(ctx context.Context, userID string, frequency models.Frequency) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[userID]
	if !ok {
		return ErrNotFound
	}
	cfg.Frequency = frequency
	m.configs[userID] = cfg
	return nil
}

func (m *Memory) SaveLastExecuted(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[userID]
	if !ok {
		return ErrNotFound
	}
	cfg.LastExecutedAt = &at
	m.configs[userID] = cfg
	return nil
}

func (m *Memory) GetBudget(ctx context.Context, userID string) (*models.UserBudget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget, ok := m.budgets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := budget
	copied.AlertThresholds = append([]float64(nil), budget.AlertThresholds...)
	copied.AlertsSent = append([]float64(nil), budget.AlertsSent...)
	return &copied, nil
}

func (m *Memory) SaveBudget(ctx context.Context, budget *models.UserBudget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *budget
	copied.AlertThresholds = append([]float64(nil), budget.AlertThresholds...)
	copied.AlertsSent = append([]float64(nil), budget.AlertsSent...)
	m.budgets[budget.UserID] = copied
	return nil
}

func (m *Memory) AddSpend(ctx context.Context, record models.APIUsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	budget, ok := m.budgets[record.UserID]
	if !ok {
		return ErrNotFound
	}

	m.usage = append(m.usage, record)
	budget.CurrentSpendMillicents += record.CostMillicents
	m.budgets[record.UserID] = budget
	return nil
}

func (m *Memory) SumUsage(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, record := range m.usage {
		if record.UserID != userID {
			continue
		}
		if record.Timestamp.Before(from) || !record.Timestamp.Before(to) {
			continue
		}
		total += record.CostMillicents
	}
	return total, nil
}

func (m *Memory) ListUsage(ctx context.Context, userID string, from, to time.Time) ([]models.APIUsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.APIUsageRecord
	for _, record := range m.usage {
		if record.UserID != userID {
			continue
		}
		if record.Timestamp.Before(from) || !record.Timestamp.Before(to) {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

func (m *Memory) SaveSpikeAlert(ctx context.Context, alert *models.CostSpikeAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.spikes[alert.ID] = *alert
	return nil
}

func (m *Memory) ListSpikeAlerts(ctx context.Context, includeAcknowledged bool) ([]models.CostSpikeAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.CostSpikeAlert
	for _, alert := range m.spikes {
		if !includeAcknowledged && alert.Acknowledged {
			continue
		}
		result = append(result, alert)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) AcknowledgeSpikeAlert(ctx context.Context, alertID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.spikes[alertID]
	if !ok {
		return ErrNotFound
	}
	alert.Acknowledged = true
	m.spikes[alertID] = alert
	return nil
}

func (m *Memory) LatestScore(ctx context.Context, userID string) (*models.VisibilityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.scores[userID]
	if len(series) == 0 {
		return nil, ErrNotFound
	}
	copied := series[len(series)-1]
	return &copied, nil
}

func (m *Memory) AppendScore(ctx context.Context, score *models.VisibilityScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.scores[score.UserID] = append(m.scores[score.UserID], *score)
	return nil
}

func (m *Memory) ListScores(ctx context.Context, userID string, limit int) ([]models.VisibilityScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.scores[userID]
	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}
	return append([]models.VisibilityScore(nil), series...), nil
}
