package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// spikeRatio is the period-over-period increase that triggers a cost spike
// alert (50%).
const spikeRatio = 0.5

// reduceRatio is the spend fraction at which auto-reduction kicks in (90%).
const reduceRatio = 0.9

// Defaults configure lazily created budgets.
type Defaults struct {
	MonthlyLimitMillicents int64
	AlertThresholds        []float64
}

// Service is the cost ledger: the single source of truth for "can we afford
// this, and have we already spent this".
type Service struct {
	budgets  store.BudgetStore
	configs  store.ConfigStore
	unitCost map[string]int64 // platform -> millicents per query
	defaults Defaults
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a cost ledger over the given stores. unitCost maps each
// platform name to its per-query cost in millicents.
func NewService(budgets store.BudgetStore, configs store.ConfigStore, unitCost map[string]int64, defaults Defaults) *Service {
	return &Service{
		budgets:  budgets,
		configs:  configs,
		unitCost: unitCost,
		defaults: defaults,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetNow overrides the clock. Intended for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// lockFor serializes ledger writes per user so overlapping invocations cannot
// interleave increments for the same budget.
func (s *Service) lockFor(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// CurrentBudget returns the user's budget for the current period, creating it
// with defaults on first use and rolling the period over when it has lapsed.
func (s *Service) CurrentBudget(ctx context.Context, userID string) (*models.UserBudget, error) {
	budget, err := s.budgets.GetBudget(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		budget = s.newDefaultBudget(ctx, userID)
		if err := s.budgets.SaveBudget(ctx, budget); err != nil {
			return nil, fmt.Errorf("failed to create budget for user %s: %w", userID, err)
		}
		logrus.Infof("Created default budget for user %s (limit %d millicents)", userID, budget.MonthlyLimitMillicents)
		return budget, nil
	}
	if err != nil {
		return nil, err
	}

	if rolled := s.rollover(budget); rolled {
		if err := s.budgets.SaveBudget(ctx, budget); err != nil {
			return nil, fmt.Errorf("failed to persist period rollover for user %s: %w", userID, err)
		}
		logrus.Infof("Rolled budget period for user %s, new period %s - %s",
			userID, budget.PeriodStart.Format(time.RFC3339), budget.PeriodEnd.Format(time.RFC3339))
	}
	return budget, nil
}

func (s *Service) newDefaultBudget(ctx context.Context, userID string) *models.UserBudget {
	now := s.now()
	periodStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	autoReduce := false
	if cfg, err := s.configs.GetConfig(ctx, userID); err == nil {
		autoReduce = cfg.AutoReduceFrequency
	}

	return &models.UserBudget{
		UserID:                 userID,
		MonthlyLimitMillicents: s.defaults.MonthlyLimitMillicents,
		CurrentSpendMillicents: 0,
		PeriodStart:            periodStart,
		PeriodEnd:              periodStart.AddDate(0, 1, 0),
		AlertThresholds:        append([]float64(nil), s.defaults.AlertThresholds...),
		AutoReduceFrequency:    autoReduce,
	}
}

// rollover advances the budget period month by month until now falls inside
// it, resetting spend and clearing sent alerts. Reports whether it changed
// anything.
func (s *Service) rollover(budget *models.UserBudget) bool {
	now := s.now()
	if !now.After(budget.PeriodEnd) {
		return false
	}

	for now.After(budget.PeriodEnd) {
		budget.PeriodStart = budget.PeriodEnd
		budget.PeriodEnd = budget.PeriodEnd.AddDate(0, 1, 0)
	}
	budget.CurrentSpendMillicents = 0
	budget.AlertsSent = nil
	return true
}

// EstimateCost prices a run across the given platforms without side effects.
func (s *Service) EstimateCost(ctx context.Context, userID string, platforms []string, queriesPerPlatform int) (*models.CostEstimate, error) {
	if queriesPerPlatform < 1 {
		return nil, models.NewFailure(models.ErrInvalidConfiguration, "queries per platform must be at least 1, got %d", queriesPerPlatform)
	}

	budget, err := s.CurrentBudget(ctx, userID)
	if err != nil {
		return nil, err
	}

	estimate := &models.CostEstimate{
		PerPlatformBreakdown: make(map[string]int64, len(platforms)),
	}
	for _, platform := range platforms {
		unit, ok := s.unitCost[platform]
		if !ok {
			return nil, models.NewFailure(models.ErrInvalidConfiguration, "unknown platform %q", platform)
		}
		cost := int64(queriesPerPlatform) * unit
		estimate.PerPlatformBreakdown[platform] = cost
		estimate.TotalMillicents += cost
	}

	estimate.WithinBudget = budget.CurrentSpendMillicents+estimate.TotalMillicents <= budget.MonthlyLimitMillicents
	return estimate, nil
}

// RecordUsage bills one successful platform call: it appends an append-only
// usage record and atomically increments the current period's spend. Retries
// of the same logical query must not be billed separately, so callers invoke
// this once per success, never per attempt.
func (s *Service) RecordUsage(ctx context.Context, userID, platform string, queryCount int) error {
	if queryCount < 1 {
		return models.NewFailure(models.ErrInvalidConfiguration, "query count must be at least 1, got %d", queryCount)
	}
	unit, ok := s.unitCost[platform]
	if !ok {
		return models.NewFailure(models.ErrInvalidConfiguration, "unknown platform %q", platform)
	}

	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	budget, err := s.CurrentBudget(ctx, userID)
	if err != nil {
		return err
	}

	record := models.APIUsageRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		Platform:       platform,
		QueryCount:     queryCount,
		CostMillicents: int64(queryCount) * unit,
		Timestamp:      s.now(),
		PeriodStart:    budget.PeriodStart,
		PeriodEnd:      budget.PeriodEnd,
	}

	if err := s.budgets.AddSpend(ctx, record); err != nil {
		return fmt.Errorf("failed to record usage for user %s on %s: %w", userID, platform, err)
	}

	logrus.Debugf("Recorded %d millicents usage for user %s on %s", record.CostMillicents, userID, platform)
	return nil
}

// CheckThresholds returns the configured alert thresholds newly crossed by
// the current spend ratio and marks them sent. Each threshold fires at most
// once per billing period.
func (s *Service) CheckThresholds(ctx context.Context, userID string) ([]float64, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	budget, err := s.CurrentBudget(ctx, userID)
	if err != nil {
		return nil, err
	}

	ratio := budget.SpendRatio()
	var crossed []float64
	for _, threshold := range budget.AlertThresholds {
		if ratio >= threshold && !budget.AlertSent(threshold) {
			crossed = append(crossed, threshold)
			budget.AlertsSent = append(budget.AlertsSent, threshold)
		}
	}

	if len(crossed) == 0 {
		return nil, nil
	}

	if err := s.budgets.SaveBudget(ctx, budget); err != nil {
		return nil, fmt.Errorf("failed to persist sent alerts for user %s: %w", userID, err)
	}
	return crossed, nil
}

// MaybeReduceFrequency downgrades the user's monitoring frequency one step
// (daily -> weekly -> monthly) when auto-reduction is enabled and spend has
// reached 90% of the limit. Monthly is terminal.
func (s *Service) MaybeReduceFrequency(ctx context.Context, userID string) (bool, models.Frequency, error) {
	budget, err := s.CurrentBudget(ctx, userID)
	if err != nil {
		return false, "", err
	}

	if !budget.AutoReduceFrequency || budget.SpendRatio() < reduceRatio {
		return false, "", nil
	}

	cfg, err := s.configs.GetConfig(ctx, userID)
	if err != nil {
		return false, "", fmt.Errorf("failed to load config for user %s: %w", userID, err)
	}

	next, ok := cfg.Frequency.Downgrade()
	if !ok {
		return false, cfg.Frequency, nil
	}

	if err := s.configs.SaveFrequency(ctx, userID, next); err != nil {
		return false, "", fmt.Errorf("failed to persist reduced frequency for user %s: %w", userID, err)
	}

	logrus.Infof("Auto-reduced monitoring frequency for user %s: %s -> %s", userID, cfg.Frequency, next)
	return true, next, nil
}

// DetectSpike compares current-period spend to the immediately preceding
// period's total and creates an alert on a 50%+ increase. No previous spend
// means no spike.
func (s *Service) DetectSpike(ctx context.Context, userID string) (*models.CostSpikeAlert, error) {
	budget, err := s.CurrentBudget(ctx, userID)
	if err != nil {
		return nil, err
	}

	previousStart := budget.PeriodStart.AddDate(0, -1, 0)
	previous, err := s.budgets.SumUsage(ctx, userID, previousStart, budget.PeriodStart)
	if err != nil {
		return nil, fmt.Errorf("failed to sum previous period usage for user %s: %w", userID, err)
	}

	if previous <= 0 {
		return nil, nil
	}

	current := budget.CurrentSpendMillicents
	increase := float64(current-previous) / float64(previous)
	if increase < spikeRatio {
		return nil, nil
	}

	alert := &models.CostSpikeAlert{
		ID:                       uuid.NewString(),
		UserID:                   userID,
		CurrentSpendMillicents:   current,
		PreviousPeriodMillicents: previous,
		PercentIncrease:          increase * 100,
		CreatedAt:                s.now(),
	}

	if err := s.budgets.SaveSpikeAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to save spike alert for user %s: %w", userID, err)
	}

	logrus.Warnf("Cost spike for user %s: %d -> %d millicents (%.0f%% increase)",
		userID, previous, current, alert.PercentIncrease)
	return alert, nil
}
