package monitoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/annotation"
	"github.com/bayonhq/ai-visibility-bot/internal/budget"
	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/platforms"
	"github.com/bayonhq/ai-visibility-bot/internal/scoring"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubPlatform answers every query instantly. When err is set every call
// fails with it instead.
type stubPlatform struct {
	name     string
	unitCost int64
	enabled  bool
	response string
	err      error
	asked    int
}

func (p *stubPlatform) Name() string              { return p.name }
func (p *stubPlatform) UnitCostMillicents() int64 { return p.unitCost }
func (p *stubPlatform) IsEnabled() bool           { return p.enabled }

func (p *stubPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	p.asked++
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendBudgetAlert(userID string, threshold float64, budget *models.UserBudget) error {
	args := m.Called(userID, threshold, budget)
	return args.Error(0)
}

func (m *mockNotifier) SendFrequencyReduction(userID string, newFrequency models.Frequency) error {
	args := m.Called(userID, newFrequency)
	return args.Error(0)
}

func (m *mockNotifier) SendSpikeAlert(alert *models.CostSpikeAlert) error {
	args := m.Called(alert)
	return args.Error(0)
}

func (m *mockNotifier) SendBatchReport(result *models.BatchResult) error {
	args := m.Called(result)
	return args.Error(0)
}

func newPermissiveNotifier() *mockNotifier {
	notifier := &mockNotifier{}
	notifier.On("SendBudgetAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendFrequencyReduction", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendSpikeAlert", mock.Anything).Return(nil)
	notifier.On("SendBatchReport", mock.Anything).Return(nil)
	return notifier
}

type fixture struct {
	service  *Service
	memory   *store.Memory
	ledger   *budget.Service
	notifier *mockNotifier
}

func newFixture(t *testing.T, available []platforms.Platform, limitMillicents int64) *fixture {
	t.Helper()

	memory := store.NewMemory()
	ledger := budget.NewService(memory, memory, platforms.UnitCosts(available), budget.Defaults{
		MonthlyLimitMillicents: limitMillicents,
		AlertThresholds:        []float64{0.5, 0.75, 0.9},
	})
	calculator := scoring.NewCalculator(memory)
	notifier := newPermissiveNotifier()

	service := NewService(
		memory,
		ledger,
		platforms.NewExecutor(time.Second),
		available,
		annotation.NewKeywordAnnotator(),
		calculator,
		notifier,
		store.NopArchive{},
		time.Minute,
	)

	return &fixture{service: service, memory: memory, ledger: ledger, notifier: notifier}
}

func monitoredUser(userID string, platformNames ...string) *models.MonitoringConfig {
	return &models.MonitoringConfig{
		UserID:    userID,
		Enabled:   true,
		Frequency: models.FrequencyDaily,
		Platforms: platformNames,
		Agent: models.AgentContext{
			Name:        "Jordan Ellis",
			Location:    "Austin, TX",
			Specialties: []string{"luxury condos"},
			Competitors: []string{"Casey Tran"},
		},
	}
}

func TestRunScheduledMonitoring_HappyPath(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true,
		response: "Jordan Ellis is an excellent, trusted agent in Austin."}
	gemini := &stubPlatform{name: "gemini", unitCost: 50, enabled: true,
		response: "Jordan Ellis handles luxury condos in Austin."}

	f := newFixture(t, []platforms.Platform{chatgpt, gemini}, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt", "gemini")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	// Profile is complete so all four default templates render.
	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 0, result.UsersSkippedBudget)
	assert.Equal(t, 8, result.QueriesExecuted)
	assert.Equal(t, 8, result.MentionsFound)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 4, chatgpt.asked)
	assert.Equal(t, 4, gemini.asked)

	// Every successful query billed exactly once.
	userBudget, err := f.ledger.CurrentBudget(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4*200+4*50), userBudget.CurrentSpendMillicents)

	records, err := f.memory.ListUsage(ctx, "user-1", userBudget.PeriodStart, userBudget.PeriodEnd)
	require.NoError(t, err)
	assert.Len(t, records, 8)

	// A score landed in the time series.
	score, err := f.memory.LatestScore(ctx, "user-1")
	require.NoError(t, err)
	assert.Greater(t, score.Score, 0)
	assert.Equal(t, 8, score.MentionCount)

	// The user is no longer due.
	cfg, err := f.memory.GetConfig(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, cfg.LastExecutedAt)

	f.notifier.AssertNumberOfCalls(t, "SendBatchReport", 1)
}

func TestRunScheduledMonitoring_BudgetExceededSkipsUserEntirely(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}

	// Four queries price at 800 millicents against a 500 millicent limit.
	f := newFixture(t, []platforms.Platform{chatgpt}, 500)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 1, result.UsersSkippedBudget)
	assert.Equal(t, 0, result.QueriesExecuted)
	assert.Equal(t, 0, chatgpt.asked, "no API call may be made over budget")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "exceed")

	// No partial spend.
	userBudget, err := f.ledger.CurrentBudget(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), userBudget.CurrentSpendMillicents)

	// The user stays due for the next cycle.
	cfg, err := f.memory.GetConfig(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cfg.LastExecutedAt)
}

func TestRunScheduledMonitoring_ZeroPlatformsIsConfigError(t *testing.T) {
	f := newFixture(t, nil, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 0, result.QueriesExecuted)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "zero platforms")
}

func TestRunScheduledMonitoring_OnePlatformFailureDoesNotBlockOthers(t *testing.T) {
	healthy := &stubPlatform{name: "gemini", unitCost: 50, enabled: true,
		response: "Jordan Ellis is well reviewed."}
	disabled := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: false}

	f := newFixture(t, []platforms.Platform{healthy, disabled}, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt", "gemini")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, healthy.asked)
	assert.Equal(t, 0, disabled.asked)
	assert.Equal(t, 4, result.MentionsFound)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "chatgpt")

	// Only the healthy platform was billed.
	userBudget, err := f.ledger.CurrentBudget(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4*50), userBudget.CurrentSpendMillicents)
}

func TestRunScheduledMonitoring_HonorsDueSchedule(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	f.service.SetNow(func() time.Time { return now })

	recentRun := now.Add(-2 * time.Hour)
	recent := monitoredUser("user-recent", "chatgpt")
	recent.LastExecutedAt = &recentRun
	require.NoError(t, f.memory.SaveConfig(ctx, recent))

	staleRun := now.Add(-25 * time.Hour)
	stale := monitoredUser("user-stale", "chatgpt")
	stale.LastExecutedAt = &staleRun
	require.NoError(t, f.memory.SaveConfig(ctx, stale))

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-never", "chatgpt")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	// The daily user who ran two hours ago is not due; the 25-hours-ago user
	// and the never-ran user are.
	assert.Equal(t, 2, result.UsersProcessed)
}

func TestRunScheduledMonitoring_MaxUsersCapsBatch(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser(fmt.Sprintf("user-%d", i), "chatgpt")))
	}

	result, err := f.service.RunScheduledMonitoring(ctx, 2, 10, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, result.UsersProcessed)
}

func TestRunScheduledMonitoring_StopsAtSafetyMargin(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt")))

	// A 30s budget against the fixture's 60s safety margin stops before the
	// first user.
	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 0, result.UsersProcessed)
	assert.Equal(t, 0, chatgpt.asked)
	f.notifier.AssertNumberOfCalls(t, "SendBatchReport", 1)
}

func TestRunScheduledMonitoring_NoMentionsIsZeroScore(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true,
		response: "Here are some well known agents in the area, none in particular."}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt")))

	result, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, result.QueriesExecuted)
	assert.Equal(t, 0, result.MentionsFound)
	assert.Empty(t, result.Errors, "zero mentions is an outcome, not an error")

	// Queries were still billed.
	userBudget, err := f.ledger.CurrentBudget(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4*200), userBudget.CurrentSpendMillicents)

	score, err := f.memory.LatestScore(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
	assert.Equal(t, models.TrendStable, score.Trend)
}

func TestRunScheduledMonitoring_ThresholdAlertsFireOnce(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}

	// Four queries at 200 millicents against a 1000 millicent limit land at
	// 80% spend, crossing 0.5 and 0.75.
	f := newFixture(t, []platforms.Platform{chatgpt}, 1_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt")))

	_, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	f.notifier.AssertNumberOfCalls(t, "SendBudgetAlert", 2)
	f.notifier.AssertCalled(t, "SendBudgetAlert", "user-1", 0.5, mock.Anything)
	f.notifier.AssertCalled(t, "SendBudgetAlert", "user-1", 0.75, mock.Anything)
}

func TestRunScheduledMonitoring_AutoReducesFrequencyAtNinetyPercent(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true, response: "Jordan Ellis"}

	// Four queries consume the entire 800 millicent limit.
	f := newFixture(t, []platforms.Platform{chatgpt}, 800)
	ctx := context.Background()

	cfg := monitoredUser("user-1", "chatgpt")
	cfg.AutoReduceFrequency = true
	require.NoError(t, f.memory.SaveConfig(ctx, cfg))

	_, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	f.notifier.AssertCalled(t, "SendFrequencyReduction", "user-1", models.FrequencyWeekly)

	updated, err := f.memory.GetConfig(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyWeekly, updated.Frequency)
}

func TestRunForUser_BypassesDueCheck(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true,
		response: "Jordan Ellis is a trusted name."}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	justRan := time.Now().Add(-time.Minute)
	cfg := monitoredUser("user-1", "chatgpt")
	cfg.LastExecutedAt = &justRan
	require.NoError(t, f.memory.SaveConfig(ctx, cfg))

	result, err := f.service.RunForUser(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.UsersProcessed)
	assert.Equal(t, 4, result.QueriesExecuted)
}

func TestRunForUser_DisabledUserRejected(t *testing.T) {
	f := newFixture(t, nil, 5_000_000)
	ctx := context.Background()

	cfg := monitoredUser("user-1", "chatgpt")
	cfg.Enabled = false
	require.NoError(t, f.memory.SaveConfig(ctx, cfg))

	_, err := f.service.RunForUser(ctx, "user-1")
	require.Error(t, err)

	var failure *models.Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrInvalidConfiguration, failure.Category)
}

func TestRunForUser_UnknownUser(t *testing.T) {
	f := newFixture(t, nil, 5_000_000)

	_, err := f.service.RunForUser(context.Background(), "nobody")
	require.Error(t, err)
}

func TestGetMetrics_ReflectsLastRun(t *testing.T) {
	chatgpt := &stubPlatform{name: "chatgpt", unitCost: 200, enabled: true,
		response: "Jordan Ellis is an excellent agent."}
	f := newFixture(t, []platforms.Platform{chatgpt}, 5_000_000)
	ctx := context.Background()

	require.NoError(t, f.memory.SaveConfig(ctx, monitoredUser("user-1", "chatgpt")))

	_, err := f.service.RunScheduledMonitoring(ctx, 100, 10, time.Hour)
	require.NoError(t, err)

	metrics := f.service.GetMetrics()
	assert.Contains(t, metrics, `"users_processed": 1`)
	assert.Contains(t, metrics, `"queries_executed": 4`)
	assert.Contains(t, metrics, `"chatgpt": 4`)
}
