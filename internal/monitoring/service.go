package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/annotation"
	"github.com/bayonhq/ai-visibility-bot/internal/budget"
	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/notifications"
	"github.com/bayonhq/ai-visibility-bot/internal/platforms"
	"github.com/bayonhq/ai-visibility-bot/internal/scoring"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Service orchestrates one monitoring invocation across all due users: budget
// gate, concurrent platform fan-out, usage recording, scoring, alerts and
// throttling.
type Service struct {
	configs      store.ConfigStore
	ledger       *budget.Service
	executor     *platforms.Executor
	platforms    map[string]platforms.Platform
	annotator    annotation.Annotator
	calculator   *scoring.Calculator
	notifier     notifications.Notifier
	archive      store.Archive
	safetyMargin time.Duration
	now          func() time.Time

	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds monitoring metrics for the last completed run.
type Metrics struct {
	LastRun            time.Time      `json:"last_run"`
	LastRunDuration    string         `json:"last_run_duration"`
	UsersProcessed     int            `json:"users_processed"`
	UsersSkippedBudget int            `json:"users_skipped_budget"`
	QueriesExecuted    int            `json:"queries_executed"`
	MentionsFound      int            `json:"mentions_found"`
	ErrorCount         int            `json:"error_count"`
	PlatformMentions   map[string]int `json:"platform_mentions"`
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`
}

// NewService creates a new monitoring service.
func NewService(
	configs store.ConfigStore,
	ledger *budget.Service,
	executor *platforms.Executor,
	available []platforms.Platform,
	annotator annotation.Annotator,
	calculator *scoring.Calculator,
	notifier notifications.Notifier,
	archive store.Archive,
	safetyMargin time.Duration,
) *Service {
	return &Service{
		configs:      configs,
		ledger:       ledger,
		executor:     executor,
		platforms:    platforms.ByName(available),
		annotator:    annotator,
		calculator:   calculator,
		notifier:     notifier,
		archive:      archive,
		safetyMargin: safetyMargin,
		now:          time.Now,
		metrics: &Metrics{
			PlatformMentions:   make(map[string]int),
			SentimentBreakdown: make(map[string]int),
		},
	}
}

// SetNow overrides the clock. Intended for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// userOutcome aggregates one user's turn for the batch summary.
type userOutcome struct {
	queriesExecuted int
	mentions        []models.AIMention
	skippedBudget   bool
	failures        []*models.Failure
}

// RunScheduledMonitoring processes every due user within the time budget.
// Users not reached before the safety margin stay due for the next run.
func (s *Service) RunScheduledMonitoring(ctx context.Context, maxUsers, batchSize int, maxDuration time.Duration) (*models.BatchResult, error) {
	start := s.now()
	deadline := start.Add(maxDuration)
	result := &models.BatchResult{StartedAt: start}

	logrus.Infof("Starting monitoring run (max %d users, batch size %d, budget %v)", maxUsers, batchSize, maxDuration)

	configs, err := s.configs.ListEnabledConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled configs: %w", err)
	}

	due := s.selectDueUsers(configs, maxUsers)
	logrus.Infof("%d of %d enabled users are due", len(due), len(configs))

	for i, cfg := range due {
		if remaining := deadline.Sub(s.now()); remaining < s.safetyMargin {
			logrus.Warnf("Stopping batch with %d users left: remaining time %v below safety margin %v",
				len(due)-i, remaining.Round(time.Second), s.safetyMargin)
			break
		}

		outcome := s.processUserIsolated(ctx, cfg)

		result.UsersProcessed++
		result.QueriesExecuted += outcome.queriesExecuted
		result.MentionsFound += len(outcome.mentions)
		if outcome.skippedBudget {
			result.UsersSkippedBudget++
		}
		for _, failure := range outcome.failures {
			result.Errors = append(result.Errors, fmt.Sprintf("user %s: %s", cfg.UserID, failure.Error()))
		}

		if batchSize > 0 && (i+1)%batchSize == 0 {
			logrus.Infof("Batch progress: %d/%d users processed", i+1, len(due))
		}
	}

	result.Duration = s.now().Sub(start)
	s.updateMetrics(result)

	if err := s.notifier.SendBatchReport(result); err != nil {
		logrus.Errorf("Failed to send batch report: %v", err)
	}

	logrus.Infof("Monitoring run completed in %v: %d users, %d queries, %d mentions, %d errors",
		result.Duration.Round(time.Second), result.UsersProcessed, result.QueriesExecuted,
		result.MentionsFound, len(result.Errors))
	return result, nil
}

// RunForUser performs an on-demand run for a single user, bypassing the due
// check but still enforcing the budget.
func (s *Service) RunForUser(ctx context.Context, userID string) (*models.BatchResult, error) {
	start := s.now()

	cfg, err := s.configs.GetConfig(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for user %s: %w", userID, err)
	}
	if !cfg.Enabled {
		return nil, models.NewFailure(models.ErrInvalidConfiguration, "monitoring is disabled for user %s", userID)
	}

	outcome := s.processUserIsolated(ctx, *cfg)

	result := &models.BatchResult{
		UsersProcessed:  1,
		QueriesExecuted: outcome.queriesExecuted,
		MentionsFound:   len(outcome.mentions),
		StartedAt:       start,
		Duration:        s.now().Sub(start),
	}
	if outcome.skippedBudget {
		result.UsersSkippedBudget = 1
	}
	for _, failure := range outcome.failures {
		result.Errors = append(result.Errors, fmt.Sprintf("user %s: %s", userID, failure.Error()))
	}
	return result, nil
}

func (s *Service) selectDueUsers(configs []models.MonitoringConfig, maxUsers int) []models.MonitoringConfig {
	now := s.now()
	var due []models.MonitoringConfig
	for _, cfg := range configs {
		if !isDue(cfg, now) {
			continue
		}
		due = append(due, cfg)
		if maxUsers > 0 && len(due) >= maxUsers {
			break
		}
	}
	return due
}

// isDue reports whether enough time has passed since the user's last run.
// A user who never ran is always due.
func isDue(cfg models.MonitoringConfig, now time.Time) bool {
	if cfg.LastExecutedAt == nil {
		return true
	}
	return now.Sub(*cfg.LastExecutedAt) >= cfg.Frequency.Interval()
}

// processUserIsolated shields the batch from any panic raised while
// processing one user.
func (s *Service) processUserIsolated(ctx context.Context, cfg models.MonitoringConfig) (outcome userOutcome) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Panic while processing user %s: %v", cfg.UserID, r)
			outcome.failures = append(outcome.failures,
				models.NewFailure(models.ErrUnknown, "unexpected error processing user %s: %v", cfg.UserID, r))
		}
	}()
	return s.processUser(ctx, cfg)
}

func (s *Service) processUser(ctx context.Context, cfg models.MonitoringConfig) userOutcome {
	var outcome userOutcome

	if len(cfg.Platforms) == 0 {
		failure := models.NewFailure(models.ErrInvalidConfiguration, "user %s is enabled with zero platforms", cfg.UserID)
		logrus.Errorf("%s (%s)", failure.Message, failure.RemedialAction())
		outcome.failures = append(outcome.failures, failure)
		return outcome
	}

	templates := cfg.QueryTemplates
	if len(templates) == 0 {
		templates = platforms.DefaultQueryTemplates
	}
	queries := platforms.BuildQueries(templates, cfg.Agent)
	if len(queries) == 0 {
		failure := models.NewFailure(models.ErrMissingAgentData, "no usable queries for user %s", cfg.UserID)
		logrus.Warnf("%s (%s)", failure.Message, failure.RemedialAction())
		outcome.failures = append(outcome.failures, failure)
		return outcome
	}

	// Budget gate: an over-budget user is skipped entirely, no partial spend
	// is ever risked.
	estimate, err := s.ledger.EstimateCost(ctx, cfg.UserID, cfg.Platforms, len(queries))
	if err != nil {
		outcome.failures = append(outcome.failures,
			models.NewFailure(models.ErrUnknown, "cost estimate failed for user %s: %v", cfg.UserID, err))
		return outcome
	}
	if !estimate.WithinBudget {
		failure := models.NewFailure(models.ErrBudgetExceeded,
			"estimated cost %d millicents would exceed the monthly budget for user %s", estimate.TotalMillicents, cfg.UserID)
		logrus.Warnf("%s (%s)", failure.Message, failure.RemedialAction())
		outcome.skippedBudget = true
		outcome.failures = append(outcome.failures, failure)
		return outcome
	}

	successes, failures := s.fanOut(ctx, cfg, queries)
	outcome.failures = append(outcome.failures, failures...)
	outcome.queriesExecuted = len(successes) + len(failures)

	// One usage record per successful logical query, never per retry attempt.
	for _, success := range successes {
		if err := s.ledger.RecordUsage(ctx, cfg.UserID, success.platform, 1); err != nil {
			logrus.Errorf("Failed to record usage for user %s on %s: %v", cfg.UserID, success.platform, err)
			outcome.failures = append(outcome.failures,
				models.NewFailure(models.ErrUnknown, "usage recording failed on %s: %v", success.platform, err))
		}
	}

	outcome.mentions = s.annotateMentions(ctx, cfg, successes)
	s.recordMentionMetrics(outcome.mentions)
	s.archiveRun(cfg.UserID, outcome.mentions)

	expectedQueries := len(queries) * len(cfg.Platforms)
	score := s.calculator.Score(ctx, cfg.UserID, outcome.mentions, expectedQueries, len(cfg.Platforms))
	logrus.Infof("User %s visibility score: %d (%d mentions, trend %s %.1f%%)",
		cfg.UserID, score.Score, score.MentionCount, score.Trend, score.TrendPercentage)

	s.checkAlerts(ctx, cfg.UserID)

	if err := s.configs.SaveLastExecuted(ctx, cfg.UserID, s.now()); err != nil {
		logrus.Errorf("Failed to update last-executed time for user %s: %v", cfg.UserID, err)
	}

	return outcome
}

// queryResult is one successful platform response.
type queryResult struct {
	platform  string
	queryText string
	response  string
}

// fanOut issues every query concurrently per platform, one goroutine per
// configured platform. Results and failures are merged only after all calls
// settle; one platform's failure never blocks another's result.
func (s *Service) fanOut(ctx context.Context, cfg models.MonitoringConfig, queries []string) ([]queryResult, []*models.Failure) {
	var wg sync.WaitGroup
	resultsChan := make(chan queryResult, len(cfg.Platforms)*len(queries))
	failuresChan := make(chan *models.Failure, len(cfg.Platforms)*len(queries))

	for _, name := range cfg.Platforms {
		platform, ok := s.platforms[name]
		if !ok || !platform.IsEnabled() {
			logrus.Warnf("Platform %s is not available, skipping for user %s", name, cfg.UserID)
			failuresChan <- models.NewFailure(models.ErrPlatformUnavailable, "platform %s is not configured", name)
			continue
		}

		wg.Add(1)
		go func(p platforms.Platform) {
			defer wg.Done()

			for _, queryText := range queries {
				response, failure := s.executor.Query(ctx, p, queryText)
				if failure != nil {
					failuresChan <- failure
					continue
				}
				resultsChan <- queryResult{platform: p.Name(), queryText: queryText, response: response}
			}
		}(platform)
	}

	wg.Wait()
	close(resultsChan)
	close(failuresChan)

	var successes []queryResult
	for result := range resultsChan {
		successes = append(successes, result)
	}
	var failures []*models.Failure
	for failure := range failuresChan {
		failures = append(failures, failure)
	}
	return successes, failures
}

// annotateMentions filters responses that actually reference the agent and
// labels them via the annotation collaborator. Invalid or failed annotations
// degrade to the neutral fallback, never to an error.
func (s *Service) annotateMentions(ctx context.Context, cfg models.MonitoringConfig, successes []queryResult) []models.AIMention {
	var mentions []models.AIMention

	for _, success := range successes {
		if cfg.Agent.Name == "" || !strings.Contains(strings.ToLower(success.response), strings.ToLower(cfg.Agent.Name)) {
			continue
		}

		labels, err := s.annotator.Annotate(ctx, cfg.Agent.Name, success.response)
		if err != nil {
			logrus.Warnf("Annotation failed for user %s on %s, using fallback labels: %v",
				cfg.UserID, success.platform, err)
			labels = annotation.Fallback()
		}
		labels = annotation.Validate(labels)

		mentions = append(mentions, models.AIMention{
			ID:          uuid.NewString(),
			UserID:      cfg.UserID,
			Platform:    success.platform,
			QueryText:   success.queryText,
			RawResponse: success.response,
			Sentiment:   labels.Sentiment,
			Prominence:  labels.Prominence,
			Topics:      labels.Topics,
			Timestamp:   s.now(),
		})
	}

	return mentions
}

func (s *Service) archiveRun(userID string, mentions []models.AIMention) {
	if len(mentions) == 0 {
		return
	}

	data, err := json.Marshal(mentions)
	if err != nil {
		logrus.Errorf("Failed to marshal mentions for user %s: %v", userID, err)
		return
	}

	filename := fmt.Sprintf("mentions-%s-%s.json", userID, s.now().Format("2006-01-02-15-04-05"))
	if err := s.archive.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive mentions for user %s: %v", userID, err)
	}
}

// checkAlerts runs the post-execution ledger checks: threshold alerts,
// auto-throttling and spike detection. Notification failures are logged,
// never fatal.
func (s *Service) checkAlerts(ctx context.Context, userID string) {
	crossed, err := s.ledger.CheckThresholds(ctx, userID)
	if err != nil {
		logrus.Errorf("Threshold check failed for user %s: %v", userID, err)
	}
	if len(crossed) > 0 {
		userBudget, err := s.ledger.CurrentBudget(ctx, userID)
		if err != nil {
			logrus.Errorf("Failed to load budget for alert for user %s: %v", userID, err)
		} else {
			for _, threshold := range crossed {
				if err := s.notifier.SendBudgetAlert(userID, threshold, userBudget); err != nil {
					logrus.Errorf("Failed to send budget alert for user %s: %v", userID, err)
				}
			}
		}
	}

	reduced, newFrequency, err := s.ledger.MaybeReduceFrequency(ctx, userID)
	if err != nil {
		logrus.Errorf("Frequency reduction check failed for user %s: %v", userID, err)
	}
	if reduced {
		if err := s.notifier.SendFrequencyReduction(userID, newFrequency); err != nil {
			logrus.Errorf("Failed to send frequency reduction notice for user %s: %v", userID, err)
		}
	}

	spike, err := s.ledger.DetectSpike(ctx, userID)
	if err != nil {
		logrus.Errorf("Spike detection failed for user %s: %v", userID, err)
	}
	if spike != nil {
		if err := s.notifier.SendSpikeAlert(spike); err != nil {
			logrus.Errorf("Failed to send spike alert for user %s: %v", userID, err)
		}
	}
}

func (s *Service) updateMetrics(result *models.BatchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = result.Duration.String()
	s.metrics.UsersProcessed = result.UsersProcessed
	s.metrics.UsersSkippedBudget = result.UsersSkippedBudget
	s.metrics.QueriesExecuted = result.QueriesExecuted
	s.metrics.MentionsFound = result.MentionsFound
	s.metrics.ErrorCount = len(result.Errors)
}

// recordMentionMetrics folds per-mention counters into the metrics snapshot.
func (s *Service) recordMentionMetrics(mentions []models.AIMention) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mention := range mentions {
		s.metrics.PlatformMentions[mention.Platform]++
		s.metrics.SentimentBreakdown[string(mention.Sentiment)]++
	}
}

// GetMetrics returns current metrics as JSON.
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
