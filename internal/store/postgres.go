package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres stores configs, budgets, usage records, scores and spike alerts in
// a Postgres database.
type Postgres struct {
	db *sql.DB
}

var (
	_ ConfigStore = (*Postgres)(nil)
	_ BudgetStore = (*Postgres)(nil)
	_ ScoreStore  = (*Postgres)(nil)
)

// NewPostgres opens a connection and creates the schema if needed.
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.init(); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS monitoring_configs (
            user_id TEXT PRIMARY KEY,
            enabled BOOLEAN NOT NULL,
            frequency TEXT NOT NULL,
            platforms JSONB NOT NULL,
            query_templates JSONB NOT NULL,
            alert_threshold_percent INTEGER NOT NULL,
            auto_reduce_frequency BOOLEAN NOT NULL,
            agent JSONB NOT NULL,
            last_executed_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS user_budgets (
            user_id TEXT PRIMARY KEY,
            monthly_limit_millicents BIGINT NOT NULL,
            current_spend_millicents BIGINT NOT NULL,
            period_start TIMESTAMPTZ NOT NULL,
            period_end TIMESTAMPTZ NOT NULL,
            alert_thresholds JSONB NOT NULL,
            alerts_sent JSONB NOT NULL,
            auto_reduce_frequency BOOLEAN NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS api_usage_records (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            platform TEXT NOT NULL,
            query_count INTEGER NOT NULL,
            cost_millicents BIGINT NOT NULL,
            ts TIMESTAMPTZ NOT NULL,
            period_start TIMESTAMPTZ NOT NULL,
            period_end TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_usage_user_ts ON api_usage_records (user_id, ts)`,
		`CREATE TABLE IF NOT EXISTS visibility_scores (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            score INTEGER NOT NULL,
            breakdown JSONB NOT NULL,
            mention_count INTEGER NOT NULL,
            trend TEXT NOT NULL,
            trend_percentage DOUBLE PRECISION NOT NULL,
            calculated_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_at ON visibility_scores (user_id, calculated_at)`,
		`CREATE TABLE IF NOT EXISTS cost_spike_alerts (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            current_spend_millicents BIGINT NOT NULL,
            previous_period_millicents BIGINT NOT NULL,
            percent_increase DOUBLE PRECISION NOT NULL,
            acknowledged BOOLEAN NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) GetConfig(ctx context.Context, userID string) (*models.MonitoringConfig, error) {
	row := p.db.QueryRowContext(ctx, `SELECT user_id, enabled, frequency, platforms, query_templates,
        alert_threshold_percent, auto_reduce_frequency, agent, last_executed_at
        FROM monitoring_configs WHERE user_id=$1`, userID)
	return scanConfig(row)
}

func (p *Postgres) ListEnabledConfigs(ctx context.Context) ([]models.MonitoringConfig, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT user_id, enabled, frequency, platforms, query_templates,
        alert_threshold_percent, auto_reduce_frequency, agent, last_executed_at
        FROM monitoring_configs WHERE enabled ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.MonitoringConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (*models.MonitoringConfig, error) {
	var cfg models.MonitoringConfig
	var platforms, templates, agent []byte
	var lastExecuted sql.NullTime

	err := row.Scan(&cfg.UserID, &cfg.Enabled, &cfg.Frequency, &platforms, &templates,
		&cfg.AlertThresholdPercent, &cfg.AutoReduceFrequency, &agent, &lastExecuted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(platforms, &cfg.Platforms); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}
	if err := json.Unmarshal(templates, &cfg.QueryTemplates); err != nil {
		return nil, fmt.Errorf("failed to decode query templates: %w", err)
	}
	if err := json.Unmarshal(agent, &cfg.Agent); err != nil {
		return nil, fmt.Errorf("failed to decode agent context: %w", err)
	}
	if lastExecuted.Valid {
		t := lastExecuted.Time
		cfg.LastExecutedAt = &t
	}
	return &cfg, nil
}

func (p *Postgres) SaveConfig(ctx context.Context, cfg *models.MonitoringConfig) error {
	platforms, err := json.Marshal(cfg.Platforms)
	if err != nil {
		return err
	}
	templates, err := json.Marshal(cfg.QueryTemplates)
	if err != nil {
		return err
	}
	agent, err := json.Marshal(cfg.Agent)
	if err != nil {
		return err
	}

	var lastExecuted interface{}
	if cfg.LastExecutedAt != nil {
		lastExecuted = *cfg.LastExecutedAt
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO monitoring_configs (user_id, enabled, frequency, platforms, query_templates,
            alert_threshold_percent, auto_reduce_frequency, agent, last_executed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (user_id) DO UPDATE SET
            enabled=EXCLUDED.enabled,
            frequency=EXCLUDED.frequency,
            platforms=EXCLUDED.platforms,
            query_templates=EXCLUDED.query_templates,
            alert_threshold_percent=EXCLUDED.alert_threshold_percent,
            auto_reduce_frequency=EXCLUDED.auto_reduce_frequency,
            agent=EXCLUDED.agent,
            last_executed_at=EXCLUDED.last_executed_at
    `, cfg.UserID, cfg.Enabled, cfg.Frequency, string(platforms), string(templates),
		cfg.AlertThresholdPercent, cfg.AutoReduceFrequency, string(agent), lastExecuted)
	return err
}

func (p *Postgres) SaveFrequency(ctx context.Context, userID string, frequency models.Frequency) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE monitoring_configs SET frequency=$2 WHERE user_id=$1`, userID, frequency)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *Postgres) SaveLastExecuted(ctx context.Context, userID string, at time.Time) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE monitoring_configs SET last_executed_at=$2 WHERE user_id=$1`, userID, at)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *Postgres) GetBudget(ctx context.Context, userID string) (*models.UserBudget, error) {
	row := p.db.QueryRowContext(ctx, `SELECT user_id, monthly_limit_millicents, current_spend_millicents,
        period_start, period_end, alert_thresholds, alerts_sent, auto_reduce_frequency
        FROM user_budgets WHERE user_id=$1`, userID)

	var budget models.UserBudget
	var thresholds, sent []byte
	err := row.Scan(&budget.UserID, &budget.MonthlyLimitMillicents, &budget.CurrentSpendMillicents,
		&budget.PeriodStart, &budget.PeriodEnd, &thresholds, &sent, &budget.AutoReduceFrequency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(thresholds, &budget.AlertThresholds); err != nil {
		return nil, fmt.Errorf("failed to decode alert thresholds: %w", err)
	}
	if err := json.Unmarshal(sent, &budget.AlertsSent); err != nil {
		return nil, fmt.Errorf("failed to decode sent alerts: %w", err)
	}
	return &budget, nil
}

func (p *Postgres) SaveBudget(ctx context.Context, budget *models.UserBudget) error {
	thresholds, err := json.Marshal(budget.AlertThresholds)
	if err != nil {
		return err
	}
	sent, err := json.Marshal(budget.AlertsSent)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO user_budgets (user_id, monthly_limit_millicents, current_spend_millicents,
            period_start, period_end, alert_thresholds, alerts_sent, auto_reduce_frequency)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (user_id) DO UPDATE SET
            monthly_limit_millicents=EXCLUDED.monthly_limit_millicents,
            current_spend_millicents=EXCLUDED.current_spend_millicents,
            period_start=EXCLUDED.period_start,
            period_end=EXCLUDED.period_end,
            alert_thresholds=EXCLUDED.alert_thresholds,
            alerts_sent=EXCLUDED.alerts_sent,
            auto_reduce_frequency=EXCLUDED.auto_reduce_frequency
    `, budget.UserID, budget.MonthlyLimitMillicents, budget.CurrentSpendMillicents,
		budget.PeriodStart, budget.PeriodEnd, string(thresholds), string(sent), budget.AutoReduceFrequency)
	return err
}

// AddSpend appends the usage record and increments the budget's spend in one
// transaction. The increment is performed in SQL so overlapping invocations
// cannot lose updates.
func (p *Postgres) AddSpend(ctx context.Context, record models.APIUsageRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO api_usage_records (id, user_id, platform, query_count, cost_millicents, ts, period_start, period_end)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, record.ID, record.UserID, record.Platform, record.QueryCount, record.CostMillicents,
		record.Timestamp, record.PeriodStart, record.PeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to append usage record: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
        UPDATE user_budgets SET current_spend_millicents = current_spend_millicents + $2
        WHERE user_id = $1
    `, record.UserID, record.CostMillicents)
	if err != nil {
		return fmt.Errorf("failed to increment spend: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	return tx.Commit()
}

func (p *Postgres) SumUsage(ctx context.Context, userID string, from, to time.Time) (int64, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT COALESCE(SUM(cost_millicents), 0) FROM api_usage_records
        WHERE user_id=$1 AND ts >= $2 AND ts < $3
    `, userID, from, to)

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (p *Postgres) ListUsage(ctx context.Context, userID string, from, to time.Time) ([]models.APIUsageRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, user_id, platform, query_count, cost_millicents, ts, period_start, period_end
        FROM api_usage_records WHERE user_id=$1 AND ts >= $2 AND ts < $3 ORDER BY ts
    `, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.APIUsageRecord
	for rows.Next() {
		var record models.APIUsageRecord
		if err := rows.Scan(&record.ID, &record.UserID, &record.Platform, &record.QueryCount,
			&record.CostMillicents, &record.Timestamp, &record.PeriodStart, &record.PeriodEnd); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (p *Postgres) SaveSpikeAlert(ctx context.Context, alert *models.CostSpikeAlert) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO cost_spike_alerts (id, user_id, current_spend_millicents, previous_period_millicents,
            percent_increase, acknowledged, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `, alert.ID, alert.UserID, alert.CurrentSpendMillicents, alert.PreviousPeriodMillicents,
		alert.PercentIncrease, alert.Acknowledged, alert.CreatedAt)
	return err
}

func (p *Postgres) ListSpikeAlerts(ctx context.Context, includeAcknowledged bool) ([]models.CostSpikeAlert, error) {
	query := `SELECT id, user_id, current_spend_millicents, previous_period_millicents,
        percent_increase, acknowledged, created_at FROM cost_spike_alerts`
	if !includeAcknowledged {
		query += ` WHERE NOT acknowledged`
	}
	query += ` ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.CostSpikeAlert
	for rows.Next() {
		var alert models.CostSpikeAlert
		if err := rows.Scan(&alert.ID, &alert.UserID, &alert.CurrentSpendMillicents,
			&alert.PreviousPeriodMillicents, &alert.PercentIncrease, &alert.Acknowledged,
			&alert.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}

func (p *Postgres) AcknowledgeSpikeAlert(ctx context.Context, alertID string) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE cost_spike_alerts SET acknowledged=true WHERE id=$1`, alertID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (p *Postgres) LatestScore(ctx context.Context, userID string) (*models.VisibilityScore, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT id, user_id, score, breakdown, mention_count, trend, trend_percentage, calculated_at
        FROM visibility_scores WHERE user_id=$1 ORDER BY calculated_at DESC LIMIT 1
    `, userID)
	return scanScore(row)
}

func scanScore(row rowScanner) (*models.VisibilityScore, error) {
	var score models.VisibilityScore
	var breakdown []byte
	err := row.Scan(&score.ID, &score.UserID, &score.Score, &breakdown, &score.MentionCount,
		&score.Trend, &score.TrendPercentage, &score.CalculatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &score.Breakdown); err != nil {
		return nil, fmt.Errorf("failed to decode score breakdown: %w", err)
	}
	return &score, nil
}

func (p *Postgres) AppendScore(ctx context.Context, score *models.VisibilityScore) error {
	breakdown, err := json.Marshal(score.Breakdown)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO visibility_scores (id, user_id, score, breakdown, mention_count, trend, trend_percentage, calculated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, score.ID, score.UserID, score.Score, string(breakdown), score.MentionCount,
		score.Trend, score.TrendPercentage, score.CalculatedAt)
	return err
}

func (p *Postgres) ListScores(ctx context.Context, userID string, limit int) ([]models.VisibilityScore, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT id, user_id, score, breakdown, mention_count, trend, trend_percentage, calculated_at
        FROM visibility_scores WHERE user_id=$1 ORDER BY calculated_at DESC LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.VisibilityScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *score)
	}
	return result, rows.Err()
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
