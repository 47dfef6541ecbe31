package models

import (
	"time"
)

// Money amounts are carried as integer millicents (1/1000 of a cent) so that
// fractional per-query platform costs stay exact. $1.00 == 100000 millicents.
const (
	MillicentsPerCent   int64 = 1_000
	MillicentsPerDollar int64 = 100_000
)

// Frequency controls how often a user's monitoring run is due.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Interval returns the minimum gap between two runs at this frequency.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Downgrade returns the next less-frequent setting. Monthly is terminal.
func (f Frequency) Downgrade() (Frequency, bool) {
	switch f {
	case FrequencyDaily:
		return FrequencyWeekly, true
	case FrequencyWeekly:
		return FrequencyMonthly, true
	default:
		return f, false
	}
}

// IsValid reports whether f is one of the three supported settings.
func (f Frequency) IsValid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// AgentContext identifies the professional being monitored. Missing fields
// are substituted with generic fallbacks when queries are built.
type AgentContext struct {
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	Specialties []string `json:"specialties"`
	Competitors []string `json:"competitors"`
}

// MonitoringConfig holds one user's monitoring settings.
type MonitoringConfig struct {
	UserID                string       `json:"user_id"`
	Enabled               bool         `json:"enabled"`
	Frequency             Frequency    `json:"frequency"`
	Platforms             []string     `json:"platforms"`
	QueryTemplates        []string     `json:"query_templates"`
	AlertThresholdPercent int          `json:"alert_threshold_percent"` // 5..50
	AutoReduceFrequency   bool         `json:"auto_reduce_frequency"`
	Agent                 AgentContext `json:"agent"`
	LastExecutedAt        *time.Time   `json:"last_executed_at,omitempty"`
}

// UserBudget tracks one user's spend against a rolling monthly limit.
type UserBudget struct {
	UserID                 string    `json:"user_id"`
	MonthlyLimitMillicents int64     `json:"monthly_limit_millicents"`
	CurrentSpendMillicents int64     `json:"current_spend_millicents"`
	PeriodStart            time.Time `json:"period_start"`
	PeriodEnd              time.Time `json:"period_end"`
	AlertThresholds        []float64 `json:"alert_thresholds"` // ascending fractions, e.g. 0.5, 0.75, 0.9
	AlertsSent             []float64 `json:"alerts_sent"`
	AutoReduceFrequency    bool      `json:"auto_reduce_frequency"`
}

// SpendRatio returns current spend as a fraction of the monthly limit.
func (b *UserBudget) SpendRatio() float64 {
	if b.MonthlyLimitMillicents <= 0 {
		return 0
	}
	return float64(b.CurrentSpendMillicents) / float64(b.MonthlyLimitMillicents)
}

// AlertSent reports whether the given threshold already fired this period.
func (b *UserBudget) AlertSent(threshold float64) bool {
	for _, t := range b.AlertsSent {
		if t == threshold {
			return true
		}
	}
	return false
}

// APIUsageRecord is an append-only record of one billed platform call.
type APIUsageRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Platform       string    `json:"platform"`
	QueryCount     int       `json:"query_count"`
	CostMillicents int64     `json:"cost_millicents"`
	Timestamp      time.Time `json:"timestamp"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}

// CostEstimate is the Cost Ledger's answer to "can we afford this run".
type CostEstimate struct {
	TotalMillicents      int64            `json:"total_millicents"`
	PerPlatformBreakdown map[string]int64 `json:"per_platform_breakdown"`
	WithinBudget         bool             `json:"within_budget"`
}

// Sentiment labels produced by the annotation collaborator.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Prominence describes how prominently the agent appeared in a response.
type Prominence string

const (
	ProminenceHigh   Prominence = "high"
	ProminenceMedium Prominence = "medium"
	ProminenceLow    Prominence = "low"
)

// Annotation is the validated output of the annotation collaborator.
type Annotation struct {
	Sentiment  Sentiment  `json:"sentiment"`
	Prominence Prominence `json:"prominence"`
	Topics     []string   `json:"topics"`
}

// AIMention is one recorded instance of the agent surfacing in a platform
// response.
type AIMention struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Platform    string     `json:"platform"`
	QueryText   string     `json:"query_text"`
	RawResponse string     `json:"raw_response"`
	Sentiment   Sentiment  `json:"sentiment"`
	Prominence  Prominence `json:"prominence"`
	Topics      []string   `json:"topics"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Trend direction of a visibility score relative to the previous one.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// ScoreBreakdown holds the four clamped score components.
type ScoreBreakdown struct {
	MentionFrequency  int `json:"mention_frequency"`  // 0..25
	Sentiment         int `json:"sentiment"`          // 0..35
	Prominence        int `json:"prominence"`         // 0..25
	PlatformDiversity int `json:"platform_diversity"` // 0..15
}

// Total returns the sum of the four components.
func (b ScoreBreakdown) Total() int {
	return b.MentionFrequency + b.Sentiment + b.Prominence + b.PlatformDiversity
}

// VisibilityScore is one entry in a user's append-only score time series.
// The breakdown components always sum to Score.
type VisibilityScore struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Score           int            `json:"score"` // 0..100
	Breakdown       ScoreBreakdown `json:"breakdown"`
	MentionCount    int            `json:"mention_count"`
	Trend           Trend          `json:"trend"`
	TrendPercentage float64        `json:"trend_percentage"`
	CalculatedAt    time.Time      `json:"calculated_at"`
}

// CostSpikeAlert flags a period-over-period spend increase of 50% or more.
type CostSpikeAlert struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"user_id"`
	CurrentSpendMillicents   int64     `json:"current_spend_millicents"`
	PreviousPeriodMillicents int64     `json:"previous_period_millicents"`
	PercentIncrease          float64   `json:"percent_increase"`
	Acknowledged             bool      `json:"acknowledged"`
	CreatedAt                time.Time `json:"created_at"`
}

// BatchResult summarizes one scheduler invocation.
type BatchResult struct {
	UsersProcessed     int           `json:"users_processed"`
	UsersSkippedBudget int           `json:"users_skipped_budget"`
	QueriesExecuted    int           `json:"queries_executed"`
	MentionsFound      int           `json:"mentions_found"`
	Errors             []string      `json:"errors"`
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration"`
}
