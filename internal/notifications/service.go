package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/config"
	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service sends notifications via a generic webhook and/or SMTP email,
// whichever channels are configured.
type Service struct {
	config *config.Config
	client *resty.Client
}

var _ Notifier = (*Service)(nil)

// webhookMessage is the card-style payload posted to the configured webhook.
type webhookMessage struct {
	Title string        `json:"title"`
	Text  string        `json:"text"`
	Facts []webhookFact `json:"facts,omitempty"`
}

type webhookFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendBudgetAlert notifies a user that a spend threshold was crossed.
func (s *Service) SendBudgetAlert(userID string, threshold float64, budget *models.UserBudget) error {
	title := fmt.Sprintf("Budget alert: %.0f%% of monthly limit reached", threshold*100)
	text := fmt.Sprintf("User %s has spent %s of the %s monthly monitoring budget.",
		userID, formatMoney(budget.CurrentSpendMillicents), formatMoney(budget.MonthlyLimitMillicents))

	return s.deliver(s.config.NotificationEmail, title, text, []webhookFact{
		{Name: "User", Value: userID},
		{Name: "Spend", Value: formatMoney(budget.CurrentSpendMillicents)},
		{Name: "Limit", Value: formatMoney(budget.MonthlyLimitMillicents)},
		{Name: "Period ends", Value: budget.PeriodEnd.Format("Jan 2, 2006")},
	})
}

// SendFrequencyReduction notifies a user that monitoring was auto-throttled.
func (s *Service) SendFrequencyReduction(userID string, newFrequency models.Frequency) error {
	title := "Monitoring frequency reduced"
	text := fmt.Sprintf("Monitoring for user %s was automatically reduced to %s because spend reached 90%% of the monthly budget.",
		userID, newFrequency)

	return s.deliver(s.config.NotificationEmail, title, text, []webhookFact{
		{Name: "User", Value: userID},
		{Name: "New frequency", Value: string(newFrequency)},
	})
}

// SendSpikeAlert notifies administrators about a period-over-period cost
// spike.
func (s *Service) SendSpikeAlert(alert *models.CostSpikeAlert) error {
	title := fmt.Sprintf("Cost spike: +%.0f%% for user %s", alert.PercentIncrease, alert.UserID)
	text := fmt.Sprintf("Spend for user %s rose from %s last period to %s this period.",
		alert.UserID, formatMoney(alert.PreviousPeriodMillicents), formatMoney(alert.CurrentSpendMillicents))

	return s.deliver(s.config.AdminEmail, title, text, []webhookFact{
		{Name: "User", Value: alert.UserID},
		{Name: "Previous period", Value: formatMoney(alert.PreviousPeriodMillicents)},
		{Name: "Current period", Value: formatMoney(alert.CurrentSpendMillicents)},
		{Name: "Increase", Value: fmt.Sprintf("%.0f%%", alert.PercentIncrease)},
	})
}

// SendBatchReport summarizes a completed scheduler invocation.
func (s *Service) SendBatchReport(result *models.BatchResult) error {
	title := "Visibility monitoring batch completed"
	text := fmt.Sprintf("Processed %d users (%d skipped over budget), executed %d queries, found %d mentions in %v.",
		result.UsersProcessed, result.UsersSkippedBudget, result.QueriesExecuted,
		result.MentionsFound, result.Duration.Round(time.Second))

	facts := []webhookFact{
		{Name: "Users processed", Value: fmt.Sprintf("%d", result.UsersProcessed)},
		{Name: "Skipped over budget", Value: fmt.Sprintf("%d", result.UsersSkippedBudget)},
		{Name: "Queries executed", Value: fmt.Sprintf("%d", result.QueriesExecuted)},
		{Name: "Mentions found", Value: fmt.Sprintf("%d", result.MentionsFound)},
		{Name: "Errors", Value: fmt.Sprintf("%d", len(result.Errors))},
	}

	return s.deliver(s.config.AdminEmail, title, text, facts)
}

// deliver fans the message out to every configured channel and joins any
// delivery errors.
func (s *Service) deliver(email, title, text string, facts []webhookFact) error {
	var errors []string

	if s.config.WebhookURL != "" {
		if err := s.sendToWebhook(title, text, facts); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errors = append(errors, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Debugf("Sent webhook notification: %s", title)
		}
	}

	if email != "" && s.config.SMTPHost != "" {
		if err := s.sendEmail(email, title, text, facts); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Debugf("Sent email notification to %s: %s", email, title)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToWebhook(title, text string, facts []webhookFact) error {
	message := &webhookMessage{
		Title: title,
		Text:  text,
		Facts: facts,
	}

	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func (s *Service) sendEmail(to, title, text string, facts []webhookFact) error {
	var body strings.Builder
	body.WriteString(text)
	body.WriteString("\n\n")
	for _, fact := range facts {
		body.WriteString(fmt.Sprintf("%s: %s\n", fact.Name, fact.Value))
	}
	body.WriteString("\n---\nThis notification was generated automatically by the AI Visibility Bot.\n")

	message := gomail.NewMessage()
	message.SetHeader("From", s.config.SMTPUsername)
	message.SetHeader("To", to)
	message.SetHeader("Subject", title)
	message.SetBody("text/plain", body.String())

	dialer := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func formatMoney(millicents int64) string {
	return fmt.Sprintf("$%.2f", float64(millicents)/float64(models.MillicentsPerDollar))
}
