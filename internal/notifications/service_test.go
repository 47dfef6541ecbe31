package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/config"
	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", formatMoney(0))
	assert.Equal(t, "$0.02", formatMoney(2_000))
	assert.Equal(t, "$40.00", formatMoney(4_000_000))
	assert.Equal(t, "$50.00", formatMoney(5_000_000))
	assert.Equal(t, "$0.00", formatMoney(200), "sub-cent amounts round away in display")
}

func TestSendBudgetAlert_PostsWebhookCard(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{WebhookURL: server.URL})

	budget := &models.UserBudget{
		UserID:                 "user-1",
		MonthlyLimitMillicents: 5_000_000,
		CurrentSpendMillicents: 4_000_000,
		PeriodEnd:              time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, service.SendBudgetAlert("user-1", 0.75, budget))

	assert.Equal(t, "Budget alert: 75% of monthly limit reached", received.Title)
	assert.Contains(t, received.Text, "$40.00")
	assert.Contains(t, received.Text, "$50.00")
	require.Len(t, received.Facts, 4)
	assert.Equal(t, "Spend", received.Facts[1].Name)
	assert.Equal(t, "$40.00", received.Facts[1].Value)
}

func TestSendSpikeAlert_PostsWebhookCard(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	service := NewService(&config.Config{WebhookURL: server.URL})

	require.NoError(t, service.SendSpikeAlert(&models.CostSpikeAlert{
		UserID:                   "user-1",
		CurrentSpendMillicents:   3_500_000,
		PreviousPeriodMillicents: 2_000_000,
		PercentIncrease:          75,
	}))

	assert.Equal(t, "Cost spike: +75% for user user-1", received.Title)
	assert.Contains(t, received.Text, "$20.00")
	assert.Contains(t, received.Text, "$35.00")
}

func TestSendBatchReport_WebhookFailureReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	service := NewService(&config.Config{WebhookURL: server.URL})

	err := service.SendBatchReport(&models.BatchResult{UsersProcessed: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook")
}

func TestDeliver_NoChannelsConfiguredIsNoop(t *testing.T) {
	service := NewService(&config.Config{})

	assert.NoError(t, service.SendFrequencyReduction("user-1", models.FrequencyWeekly))
}
