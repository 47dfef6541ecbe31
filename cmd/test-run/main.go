package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/annotation"
	"github.com/bayonhq/ai-visibility-bot/internal/budget"
	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/bayonhq/ai-visibility-bot/internal/monitoring"
	"github.com/bayonhq/ai-visibility-bot/internal/platforms"
	"github.com/bayonhq/ai-visibility-bot/internal/scoring"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
)

// End-to-end dry run of the scheduler against an in-memory store and a
// canned platform. No network access, API keys or database needed.

// cannedPlatform answers every query with a fixed response.
type cannedPlatform struct {
	name     string
	unitCost int64
	response string
}

func (p *cannedPlatform) Name() string              { return p.name }
func (p *cannedPlatform) UnitCostMillicents() int64 { return p.unitCost }
func (p *cannedPlatform) IsEnabled() bool           { return true }

func (p *cannedPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	return p.response, nil
}

// terminalNotifier prints notifications instead of delivering them.
type terminalNotifier struct{}

func (terminalNotifier) SendBudgetAlert(userID string, threshold float64, b *models.UserBudget) error {
	fmt.Printf("🔔 Budget alert for %s: %.0f%% threshold crossed\n", userID, threshold*100)
	return nil
}

func (terminalNotifier) SendFrequencyReduction(userID string, newFrequency models.Frequency) error {
	fmt.Printf("🔔 Frequency for %s reduced to %s\n", userID, newFrequency)
	return nil
}

func (terminalNotifier) SendSpikeAlert(alert *models.CostSpikeAlert) error {
	fmt.Printf("🔔 Cost spike for %s: +%.0f%%\n", alert.UserID, alert.PercentIncrease)
	return nil
}

func (terminalNotifier) SendBatchReport(result *models.BatchResult) error {
	fmt.Printf("🔔 Batch report: %d users, %d queries, %d mentions\n",
		result.UsersProcessed, result.QueriesExecuted, result.MentionsFound)
	return nil
}

func main() {
	fmt.Println("🧪 AI Visibility Bot - Full Dry Run")
	fmt.Println("===================================")

	memory := store.NewMemory()
	ctx := context.Background()

	// Two users: one with a complete profile, one missing everything.
	seedUser(ctx, memory, "agent-jordan", models.AgentContext{
		Name:        "Jordan Ellis",
		Location:    "Seattle, WA",
		Specialties: []string{"waterfront property"},
		Competitors: []string{"Casey Morgan"},
	})
	seedUser(ctx, memory, "agent-new", models.AgentContext{})

	available := []platforms.Platform{
		&cannedPlatform{name: "chatgpt", unitCost: 200,
			response: "Jordan Ellis is an excellent, top-rated agent for waterfront property in Seattle."},
		&cannedPlatform{name: "gemini", unitCost: 50,
			response: "Several agents serve the Seattle area; options vary by neighborhood."},
	}

	ledger := budget.NewService(memory, memory, platforms.UnitCosts(available), budget.Defaults{
		MonthlyLimitMillicents: 5 * models.MillicentsPerDollar,
		AlertThresholds:        []float64{0.5, 0.75, 0.9},
	})

	service := monitoring.NewService(
		memory,
		ledger,
		platforms.NewExecutor(15*time.Second),
		available,
		annotation.NewKeywordAnnotator(),
		scoring.NewCalculator(memory),
		terminalNotifier{},
		store.NopArchive{},
		60*time.Second,
	)

	result, err := service.RunScheduledMonitoring(ctx, 10, 5, 5*time.Minute)
	if err != nil {
		fmt.Printf("❌ Run failed: %v\n", err)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("   Users processed:   %d\n", result.UsersProcessed)
	fmt.Printf("   Queries executed:  %d\n", result.QueriesExecuted)
	fmt.Printf("   Mentions found:    %d\n", result.MentionsFound)
	fmt.Printf("   Errors:            %d\n", len(result.Errors))
	for _, message := range result.Errors {
		fmt.Printf("     • %s\n", message)
	}

	printBudget(ctx, ledger, "agent-jordan")
	printBudget(ctx, ledger, "agent-new")
}

func seedUser(ctx context.Context, memory *store.Memory, userID string, agent models.AgentContext) {
	memory.SaveConfig(ctx, &models.MonitoringConfig{
		UserID:                userID,
		Enabled:               true,
		Frequency:             models.FrequencyWeekly,
		Platforms:             []string{"chatgpt", "gemini"},
		QueryTemplates:        platforms.DefaultQueryTemplates,
		AlertThresholdPercent: 10,
		AutoReduceFrequency:   true,
		Agent:                 agent,
	})
}

func printBudget(ctx context.Context, ledger *budget.Service, userID string) {
	b, err := ledger.CurrentBudget(ctx, userID)
	if err != nil {
		fmt.Printf("❌ Failed to load budget for %s: %v\n", userID, err)
		return
	}
	fmt.Printf("\n💰 Budget for %s: spent %d of %d millicents (%.1f%%)\n",
		userID, b.CurrentSpendMillicents, b.MonthlyLimitMillicents, b.SpendRatio()*100)
}
