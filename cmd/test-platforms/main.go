package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/config"
	"github.com/bayonhq/ai-visibility-bot/internal/platforms"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🔍 AI Visibility Bot - Platform Connectivity Test")
	fmt.Println("=================================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	prompt := "Who are the best real estate agents in Seattle?"
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Println("\n📡 Testing AI Platforms...")
	fmt.Println(strings.Repeat("-", 40))

	executor := platforms.NewExecutor(cfg.QueryTimeout)

	// Test each platform adapter
	testPlatform(ctx, executor, platforms.NewChatGPTPlatform(cfg.OpenAIAPIKey), prompt)
	testPlatform(ctx, executor, platforms.NewClaudePlatform(cfg.AnthropicAPIKey), prompt)
	testPlatform(ctx, executor, platforms.NewPerplexityPlatform(cfg.PerplexityAPIKey), prompt)
	testPlatform(ctx, executor, platforms.NewGeminiPlatform(cfg.GeminiAPIKey), prompt)

	fmt.Println("\n✅ Platform connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Configure missing API keys in .env file")
	fmt.Println("   • Run the bot with: make run")
}

func testPlatform(ctx context.Context, executor *platforms.Executor, platform platforms.Platform, prompt string) {
	fmt.Printf("🔸 Testing %s... ", platform.Name())

	if !platform.IsEnabled() {
		fmt.Printf("⚠️  DISABLED (missing API key)\n")
		return
	}

	response, failure := executor.Query(ctx, platform, prompt)
	if failure != nil {
		fmt.Printf("❌ %s: %s\n", strings.ToUpper(string(failure.Category)), failure.Message)
		fmt.Printf("   💡 %s\n", failure.RemedialAction())
		return
	}

	sample := response
	if len(sample) > 120 {
		sample = sample[:120] + "..."
	}
	fmt.Printf("✅ SUCCESS (%d chars, %.2f¢/query)\n", len(response),
		float64(platform.UnitCostMillicents())/1000)
	fmt.Printf("   📝 Sample: \"%s\"\n", strings.ReplaceAll(sample, "\n", " "))
}
