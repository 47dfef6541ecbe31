package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/annotation"
	"github.com/bayonhq/ai-visibility-bot/internal/budget"
	"github.com/bayonhq/ai-visibility-bot/internal/config"
	"github.com/bayonhq/ai-visibility-bot/internal/monitoring"
	"github.com/bayonhq/ai-visibility-bot/internal/notifications"
	"github.com/bayonhq/ai-visibility-bot/internal/platforms"
	"github.com/bayonhq/ai-visibility-bot/internal/scheduler"
	"github.com/bayonhq/ai-visibility-bot/internal/scoring"
	"github.com/bayonhq/ai-visibility-bot/internal/store"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting AI Visibility Bot")

	// Initialize stores
	var (
		configStore store.ConfigStore
		budgetStore store.BudgetStore
		scoreStore  store.ScoreStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatalf("Failed to initialize Postgres store: %v", err)
		}
		defer pg.Close()
		configStore, budgetStore, scoreStore = pg, pg, pg
	} else {
		logrus.Warn("DATABASE_URL not set, using in-memory store (data is lost on restart)")
		memory := store.NewMemory()
		configStore, budgetStore, scoreStore = memory, memory, memory
	}

	// Initialize the mention archive
	var archive store.Archive = store.NopArchive{}
	if cfg.StorageAccount != "" {
		azureArchive, err := store.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize archive: %v", err)
		}
		archive = azureArchive
	}

	// Initialize platform adapters
	available := []platforms.Platform{
		platforms.NewChatGPTPlatform(cfg.OpenAIAPIKey),
		platforms.NewClaudePlatform(cfg.AnthropicAPIKey),
		platforms.NewPerplexityPlatform(cfg.PerplexityAPIKey),
		platforms.NewGeminiPlatform(cfg.GeminiAPIKey),
	}

	// Initialize the cost ledger
	ledger := budget.NewService(budgetStore, configStore, platforms.UnitCosts(available), budget.Defaults{
		MonthlyLimitMillicents: cfg.DefaultMonthlyLimitMillicents,
		AlertThresholds:        cfg.DefaultAlertThresholds,
	})

	// Initialize the annotation collaborator
	var annotator annotation.Annotator
	if cfg.OpenAIAPIKey != "" {
		annotator = annotation.NewOpenAIAnnotator(cfg.OpenAIAPIKey)
	} else {
		logrus.Warn("OPENAI_API_KEY not set, using keyword annotator")
		annotator = annotation.NewKeywordAnnotator()
	}

	// Initialize notification services
	notificationService := notifications.NewService(cfg)

	// Initialize monitoring service
	monitoringService := monitoring.NewService(
		configStore,
		ledger,
		platforms.NewExecutor(cfg.QueryTimeout),
		available,
		annotator,
		scoring.NewCalculator(scoreStore),
		notificationService,
		archive,
		cfg.SafetyMargin,
	)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, monitoringService)

	// Start scheduler
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks and manual triggers
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(monitoringService)).Methods("GET")
	router.HandleFunc("/trigger", triggerHandler(cfg, monitoringService)).Methods("POST")
	router.HandleFunc("/trigger/{userID}", triggerUserHandler(monitoringService)).Methods("POST")
	router.HandleFunc("/alerts/spikes", spikeListHandler(budgetStore)).Methods("GET")
	router.HandleFunc("/alerts/spikes/{alertID}/ack", spikeAckHandler(budgetStore)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(monitoringService.GetMetrics()))
	}
}

func triggerHandler(cfg *config.Config, monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.MaxRunDuration)
			defer cancel()

			if _, err := monitoringService.RunScheduledMonitoring(ctx,
				cfg.MaxUsersPerRun, cfg.BatchSize, cfg.MaxRunDuration); err != nil {
				logrus.Errorf("Manual monitoring trigger failed: %v", err)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Monitoring triggered successfully"}`))
	}
}

func triggerUserHandler(monitoringService *monitoring.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userID"]

		result, err := monitoringService.RunForUser(r.Context(), userID)
		if err != nil {
			logrus.Errorf("Manual run for user %s failed: %v", userID, err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}

func spikeListHandler(budgetStore store.BudgetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		includeAcked := r.URL.Query().Get("all") == "true"

		alerts, err := budgetStore.ListSpikeAlerts(r.Context(), includeAcked)
		if err != nil {
			logrus.Errorf("Failed to list spike alerts: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(alerts)
	}
}

func spikeAckHandler(budgetStore store.BudgetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alertID := mux.Vars(r)["alertID"]

		if err := budgetStore.AcknowledgeSpikeAlert(r.Context(), alertID); err != nil {
			logrus.Errorf("Failed to acknowledge spike alert %s: %v", alertID, err)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Alert acknowledged"}`))
	}
}
