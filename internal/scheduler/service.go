package scheduler

import (
	"context"

	"github.com/bayonhq/ai-visibility-bot/internal/config"
	"github.com/bayonhq/ai-visibility-bot/internal/monitoring"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service triggers scheduled monitoring runs.
type Service struct {
	config            *config.Config
	monitoringService *monitoring.Service
	cron              *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, monitoringService *monitoring.Service) *Service {
	return &Service{
		config:            cfg,
		monitoringService: monitoringService,
		cron:              cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled monitoring
func (s *Service) Start() error {
	var cronExpression string

	switch s.config.BatchSchedule {
	case "daily":
		// Run daily at 9 AM UTC
		cronExpression = "0 0 9 * * *"
	case "weekly":
		// Run weekly on Monday at 9 AM UTC
		cronExpression = "0 0 9 * * MON"
	default:
		// Default to weekly
		cronExpression = "0 0 9 * * MON"
	}

	_, err := s.cron.AddFunc(cronExpression, func() {
		logrus.Info("Starting scheduled monitoring run")
		ctx, cancel := context.WithTimeout(context.Background(), s.config.MaxRunDuration)
		defer cancel()

		if _, err := s.monitoringService.RunScheduledMonitoring(ctx,
			s.config.MaxUsersPerRun, s.config.BatchSize, s.config.MaxRunDuration); err != nil {
			logrus.Errorf("Scheduled monitoring run failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule", s.config.BatchSchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
