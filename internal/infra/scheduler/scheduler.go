package scheduler

import (
	"context"
	"fmt"
	"time"

	"release_notification_bot/internal/app" // For ReconciliationService interface

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultPassTimeout = 30 * time.Minute

type ReconciliationScheduler struct {
	cronEngine  *cron.Cron
	service     app.ReconciliationService // Using the interface
	logger      *logrus.Entry
	cronSpec    string
	passTimeout time.Duration
}

func NewReconciliationScheduler(
	service app.ReconciliationService,
	logger *logrus.Entry,
	location *time.Location,
	cronSpec string, // e.g., "0 8 * * *" (8:00 AM daily)
) *ReconciliationScheduler {
	if location == nil {
		location = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	return &ReconciliationScheduler{
		// A slow pass must never overlap the next one.
		cronEngine:  cron.New(cron.WithLocation(location), cron.WithChain(cron.SkipIfStillRunning(cronLogger))),
		service:     service,
		logger:      logger.WithField("component", "scheduler"),
		cronSpec:    cronSpec,
		passTimeout: defaultPassTimeout,
	}
}

// Start registers the reconciliation job and starts the cron engine.
func (s *ReconciliationScheduler) Start() error {
	s.logger.Info("Starting reconciliation scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for reconciliation pass.")
		s.executePass()
	})
	if err != nil {
		return fmt.Errorf("could not add reconciliation cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Reconciliation scheduler started.")
	return nil
}

// executePass runs one pass with its own timeout; failures are logged, never fatal.
func (s *ReconciliationScheduler) executePass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	summary, err := s.service.RunReconciliationPass(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Reconciliation pass failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":            summary.RunID,
		"events_dispatched": summary.EventsDispatched,
	}).Info("Reconciliation pass completed")
}

func (s *ReconciliationScheduler) Stop() {
	s.logger.Info("Stopping reconciliation scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Reconciliation scheduler gracefully stopped.")
}
