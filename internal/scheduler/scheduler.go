package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"vehicle-booking-engine/internal/jobs"
	"vehicle-booking-engine/internal/logger"
)

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a new scheduler with the provided job runner
func NewScheduler(jobRunner *jobs.JobRunner) *Scheduler {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	s.registerJobs()
	return s
}

// registerJobs registers all scheduled jobs with the cron scheduler.
// Refund retries are deliberately absent: they run only on operator demand.
func (s *Scheduler) registerJobs() {
	cfg := s.jobs.Config().Scheduler

	// Nightly release of holds whose booking has ended
	_, err := s.cron.AddFunc(cfg.ReleaseExpiredHolds, s.jobs.ReleaseExpiredHolds)
	if err != nil {
		logger.Error("Failed to register ReleaseExpiredHolds job", "error", err)
	}

	// Completed bookings whose contract was signed after completion
	_, err = s.cron.AddFunc(cfg.ReconcileCompletedHolds, s.jobs.ReconcileCompletedHolds)
	if err != nil {
		logger.Error("Failed to register ReconcileCompletedHolds job", "error", err)
	}

	logger.Info("All cron jobs registered successfully", "jobs", len(s.cron.Entries()))
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// IsRunning returns true if the scheduler is running
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}

// Entries reports the registered schedule, used at startup for logging.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}
