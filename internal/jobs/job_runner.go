package jobs

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/service"
)

const (
	JobReleaseExpiredHolds     = "release-expired-holds"
	JobReconcileCompletedHolds = "reconcile-completed-holds"
	JobRetryFailedRefunds      = "retry-failed-refunds"
)

const (
	defaultJobTimeout = 5 * time.Minute
	reconcileBatch    = 200
	refundRetryBatch  = 50
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Release service.ReleaseService
	Booking service.BookingService
	Refund  service.RefundService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// Names lists the jobs that can be run by name, sorted.
func (jr *JobRunner) Names() []string {
	names := make([]string, 0, len(jr.registry()))
	for name := range jr.registry() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes one job by name in the foreground and reports its error.
func (jr *JobRunner) Run(ctx context.Context, name string) error {
	fn, ok := jr.registry()[name]
	if !ok {
		return errors.Newf("unknown job %q", name)
	}
	return jr.runWithRecovery(ctx, name, fn)
}

func (jr *JobRunner) registry() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		JobReleaseExpiredHolds: func(ctx context.Context) error {
			_, err := jr.releaseExpiredHolds(ctx)
			return err
		},
		JobReconcileCompletedHolds: func(ctx context.Context) error {
			_, err := jr.reconcileCompletedHolds(ctx)
			return err
		},
		JobRetryFailedRefunds: func(ctx context.Context) error {
			_, _, err := jr.retryFailedRefunds(ctx)
			return err
		},
	}
}

// runWithRecovery wraps job execution with panic recovery and the per-run
// timeout.
func (jr *JobRunner) runWithRecovery(ctx context.Context, jobName string, jobFunc func(ctx context.Context) error) (err error) {
	log := logger.WithJob(jobName)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
			err = errors.Newf("job %s panicked: %v", jobName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(logger.NewContext(ctx, log), jr.timeout())
	defer cancel()

	start := time.Now()
	log.Info("Starting job")
	if err = jobFunc(ctx); err != nil {
		log.Error("Job failed", "error", err, "duration", time.Since(start))
		return err
	}
	log.Info("Job completed", "duration", time.Since(start))
	return nil
}

func (jr *JobRunner) timeout() time.Duration {
	if jr.config != nil && jr.config.Scheduler.ReleaseTimeoutSeconds > 0 {
		return time.Duration(jr.config.Scheduler.ReleaseTimeoutSeconds) * time.Second
	}
	return defaultJobTimeout
}

// ReleaseExpiredHolds is the cron entry point for the nightly release.
func (jr *JobRunner) ReleaseExpiredHolds() {
	_ = jr.Run(context.Background(), JobReleaseExpiredHolds)
}

// ReconcileCompletedHolds is the cron entry point for the hold sweep.
func (jr *JobRunner) ReconcileCompletedHolds() {
	_ = jr.Run(context.Background(), JobReconcileCompletedHolds)
}

// ReleaseNow runs the release job for an on-demand trigger and returns
// its summary.
func (jr *JobRunner) ReleaseNow(ctx context.Context) (*domain.ReleaseSummary, error) {
	var summary *domain.ReleaseSummary
	err := jr.runWithRecovery(ctx, JobReleaseExpiredHolds, func(ctx context.Context) error {
		var err error
		summary, err = jr.releaseExpiredHolds(ctx)
		return err
	})
	return summary, err
}

func (jr *JobRunner) releaseExpiredHolds(ctx context.Context) (*domain.ReleaseSummary, error) {
	summary, err := jr.services.Release.ReleaseExpired(ctx)
	if err != nil {
		return nil, err
	}
	log := logger.WithJob(JobReleaseExpiredHolds)
	if summary.TimedOut {
		log.Warn("Release stopped at timeout, partial progress kept",
			"released", summary.ReleasedCount,
			"skipped", summary.SkippedCount,
			"errors", summary.ErrorCount)
	}
	log.Info("Released expired holds",
		"released", summary.ReleasedCount,
		"notified", summary.NotifiedCount,
		"failed_notifications", summary.FailedNotifications,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)
	return summary, nil
}

func (jr *JobRunner) reconcileCompletedHolds(ctx context.Context) (int, error) {
	blocked, err := jr.services.Booking.ReconcileCompletedHolds(ctx, reconcileBatch)
	if err != nil {
		return blocked, err
	}
	logger.WithJob(JobReconcileCompletedHolds).Info("Reconciled completed bookings", "blocked", blocked)
	return blocked, nil
}

// retryFailedRefunds is only run by operators; failed refunds are never
// retried automatically.
func (jr *JobRunner) retryFailedRefunds(ctx context.Context) (int, int, error) {
	retried, failed, err := jr.services.Refund.RetryFailed(ctx, refundRetryBatch)
	if err != nil {
		return retried, failed, err
	}
	logger.WithJob(JobRetryFailedRefunds).Info("Retried failed refunds", "retried", retried, "failed", failed)
	if failed > 0 {
		return retried, failed, errors.Newf("%d refunds failed again", failed)
	}
	return retried, failed, nil
}
