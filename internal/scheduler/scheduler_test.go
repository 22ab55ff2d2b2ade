package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-booking-engine/internal/config"
	"vehicle-booking-engine/internal/jobs"
)

func TestNewScheduler_RegistersJobs(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.ReleaseExpiredHolds = "0 0 3 * * *"
	cfg.Scheduler.ReconcileCompletedHolds = "0 */15 * * * *"

	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.True(t, s.IsRunning())

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), entries[0].Schedule.Next(from))
	assert.Equal(t, time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), entries[1].Schedule.Next(from))
}

func TestNewScheduler_InvalidSpecIsSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.ReleaseExpiredHolds = "not a cron spec"
	cfg.Scheduler.ReconcileCompletedHolds = "0 */15 * * * *"

	s := NewScheduler(jobs.NewJobRunner(&jobs.Services{}, cfg))
	assert.Len(t, s.Entries(), 1)

	s.Start()
	s.Stop()
}
