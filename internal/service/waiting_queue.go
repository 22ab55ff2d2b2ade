package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/worker"
)

type waitingQueueService struct {
	repos    repository.Repositories
	notifier Notifier
	pool     *worker.Pool
}

// NewWaitingQueueService fans notifications out on pool. Entries of one
// replay start in FIFO order.
func NewWaitingQueueService(repos repository.Repositories, notifier Notifier, pool *worker.Pool) WaitingQueueService {
	return &waitingQueueService{repos: repos, notifier: notifier, pool: pool}
}

func (s *waitingQueueService) Join(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	if _, err := s.repos.Vehicles.GetByID(ctx, vehicleID); err != nil {
		return nil, err
	}
	start, end = domain.DateOf(start), domain.DateOf(end)

	existing, err := s.repos.WaitingQueue.FindActive(ctx, vehicleID, userID, start, end)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	entry := &domain.WaitingQueueEntry{
		VehicleID:        vehicleID,
		UserID:           userID,
		DesiredStartDate: start,
		DesiredEndDate:   end,
		IsActive:         true,
	}
	if err := s.repos.WaitingQueue.Create(ctx, entry); err != nil {
		return nil, err
	}
	logger.WithVehicle(vehicleID).Info("User joined waiting queue", "entry_id", entry.ID, "user_id", userID)
	return entry, nil
}

func (s *waitingQueueService) Leave(ctx context.Context, actor domain.Actor, entryID int32) error {
	entry, err := s.repos.WaitingQueue.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if !actor.Privileged() && !actor.Is(entry.UserID) {
		return errors.Wrapf(domain.ErrForbidden, "user %d does not own waiting entry %d", actor.UserID, entryID)
	}
	if !entry.IsActive {
		return nil
	}
	_, err = s.repos.WaitingQueue.Deactivate(ctx, entryID)
	return err
}

func (s *waitingQueueService) ListForUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error) {
	entries, err := s.repos.WaitingQueue.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.WaitingQueueEntry{}
	}
	return entries, nil
}

// Replay notifies every active entry whose desired range overlaps the freed
// range. Delivery failures are counted, never returned.
func (s *waitingQueueService) Replay(ctx context.Context, vehicleID int32, freedStart, freedEnd time.Time) (*ReplayResult, error) {
	log := logger.WithVehicle(vehicleID)
	result := &ReplayResult{Initiated: []int32{}}

	entries, err := s.repos.WaitingQueue.ListActiveByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	var matched []domain.WaitingQueueEntry
	for _, e := range entries {
		if e.Wants(freedStart, freedEnd) {
			matched = append(matched, e)
		}
	}
	result.Matched = len(matched)
	if len(matched) == 0 {
		return result, nil
	}

	name := "Vehicle"
	if v, err := s.repos.Vehicles.GetByID(ctx, vehicleID); err == nil {
		name = v.DisplayName()
	} else {
		log.Warn("Vehicle lookup failed, notifying with generic name", "error", err)
	}

	tasks := make([]worker.Task, len(matched))
	for i := range matched {
		entry := matched[i]
		tasks[i] = func(ctx context.Context) error {
			return s.notifyEntry(ctx, &entry, name)
		}
	}
	report := s.pool.Run(ctx, tasks)

	for _, idx := range report.Started {
		result.Initiated = append(result.Initiated, matched[idx].ID)
	}
	for i, err := range report.Errors {
		if err != nil {
			log.Warn("Waiting entry notification failed", "entry_id", matched[i].ID, "user_id", matched[i].UserID, "error", err)
		}
	}
	result.Failed = report.Failed()
	result.Notified = len(report.Errors) - result.Failed
	log.Info("Waiting queue replayed", "matched", result.Matched, "notified", result.Notified, "failed", result.Failed)
	return result, nil
}

func (s *waitingQueueService) notifyEntry(ctx context.Context, entry *domain.WaitingQueueEntry, vehicleName string) error {
	user, err := s.repos.Users.GetByID(ctx, entry.UserID)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "load user %d", entry.UserID), domain.ErrNotifierDeliveryFailed)
	}
	start, end := entry.DesiredStartDate, entry.DesiredEndDate
	n := domain.Notification{
		Type:         domain.NotificationVehicleAvailable,
		Title:        "Vehicle available",
		Message:      vehicleName + " is available for the dates you wanted",
		VehicleID:    entry.VehicleID,
		VehicleName:  vehicleName,
		DesiredStart: &start,
		DesiredEnd:   &end,
	}
	if err := notifyUser(ctx, s.notifier, user, n); err != nil {
		return err
	}
	if err := s.repos.WaitingQueue.MarkNotified(ctx, entry.ID); err != nil {
		logger.Warn("Marking waiting entry notified failed", "entry_id", entry.ID, "error", err)
	}
	return nil
}
