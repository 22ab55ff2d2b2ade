package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

type releaseService struct {
	tx     repository.Transactor
	repos  repository.Repositories
	queue  WaitingQueueService
	clock  utils.Clock
	policy Policy
}

func NewReleaseService(tx repository.Transactor, repos repository.Repositories, queue WaitingQueueService, clock utils.Clock, policy Policy) ReleaseService {
	return &releaseService{tx: tx, repos: repos, queue: queue, clock: clock, policy: policy}
}

// ReleaseExpired deletes booking holds whose last day is before today and
// replays the waiting queue for each freed range. It is safe to run more
// than once a day. When ctx expires the partial summary is returned with
// TimedOut set.
func (s *releaseService) ReleaseExpired(ctx context.Context) (*domain.ReleaseSummary, error) {
	log := logger.WithService("releaseService")
	summary := &domain.ReleaseSummary{}
	today := utils.Today(s.clock)

	blocks, err := s.repos.Availability.ListExpiredHolds(ctx, today)
	if err != nil {
		return nil, err
	}
	log.Info("Releasing expired holds", "candidates", len(blocks), "today", utils.FormatDate(today))

	for i := range blocks {
		blk := &blocks[i]
		if ctx.Err() != nil {
			summary.TimedOut = true
			break
		}
		if blk.IsAvailable || !blk.IsHold() || !domain.DateOf(blk.EndDate).Before(today) {
			continue
		}

		released, skipped, err := s.releaseOne(ctx, blk, today)
		switch {
		case err != nil:
			summary.ErrorCount++
			log.Error("Releasing hold failed", "block_id", blk.ID, "error", err)
			continue
		case skipped:
			summary.SkippedCount++
			continue
		case !released:
			continue
		}
		summary.ReleasedCount++

		if s.queue == nil {
			continue
		}
		res, err := s.queue.Replay(ctx, blk.VehicleID, blk.StartDate, blk.EndDate)
		if err != nil {
			log.Warn("Waiting queue replay failed", "vehicle_id", blk.VehicleID, "error", err)
			continue
		}
		summary.NotifiedCount += res.Notified
		summary.FailedNotifications += res.Failed
	}

	if summary.TimedOut {
		log.Warn("Release run stopped before finishing", "released", summary.ReleasedCount, "remaining", len(blocks)-summary.ReleasedCount-summary.SkippedCount-summary.ErrorCount)
	}
	log.Info("Release run finished",
		"released", summary.ReleasedCount,
		"notified", summary.NotifiedCount,
		"failed_notifications", summary.FailedNotifications,
		"skipped", summary.SkippedCount,
		"errors", summary.ErrorCount)
	return summary, nil
}

func (s *releaseService) releaseOne(ctx context.Context, blk *domain.AvailabilityBlock, today time.Time) (released, skipped bool, err error) {
	bookingID, _ := domain.HoldBookingID(blk.Reason)

	err = s.tx.WithVehicleLock(ctx, blk.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		booking, err := repos.Bookings.GetByID(ctx, bookingID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			booking = nil
		case err != nil:
			return err
		}

		if booking != nil && s.policy.RequireOwnerInspection &&
			(booking.Status == domain.BookingStatusActive || booking.Status == domain.BookingStatusCompleted) {
			insp, err := repos.Inspections.GetOwnerInspection(ctx, booking.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if insp == nil {
				skipped = true
				return nil
			}
		}

		released, err = repos.Availability.DeleteExpiredHold(ctx, blk.ID, blk.Reason, today)
		if err != nil || !released || booking == nil {
			return err
		}
		now := s.clock.Now()
		booking.HoldReleasedAt = &now
		if booking.AvailabilityBlockID != nil && *booking.AvailabilityBlockID == blk.ID {
			booking.AvailabilityBlockID = nil
		}
		return repos.Bookings.Update(ctx, booking)
	})
	if skipped {
		logger.WithBooking(bookingID, blk.VehicleID).Info("Hold kept until owner inspection is recorded", "block_id", blk.ID)
	}
	return released, skipped, err
}
