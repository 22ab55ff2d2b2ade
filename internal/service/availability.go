package service

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
)

const defaultManualReason = "Blocked by owner"

type availabilityService struct {
	tx     repository.Transactor
	repos  repository.Repositories
	queue  WaitingQueueService
	policy Policy
}

// NewAvailabilityService builds the ledger. queue may be nil, in which case
// removing a manual block does not notify anyone.
func NewAvailabilityService(tx repository.Transactor, repos repository.Repositories, queue WaitingQueueService, policy Policy) AvailabilityService {
	return &availabilityService{tx: tx, repos: repos, queue: queue, policy: policy}
}

func (s *availabilityService) Blocks(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error) {
	if _, err := s.repos.Vehicles.GetByID(ctx, vehicleID); err != nil {
		return nil, err
	}
	blocks, err := s.repos.Availability.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []domain.AvailabilityBlock{}
	}
	return blocks, nil
}

func (s *availabilityService) AddBlock(ctx context.Context, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error) {
	var block *domain.AvailabilityBlock
	err := s.tx.WithVehicleLock(ctx, vehicleID, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		block, _, err = addBlock(ctx, repos, vehicleID, start, end, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// addBlock writes a block unless an identical one exists. created is false
// when the existing block is returned.
func addBlock(ctx context.Context, repos repository.Repositories, vehicleID int32, start, end time.Time, reason string) (block *domain.AvailabilityBlock, created bool, err error) {
	start, end = domain.DateOf(start), domain.DateOf(end)
	if end.Before(start) {
		return nil, false, domain.InvalidInput("block ends before it starts")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, false, domain.InvalidInput("block reason is required")
	}

	existing, err := repos.Availability.FindIdentical(ctx, vehicleID, start, end, reason)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	block = &domain.AvailabilityBlock{
		VehicleID:   vehicleID,
		StartDate:   start,
		EndDate:     end,
		IsAvailable: false,
		Reason:      reason,
	}
	if err := repos.Availability.Create(ctx, block); err != nil {
		return nil, false, err
	}
	logger.WithVehicle(vehicleID).Info("Availability block created", "block_id", block.ID, "reason", reason)
	return block, true, nil
}

func (s *availabilityService) RemoveBlock(ctx context.Context, id int32) (bool, error) {
	block, err := s.repos.Availability.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var removed bool
	err = s.tx.WithVehicleLock(ctx, block.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		removed, err = repos.Availability.Delete(ctx, id)
		return err
	})
	return removed, err
}

func (s *availabilityService) AddManualBlock(ctx context.Context, actor domain.Actor, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error) {
	vehicle, err := s.repos.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && !actor.Is(vehicle.OwnerID) {
		return nil, errors.Wrapf(domain.ErrForbidden, "user %d does not own vehicle %d", actor.UserID, vehicleID)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultManualReason
	}
	if domain.IsHoldReason(reason) {
		return nil, domain.InvalidInput("reason %q is reserved for booking holds", reason)
	}
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	var block *domain.AvailabilityBlock
	err = s.tx.WithVehicleLock(ctx, vehicleID, func(ctx context.Context, repos repository.Repositories) error {
		conflicts, err := findConflicts(ctx, repos, vehicleID, start, end, s.policy.SameDayTurnover, 0)
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			// Manual blocks may overlap each other; only bookings win.
			if c.BookingID != 0 || domain.IsHoldReason(c.Reason) {
				return unavailable(vehicleID, start, end, conflicts)
			}
		}
		block, _, err = addBlock(ctx, repos, vehicleID, start, end, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (s *availabilityService) RemoveManualBlock(ctx context.Context, actor domain.Actor, vehicleID, blockID int32) error {
	block, err := s.repos.Availability.GetByID(ctx, blockID)
	if err != nil {
		return err
	}
	if block.VehicleID != vehicleID {
		return domain.NotFound("availability block", blockID)
	}
	vehicle, err := s.repos.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !actor.Privileged() && !actor.Is(vehicle.OwnerID) {
		return errors.Wrapf(domain.ErrForbidden, "user %d does not own vehicle %d", actor.UserID, vehicleID)
	}
	if block.IsHold() {
		return domain.InvalidInput("block %d is a booking hold and follows its booking", blockID)
	}

	removed, err := s.RemoveBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if removed && s.queue != nil {
		if _, err := s.queue.Replay(ctx, vehicleID, block.StartDate, block.EndDate); err != nil {
			logger.WithVehicle(vehicleID).Warn("Waiting queue replay failed after manual unblock", "error", err)
		}
	}
	return nil
}
