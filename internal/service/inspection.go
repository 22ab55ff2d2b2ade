package service

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

type inspectionService struct {
	tx       repository.Transactor
	repos    repository.Repositories
	bookings BookingService
	clock    utils.Clock
}

func NewInspectionService(tx repository.Transactor, repos repository.Repositories, bookings BookingService, clock utils.Clock) InspectionService {
	return &inspectionService{tx: tx, repos: repos, bookings: bookings, clock: clock}
}

func (s *inspectionService) RecordRenterInspection(ctx context.Context, actor domain.Actor, insp *domain.RenterInspection) (*domain.RenterInspection, error) {
	logger.EnterMethod("inspectionService.RecordRenterInspection", "bookingID", insp.BookingID)

	b, err := s.repos.Bookings.GetByID(ctx, insp.BookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && !actor.Is(b.RenterID) {
		return nil, errors.Wrapf(domain.ErrForbidden, "user %d is not the renter of booking %d", actor.UserID, b.ID)
	}
	if err := renterInspectable(b); err != nil {
		return nil, err
	}
	if insp.Mileage < 0 {
		return nil, domain.InvalidInput("mileage must not be negative")
	}
	if _, err := s.repos.Inspections.GetRenterInspection(ctx, b.ID); err == nil {
		return nil, domain.InvalidInput("renter inspection already recorded for booking %d", b.ID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	insp.RenterID = b.RenterID
	insp.OwnerID = b.OwnerID
	insp.VehicleID = b.VehicleID
	insp.Status = domain.InspectionPending
	insp.ApprovalDecision = nil
	insp.RejectionReason = nil
	insp.RefundAmount = nil
	insp.DecidedAt = nil
	insp.InspectedAt = s.clock.Now()

	// The booking moves first so a refused transition leaves nothing behind.
	// An insert that fails afterwards can be retried while the booking waits
	// for inspection.
	if b.Status == domain.BookingStatusApproved {
		if _, err := s.bookings.UpdateStatus(ctx, domain.SystemActor(), b.ID, domain.BookingStatusAwaitingInspection, "renter inspection recorded"); err != nil {
			logger.ExitMethodWithError("inspectionService.RecordRenterInspection", err, "bookingID", b.ID)
			return nil, err
		}
	}

	err = s.tx.WithVehicleLock(ctx, b.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Bookings.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := renterInspectable(current); err != nil {
			return err
		}
		return repos.Inspections.CreateRenterInspection(ctx, insp)
	})
	if err != nil {
		logger.ExitMethodWithError("inspectionService.RecordRenterInspection", err, "bookingID", b.ID)
		return nil, err
	}

	logger.ExitMethod("inspectionService.RecordRenterInspection", "inspectionID", insp.ID)
	return insp, nil
}

func renterInspectable(b *domain.Booking) error {
	switch b.Status {
	case domain.BookingStatusApproved, domain.BookingStatusAwaitingInspection, domain.BookingStatusActive:
		return nil
	}
	return errors.Wrapf(domain.ErrInvalidStateTransition, "renter inspection not allowed while booking %d is %s", b.ID, b.Status)
}

func (s *inspectionService) DecideRenterInspection(ctx context.Context, actor domain.Actor, bookingID int32, decision RenterDecision) (*domain.RenterInspection, error) {
	log := logger.WithBooking(bookingID, 0).With("approve", decision.Approve)

	b, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && !actor.Is(b.OwnerID) {
		return nil, errors.Wrapf(domain.ErrForbidden, "user %d is not the owner of booking %d", actor.UserID, b.ID)
	}
	insp, err := s.repos.Inspections.GetRenterInspection(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if insp.Decided() && !(decision.Correction && actor.IsAdmin) {
		return nil, errors.Wrapf(domain.ErrInvalidStateTransition, "renter inspection of booking %d already decided", bookingID)
	}

	now := s.clock.Now()
	approved := decision.Approve
	insp.ApprovalDecision = &approved
	insp.DecidedAt = &now

	if decision.Approve {
		insp.Status = domain.InspectionApproved
		insp.RejectionReason = nil
		insp.RefundAmount = nil
		if err := s.repos.Inspections.UpdateRenterInspection(ctx, insp); err != nil {
			return nil, err
		}
		if b.Status == domain.BookingStatusAwaitingInspection {
			if _, err := s.bookings.UpdateStatus(ctx, domain.SystemActor(), b.ID, domain.BookingStatusActive, "renter inspection approved"); err != nil {
				return nil, err
			}
		}
		log.Info("Renter inspection approved")
		return insp, nil
	}

	reason := strings.TrimSpace(decision.RejectionReason)
	if reason == "" {
		return nil, domain.InvalidInput("rejection reason is required")
	}
	if !b.Status.CanTransitionTo(domain.BookingStatusCancelled) {
		return nil, domain.InvalidTransition(b.Status, domain.BookingStatusCancelled)
	}
	amount := b.TotalPrice
	if decision.RefundAmount != nil {
		amount = utils.RoundAmount(*decision.RefundAmount)
	}
	if amount < 0 || amount > b.TotalPrice {
		return nil, domain.InvalidInput("refund amount %.2f outside [0, %.2f]", amount, b.TotalPrice)
	}

	// Cancel first so a refused transition leaves the inspection undecided.
	if _, err := s.bookings.CancelWithRefund(ctx, actor, b.ID, amount, "renter inspection rejected: "+reason); err != nil {
		return nil, err
	}

	insp.Status = domain.InspectionRejected
	insp.RejectionReason = &reason
	insp.RefundAmount = &amount
	if err := s.repos.Inspections.UpdateRenterInspection(ctx, insp); err != nil {
		return nil, err
	}
	log.Info("Renter inspection rejected", "refund_amount", amount)
	return insp, nil
}

func (s *inspectionService) RecordOwnerInspection(ctx context.Context, actor domain.Actor, insp *domain.OwnerInspection) (*domain.OwnerInspection, error) {
	logger.EnterMethod("inspectionService.RecordOwnerInspection", "bookingID", insp.BookingID)

	b, err := s.repos.Bookings.GetByID(ctx, insp.BookingID)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && !actor.Is(b.OwnerID) {
		return nil, errors.Wrapf(domain.ErrForbidden, "user %d is not the owner of booking %d", actor.UserID, b.ID)
	}
	if b.Status != domain.BookingStatusActive && b.Status != domain.BookingStatusCompleted {
		return nil, errors.Wrapf(domain.ErrInvalidStateTransition, "owner inspection not allowed while booking %d is %s", b.ID, b.Status)
	}
	if insp.Mileage < 0 {
		return nil, domain.InvalidInput("mileage must not be negative")
	}
	if err := insp.ApplyDepositDecision(b.SecurityDeposit); err != nil {
		logger.ExitMethodWithWarning("inspectionService.RecordOwnerInspection", err, "bookingID", b.ID)
		return nil, err
	}

	now := s.clock.Now()
	insp.OwnerID = b.OwnerID
	insp.RenterID = b.RenterID
	insp.VehicleID = b.VehicleID
	insp.InspectedAt = now
	insp.DecidedAt = &now

	err = s.tx.WithVehicleLock(ctx, b.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Inspections.CreateOwnerInspection(ctx, insp); err != nil {
			return err
		}
		booking, err := repos.Bookings.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		booking.InspectionStatus = domain.InspectionStatusCompleted
		return repos.Bookings.Update(ctx, booking)
	})
	if err != nil {
		logger.ExitMethodWithError("inspectionService.RecordOwnerInspection", err, "bookingID", b.ID)
		return nil, err
	}

	logger.ExitMethod("inspectionService.RecordOwnerInspection", "inspectionID", insp.ID, "depositDecision", insp.DepositDecision)
	return insp, nil
}
