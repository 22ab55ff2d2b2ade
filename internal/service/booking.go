package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

type bookingService struct {
	tx        repository.Transactor
	repos     repository.Repositories
	contracts ContractService
	refunds   RefundService
	queue     WaitingQueueService
	notifier  Notifier
	clock     utils.Clock
	policy    Policy
}

func NewBookingService(
	tx repository.Transactor,
	repos repository.Repositories,
	contracts ContractService,
	refunds RefundService,
	queue WaitingQueueService,
	notifier Notifier,
	clock utils.Clock,
	policy Policy,
) BookingService {
	return &bookingService{
		tx:        tx,
		repos:     repos,
		contracts: contracts,
		refunds:   refunds,
		queue:     queue,
		notifier:  notifier,
		clock:     clock,
		policy:    policy,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.CreateBooking", "vehicleID", req.VehicleID, "renterID", req.RenterID)

	if err := validateBookingRequest(req); err != nil {
		logger.ExitMethodWithError("bookingService.CreateBooking", err)
		return nil, err
	}
	vehicle, err := s.repos.Vehicles.GetByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle.OwnerID == req.RenterID {
		return nil, domain.InvalidInput("owners cannot book their own vehicle")
	}
	if !vehicle.IsAvailable {
		return nil, errors.Wrapf(domain.ErrVehicleUnavailable, "vehicle %d is not listed", vehicle.ID)
	}

	booking := &domain.Booking{
		VehicleID:        req.VehicleID,
		RenterID:         req.RenterID,
		OwnerID:          vehicle.OwnerID,
		StartDate:        req.StartDate.UTC(),
		EndDate:          req.EndDate.UTC(),
		Status:           domain.BookingStatusPending,
		TotalPrice:       utils.RoundAmount(req.TotalPrice),
		ServiceFee:       utils.RoundAmount(req.ServiceFee),
		InsuranceFee:     utils.RoundAmount(req.InsuranceFee),
		SecurityDeposit:  utils.RoundAmount(req.SecurityDeposit),
		PaymentStatus:    req.PaymentStatus,
		PaymentReference: req.PaymentReference,
		InspectionStatus: domain.InspectionStatusNotRequired,
		Notes:            req.Notes,
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = domain.PaymentStatusPending
	}

	err = s.tx.WithVehicleLock(ctx, req.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		conflicts, err := findConflicts(ctx, repos, req.VehicleID, booking.StartDate, booking.EndDate, s.policy.SameDayTurnover, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return unavailable(req.VehicleID, booking.StartDate, booking.EndDate, conflicts)
		}
		if err := repos.Bookings.Create(ctx, booking); err != nil {
			return err
		}
		n, err := repos.WaitingQueue.DeactivateMatching(ctx, booking.VehicleID, booking.RenterID, booking.StartDate, booking.EndDate)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.WithBooking(booking.ID, booking.VehicleID).Debug("Deactivated renter waiting entries", "count", n)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrVehicleUnavailable) {
			logger.ExitMethodWithWarning("bookingService.CreateBooking", err, "vehicleID", req.VehicleID)
		} else {
			logger.ExitMethodWithError("bookingService.CreateBooking", err, "vehicleID", req.VehicleID)
		}
		return nil, err
	}

	s.notifyParty(ctx, booking.OwnerID, booking, "New booking request",
		fmt.Sprintf("You have a new booking request for %s to %s", utils.FormatDate(booking.StartDate), utils.FormatDate(booking.EndDate)))

	logger.ExitMethod("bookingService.CreateBooking", "bookingID", booking.ID)
	return booking, nil
}

func validateBookingRequest(req CreateBookingRequest) error {
	if req.VehicleID <= 0 || req.RenterID <= 0 {
		return domain.InvalidInput("vehicle and renter are required")
	}
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return err
	}
	if req.TotalPrice < 0 || req.ServiceFee < 0 || req.InsuranceFee < 0 || req.SecurityDeposit < 0 {
		return domain.InvalidInput("amounts must not be negative")
	}
	if req.ServiceFee > req.TotalPrice {
		return domain.InvalidInput("service fee %.2f exceeds total price %.2f", req.ServiceFee, req.TotalPrice)
	}
	if req.PaymentStatus != "" {
		switch req.PaymentStatus {
		case domain.PaymentStatusPending, domain.PaymentStatusPaid:
		default:
			return domain.InvalidInput("payment status %q not accepted on creation", req.PaymentStatus)
		}
	}
	return nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor domain.Actor, id int32) (*domain.Booking, error) {
	b, err := s.repos.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged() && !actor.Is(b.RenterID) && !actor.Is(b.OwnerID) {
		return nil, errors.Wrapf(domain.ErrForbidden, "booking %d", id)
	}
	return b, nil
}

// authorizeTransition decides who may request a status change. The state
// machine itself is checked separately.
func authorizeTransition(actor domain.Actor, b *domain.Booking, next domain.BookingStatus) error {
	if actor.Privileged() {
		return nil
	}
	switch next {
	case domain.BookingStatusApproved, domain.BookingStatusRejected, domain.BookingStatusAwaitingInspection,
		domain.BookingStatusActive, domain.BookingStatusCompleted:
		if actor.Is(b.OwnerID) {
			return nil
		}
	case domain.BookingStatusCancelled:
		if actor.Is(b.OwnerID) || actor.Is(b.RenterID) {
			return nil
		}
	}
	return errors.Wrapf(domain.ErrForbidden, "user %d may not set booking %d to %s", actor.UserID, b.ID, next)
}

func (s *bookingService) UpdateStatus(ctx context.Context, actor domain.Actor, bookingID int32, next domain.BookingStatus, reason string) (*domain.Booking, error) {
	return s.transition(ctx, actor, bookingID, next, reason, nil)
}

func (s *bookingService) CancelWithRefund(ctx context.Context, actor domain.Actor, bookingID int32, amount float64, reason string) (*domain.Booking, error) {
	if amount < 0 {
		return nil, domain.InvalidInput("refund amount must not be negative")
	}
	return s.transition(ctx, actor, bookingID, domain.BookingStatusCancelled, reason, &amount)
}

// transition is the single path through which booking statuses change.
// Ledger writes happen under the vehicle lock; contract creation, refunds
// and waiting-queue replay run after the commit.
func (s *bookingService) transition(ctx context.Context, actor domain.Actor, bookingID int32, next domain.BookingStatus, reason string, refundOverride *float64) (*domain.Booking, error) {
	log := logger.WithService("bookingService").With("booking_id", bookingID, "next", next)

	if !next.Valid() {
		return nil, domain.InvalidInput("unknown booking status %q", next)
	}
	current, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, current, next); err != nil {
		return nil, err
	}

	var (
		updated   *domain.Booking
		previous  domain.BookingStatus
		freed     *domain.AvailabilityBlock
		committed bool
	)
	err = s.tx.WithVehicleLock(ctx, current.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransitionTo(next) {
			return domain.InvalidTransition(b.Status, next)
		}
		previous = b.Status
		committed = b.Status.Committed()

		switch next {
		case domain.BookingStatusApproved:
			conflicts, err := findConflicts(ctx, repos, b.VehicleID, b.StartDate, b.EndDate, s.policy.SameDayTurnover, b.ID)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return unavailable(b.VehicleID, b.StartDate, b.EndDate, conflicts)
			}
			b.Status = next
			if s.policy.HoldOnApproval {
				if _, _, err := s.ensureHold(ctx, repos, b); err != nil {
					return err
				}
			}
		case domain.BookingStatusAwaitingInspection:
			b.Status = next
			b.InspectionStatus = domain.InspectionStatusPending
		case domain.BookingStatusActive:
			if b.Status == domain.BookingStatusAwaitingInspection {
				b.InspectionStatus = domain.InspectionStatusCompleted
			}
			b.Status = next
		case domain.BookingStatusCancelled, domain.BookingStatusRejected:
			freed, err = releaseHold(ctx, repos, b)
			if err != nil {
				return err
			}
			b.Status = next
		case domain.BookingStatusRefunded:
			b.Status = next
			b.PaymentStatus = domain.PaymentStatusRefunded
		default:
			b.Status = next
		}

		if reason = strings.TrimSpace(reason); reason != "" {
			b.Notes = appendNote(b.Notes, fmt.Sprintf("%s: %s", next, reason))
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidStateTransition) || errors.Is(err, domain.ErrVehicleUnavailable) {
			log.Warn("Status change rejected", "error", err)
		} else {
			log.Error("Status change failed", "error", err)
		}
		return nil, err
	}
	log.Info("Booking status changed", "from", previous)

	switch next {
	case domain.BookingStatusApproved:
		if s.policy.AutoCreateContract {
			s.attachContract(ctx, updated)
		}
	case domain.BookingStatusCompleted:
		if _, err := s.CheckAndBlockCompletedBooking(ctx, updated.ID); err != nil {
			log.Warn("Hold check after completion failed, reconcile job will retry", "error", err)
		}
	case domain.BookingStatusCancelled, domain.BookingStatusRejected:
		s.afterCancellation(ctx, actor, updated, freed, committed, reason, refundOverride)
	}

	s.notifyStatus(ctx, actor, updated)

	// Side effects may have moved the booking on (for example to refunded).
	if fresh, err := s.repos.Bookings.GetByID(ctx, updated.ID); err == nil {
		updated = fresh
	}
	return updated, nil
}

func (s *bookingService) afterCancellation(ctx context.Context, actor domain.Actor, b *domain.Booking, freed *domain.AvailabilityBlock, wasCommitted bool, reason string, refundOverride *float64) {
	log := logger.WithBooking(b.ID, b.VehicleID)

	if s.refunds != nil {
		var err error
		if refundOverride != nil {
			_, err = s.refunds.RefundAmount(ctx, b, actor, *refundOverride, reason)
		} else {
			_, err = s.refunds.RefundCancellation(ctx, b, actor, reason)
		}
		if err != nil {
			log.Error("Refund after cancellation failed", "error", err)
		}
	}

	if s.queue == nil {
		return
	}
	var start, end time.Time
	switch {
	case freed != nil:
		start, end = freed.StartDate, freed.EndDate
	case wasCommitted:
		start, end = b.StartDate, b.EndDate
	default:
		return
	}
	res, err := s.queue.Replay(ctx, b.VehicleID, start, end)
	if err != nil {
		log.Warn("Waiting queue replay after cancellation failed", "error", err)
		return
	}
	log.Info("Waiting queue replayed after cancellation", "notified", res.Notified, "failed", res.Failed)
}

// ensureHold makes sure the booking owns its hold. It is the only place that
// writes booking holds. held reports whether the hold exists afterwards,
// changed whether the booking row needs saving.
func (s *bookingService) ensureHold(ctx context.Context, repos repository.Repositories, b *domain.Booking) (held, changed bool, err error) {
	if b.Status.HoldForbidden() || b.HoldReleasedAt != nil {
		return false, false, nil
	}

	if b.AvailabilityBlockID != nil {
		blk, err := repos.Availability.GetByID(ctx, *b.AvailabilityBlockID)
		switch {
		case err == nil && blk.Reason == b.HoldReason():
			return true, false, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return false, false, err
		}
		b.AvailabilityBlockID = nil
		changed = true
	}

	// A range that already ended is still held; the release job expires it
	// and replays the waiting queue.
	blk, created, err := addBlock(ctx, repos, b.VehicleID, b.StartDate, b.EndDate, b.HoldReason())
	if err != nil {
		return false, changed, err
	}
	b.AvailabilityBlockID = &blk.ID
	if created {
		logger.WithBooking(b.ID, b.VehicleID).Info("Booking hold written", "block_id", blk.ID)
	}
	return true, true, nil
}

// releaseHold deletes every hold owned by the booking and clears the link.
// The first released block is returned so its range can be replayed.
func releaseHold(ctx context.Context, repos repository.Repositories, b *domain.Booking) (*domain.AvailabilityBlock, error) {
	var freed *domain.AvailabilityBlock
	reason := b.HoldReason()

	if b.AvailabilityBlockID != nil {
		blk, err := repos.Availability.GetByID(ctx, *b.AvailabilityBlockID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil && blk.Reason == reason {
			if _, err := repos.Availability.Delete(ctx, blk.ID); err != nil {
				return nil, err
			}
			freed = blk
		}
		b.AvailabilityBlockID = nil
	}

	// Sweep strays left by older writers that did not link the block.
	strays, err := repos.Availability.ListOverlapping(ctx, b.VehicleID, b.StartDate, b.EndDate)
	if err != nil {
		return nil, err
	}
	for i := range strays {
		if strays[i].Reason != reason {
			continue
		}
		if _, err := repos.Availability.Delete(ctx, strays[i].ID); err != nil {
			return nil, err
		}
		if freed == nil {
			freed = &strays[i]
		}
	}
	return freed, nil
}

func (s *bookingService) CheckAndBlockCompletedBooking(ctx context.Context, bookingID int32) (bool, error) {
	b, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.Status != domain.BookingStatusCompleted || b.ContractID == nil {
		return false, nil
	}
	signed, err := s.contracts.IsSigned(ctx, *b.ContractID)
	if err != nil {
		return false, err
	}
	if !signed {
		logger.WithBooking(b.ID, b.VehicleID).Debug("Contract not signed yet, hold deferred")
		return false, nil
	}

	var held bool
	err = s.tx.WithVehicleLock(ctx, b.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusCompleted {
			return nil
		}
		var changed bool
		held, changed, err = s.ensureHold(ctx, repos, b)
		if err != nil || !changed {
			return err
		}
		return repos.Bookings.Update(ctx, b)
	})
	if err != nil {
		return false, err
	}
	return held, nil
}

func (s *bookingService) ContractSigned(ctx context.Context, bookingID int32) (bool, error) {
	b, err := s.repos.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	contract, err := s.contracts.MarkSigned(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if b.ContractID == nil || *b.ContractID != contract.ID {
		err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			b, err := repos.Bookings.GetByID(ctx, bookingID)
			if err != nil {
				return err
			}
			b.ContractID = &contract.ID
			return repos.Bookings.Update(ctx, b)
		})
		if err != nil {
			return false, err
		}
	}
	return s.CheckAndBlockCompletedBooking(ctx, bookingID)
}

func (s *bookingService) ReconcileCompletedHolds(ctx context.Context, limit int32) (int, error) {
	bookings, err := s.repos.Bookings.ListCompletedWithoutHold(ctx, limit)
	if err != nil {
		return 0, err
	}
	blocked := 0
	for _, b := range bookings {
		if ctx.Err() != nil {
			return blocked, ctx.Err()
		}
		ok, err := s.CheckAndBlockCompletedBooking(ctx, b.ID)
		if err != nil {
			logger.WithBooking(b.ID, b.VehicleID).Error("Reconcile hold failed", "error", err)
			continue
		}
		if ok {
			blocked++
		}
	}
	return blocked, nil
}

func (s *bookingService) RefundQuote(ctx context.Context, actor domain.Actor, bookingID int32) (*domain.RefundQuote, error) {
	b, err := s.GetBooking(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	quote := CalculateRefund(b, s.clock.Now())
	return &quote, nil
}

func (s *bookingService) attachContract(ctx context.Context, b *domain.Booking) {
	log := logger.WithBooking(b.ID, b.VehicleID)
	if b.ContractID != nil {
		return
	}
	contract, err := s.contracts.CreateContract(ctx, b)
	if err != nil {
		log.Error("Contract creation failed", "error", err)
		return
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		fresh, err := repos.Bookings.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		fresh.ContractID = &contract.ID
		return repos.Bookings.Update(ctx, fresh)
	})
	if err != nil {
		log.Error("Linking contract failed", "contract_id", contract.ID, "error", err)
		return
	}
	b.ContractID = &contract.ID
	log.Info("Contract created", "contract_id", contract.ID, "contract_number", contract.ContractNumber)
}

func (s *bookingService) notifyStatus(ctx context.Context, actor domain.Actor, b *domain.Booking) {
	msg := fmt.Sprintf("Booking #%d is now %s", b.ID, b.Status)
	if !actor.Is(b.RenterID) {
		s.notifyParty(ctx, b.RenterID, b, "Booking update", msg)
	}
	if !actor.Is(b.OwnerID) {
		s.notifyParty(ctx, b.OwnerID, b, "Booking update", msg)
	}
}

// notifyParty sends an in-app status notification and only logs failures.
func (s *bookingService) notifyParty(ctx context.Context, userID int32, b *domain.Booking, title, message string) {
	if s.notifier == nil {
		return
	}
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		logger.WithBooking(b.ID, b.VehicleID).Warn("Cannot load user for notification", "user_id", userID, "error", err)
		return
	}
	n := domain.Notification{
		Type:      domain.NotificationBookingStatus,
		Title:     title,
		Message:   message,
		VehicleID: b.VehicleID,
		BookingID: b.ID,
		Attributes: map[string]string{
			"status": string(b.Status),
		},
	}
	if err := s.notifier.Notify(ctx, user, domain.ChannelInApp, n); err != nil {
		logger.WithBooking(b.ID, b.VehicleID).Warn("Status notification failed", "user_id", userID, "error", err)
	}
}

func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
