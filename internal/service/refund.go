package service

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

const (
	deductionLastMinute = "cancellation inside 2h"
	deductionPolicy     = "cancellation policy"
	deductionServiceFee = "non-refundable service fee"
)

// CalculateRefund applies the tiered cancellation policy to the booking's
// total price as of at.
//
//	less than 2h before start   0%
//	2h to 24h                  50%
//	24h to 48h                 75%
//	48h or more               100%
//
// Under 24h the service fee is also withheld, never more than the reduced
// refund itself. Rounding happens once, after all arithmetic.
func CalculateRefund(b *domain.Booking, at time.Time) domain.RefundQuote {
	until := b.UntilStart(at)

	var pct int64
	switch {
	case until < 2*time.Hour:
		pct = 0
	case until < 24*time.Hour:
		pct = 50
	case until < 48*time.Hour:
		pct = 75
	default:
		pct = 100
	}

	total := utils.Rat(b.TotalPrice)
	refund := utils.Percent(total, utils.RatInt(pct))
	deductions := make([]domain.Deduction, 0, 2)

	if pct < 100 {
		reason := deductionPolicy
		if pct == 0 {
			reason = deductionLastMinute
		}
		withheld := new(big.Rat).Sub(total, refund)
		deductions = append(deductions, domain.Deduction{Reason: reason, Amount: utils.Round2(withheld)})
	}

	if until < 24*time.Hour && b.ServiceFee > 0 {
		fee := utils.MinRat(utils.Rat(b.ServiceFee), refund)
		if fee.Sign() > 0 {
			refund = new(big.Rat).Sub(refund, fee)
			deductions = append(deductions, domain.Deduction{Reason: deductionServiceFee, Amount: utils.Round2(fee)})
		}
	}

	effective := utils.RatInt(pct)
	if total.Sign() > 0 {
		effective = new(big.Rat).Quo(new(big.Rat).Mul(refund, utils.RatInt(100)), total)
	}

	return domain.RefundQuote{
		RefundAmount:     utils.Round2(refund),
		RefundPercentage: utils.Round2(effective),
		Deductions:       deductions,
	}
}

type refundService struct {
	tx       repository.Transactor
	repos    repository.Repositories
	gateway  PaymentGateway
	notifier Notifier
	clock    utils.Clock
}

func NewRefundService(tx repository.Transactor, repos repository.Repositories, gateway PaymentGateway, notifier Notifier, clock utils.Clock) RefundService {
	return &refundService{tx: tx, repos: repos, gateway: gateway, notifier: notifier, clock: clock}
}

// requester maps the actor who ended the booking to the refund policy.
// Only a renter's own cancellation goes through the calculator.
func requester(b *domain.Booking, actor domain.Actor) (domain.RefundRequester, int32) {
	switch {
	case actor.System:
		return domain.RequestedBySystem, 0
	case actor.IsAdmin:
		return domain.RequestedByAdmin, actor.UserID
	case actor.Is(b.OwnerID):
		return domain.RequestedByOwner, actor.UserID
	case actor.Is(b.RenterID):
		return domain.RequestedByRenter, actor.UserID
	}
	return domain.RequestedBySystem, actor.UserID
}

func refundKey(b *domain.Booking) string {
	return fmt.Sprintf("booking-%d-%s", b.ID, b.Status)
}

func refundable(b *domain.Booking) bool {
	return b.PaymentStatus == domain.PaymentStatusPaid && b.PaymentReference != nil && *b.PaymentReference != ""
}

func (s *refundService) RefundCancellation(ctx context.Context, b *domain.Booking, actor domain.Actor, reason string) (*domain.Refund, error) {
	by, byID := requester(b, actor)

	amount, pct := b.TotalPrice, 100.0
	if by == domain.RequestedByRenter && b.Status == domain.BookingStatusCancelled {
		quote := CalculateRefund(b, s.clock.Now())
		amount, pct = quote.RefundAmount, quote.RefundPercentage
	}
	if reason == "" {
		reason = fmt.Sprintf("booking %s by %s", b.Status, by)
	}
	return s.issue(ctx, b, &domain.Refund{
		BookingID:     b.ID,
		Amount:        utils.RoundAmount(amount),
		Percentage:    pct,
		Reason:        reason,
		RequestedBy:   by,
		RequestedByID: byID,
	})
}

func (s *refundService) RefundAmount(ctx context.Context, b *domain.Booking, actor domain.Actor, amount float64, reason string) (*domain.Refund, error) {
	if amount < 0 || amount > b.TotalPrice+0.005 {
		return nil, domain.InvalidInput("refund amount %.2f outside [0, %.2f]", amount, b.TotalPrice)
	}
	by, byID := requester(b, actor)

	pct := 100.0
	if b.TotalPrice > 0 {
		pct = utils.Round2(new(big.Rat).Quo(
			new(big.Rat).Mul(utils.Rat(amount), utils.RatInt(100)), utils.Rat(b.TotalPrice)))
	}
	return s.issue(ctx, b, &domain.Refund{
		BookingID:     b.ID,
		Amount:        utils.RoundAmount(amount),
		Percentage:    pct,
		Reason:        reason,
		RequestedBy:   by,
		RequestedByID: byID,
	})
}

// issue records the refund once per cancellation event and sends it to the
// gateway. A refund that already exists for the event is returned as is;
// failed ones are only retried through Retry.
func (s *refundService) issue(ctx context.Context, b *domain.Booking, rf *domain.Refund) (*domain.Refund, error) {
	log := logger.WithBooking(b.ID, b.VehicleID)

	if !refundable(b) || rf.Amount <= 0 {
		log.Info("Nothing to refund", "payment_status", b.PaymentStatus, "amount", rf.Amount)
		return nil, nil
	}
	rf.IdempotencyKey = refundKey(b)
	rf.Status = domain.RefundStatusPending

	var existing *domain.Refund
	err := s.tx.WithVehicleLock(ctx, b.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		existing, err = repos.Refunds.GetByIdempotencyKey(ctx, rf.IdempotencyKey)
		if err != nil || existing != nil {
			return err
		}
		return repos.Refunds.Create(ctx, rf)
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("Refund already recorded for this cancellation", "refund_id", existing.ID, "status", existing.Status)
		return existing, nil
	}
	return s.process(ctx, b, rf)
}

func (s *refundService) process(ctx context.Context, b *domain.Booking, rf *domain.Refund) (*domain.Refund, error) {
	log := logger.WithBooking(b.ID, b.VehicleID).With("refund_id", rf.ID)

	if b.PaymentReference == nil {
		return nil, domain.InvalidInput("booking %d has no payment reference", b.ID)
	}

	logger.ExternalServiceCall("PaymentGateway", "CreateRefund", "bookingID", b.ID, "amount", rf.Amount)
	res, gwErr := s.gateway.CreateRefund(ctx, RefundRequest{
		PaymentReference: *b.PaymentReference,
		Amount:           rf.Amount,
		Reason:           rf.Reason,
		IdempotencyKey:   rf.IdempotencyKey,
	})
	logger.ExternalServiceResult("PaymentGateway", "CreateRefund", gwErr, "bookingID", b.ID)

	if gwErr != nil {
		msg := gwErr.Error()
		rf.Status = domain.RefundStatusFailed
		rf.LastError = &msg
		if err := s.repos.Refunds.Update(ctx, rf); err != nil {
			log.Error("Recording failed refund", "error", err)
		}
		return rf, errors.Mark(errors.Wrapf(gwErr, "refund %d", rf.ID), domain.ErrPaymentGateway)
	}

	now := s.clock.Now()
	rf.Status = domain.RefundStatusProcessed
	rf.RefundID = &res.RefundID
	rf.EstimatedArrival = res.EstimatedArrival
	rf.ProcessedAt = &now
	rf.LastError = nil

	err := s.tx.WithVehicleLock(ctx, b.VehicleID, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Refunds.Update(ctx, rf); err != nil {
			return err
		}
		booking, err := repos.Bookings.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		booking.PaymentStatus = domain.PaymentStatusRefunded
		if booking.Status.CanTransitionTo(domain.BookingStatusRefunded) {
			booking.Status = domain.BookingStatusRefunded
		}
		return repos.Bookings.Update(ctx, booking)
	})
	if err != nil {
		// The money moved; the record will be fixed by a retry, which the
		// gateway dedupes by idempotency key.
		log.Error("Refund processed but not recorded", "gateway_refund_id", res.RefundID, "error", err)
		return rf, err
	}
	log.Info("Refund processed", "amount", rf.Amount, "gateway_refund_id", res.RefundID)

	s.notifyRefund(ctx, b, rf)
	return rf, nil
}

func (s *refundService) notifyRefund(ctx context.Context, b *domain.Booking, rf *domain.Refund) {
	if s.notifier == nil {
		return
	}
	n := domain.Notification{
		Type:      domain.NotificationRefundProcessed,
		Title:     "Refund processed",
		Message:   fmt.Sprintf("A refund of %.2f for booking #%d has been processed", rf.Amount, b.ID),
		VehicleID: b.VehicleID,
		BookingID: b.ID,
		Attributes: map[string]string{
			"amount":    fmt.Sprintf("%.2f", rf.Amount),
			"refund_id": fmt.Sprintf("%d", rf.ID),
		},
	}
	if rf.EstimatedArrival != nil {
		n.Attributes["estimated_arrival"] = utils.FormatDate(*rf.EstimatedArrival)
	}
	for _, userID := range []int32{b.RenterID, b.OwnerID} {
		user, err := s.repos.Users.GetByID(ctx, userID)
		if err != nil {
			logger.Warn("Cannot load user for refund notification", "user_id", userID, "error", err)
			continue
		}
		if err := notifyUser(ctx, s.notifier, user, n); err != nil {
			logger.Warn("Refund notification failed", "user_id", userID, "error", err)
		}
	}
}

func (s *refundService) Retry(ctx context.Context, refundID int32) (*domain.Refund, error) {
	rf, err := s.repos.Refunds.GetByID(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !rf.Retryable() {
		return nil, domain.InvalidInput("refund %d is %s", rf.ID, rf.Status)
	}
	b, err := s.repos.Bookings.GetByID(ctx, rf.BookingID)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, b, rf)
}

func (s *refundService) RetryFailed(ctx context.Context, limit int32) (retried, failed int, err error) {
	refunds, err := s.repos.Refunds.ListFailed(ctx, limit)
	if err != nil {
		return 0, 0, err
	}
	for i := range refunds {
		if err := ctx.Err(); err != nil {
			return retried, failed, err
		}
		if _, err := s.Retry(ctx, refunds[i].ID); err != nil {
			logger.Warn("Refund retry failed", "refund_id", refunds[i].ID, "error", err)
			failed++
			continue
		}
		retried++
	}
	return retried, failed, nil
}
