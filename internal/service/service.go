package service

import (
	"context"
	"time"

	"vehicle-booking-engine/internal/domain"
)

type AvailabilityService interface {
	Blocks(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error)
	AddBlock(ctx context.Context, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error)
	RemoveBlock(ctx context.Context, id int32) (bool, error)

	// Owner facing calendar management
	AddManualBlock(ctx context.Context, actor domain.Actor, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error)
	RemoveManualBlock(ctx context.Context, actor domain.Actor, vehicleID, blockID int32) error
}

type ConflictChecker interface {
	IsAvailable(ctx context.Context, vehicleID int32, start, end time.Time) (bool, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error)
	GetBooking(ctx context.Context, actor domain.Actor, id int32) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, bookingID int32, status domain.BookingStatus, reason string) (*domain.Booking, error)
	// CancelWithRefund cancels the booking and refunds a fixed amount
	// instead of applying the cancellation policy.
	CancelWithRefund(ctx context.Context, actor domain.Actor, bookingID int32, amount float64, reason string) (*domain.Booking, error)
	CheckAndBlockCompletedBooking(ctx context.Context, bookingID int32) (bool, error)
	ContractSigned(ctx context.Context, bookingID int32) (bool, error)
	ReconcileCompletedHolds(ctx context.Context, limit int32) (int, error)
	RefundQuote(ctx context.Context, actor domain.Actor, bookingID int32) (*domain.RefundQuote, error)
}

type InspectionService interface {
	RecordRenterInspection(ctx context.Context, actor domain.Actor, insp *domain.RenterInspection) (*domain.RenterInspection, error)
	DecideRenterInspection(ctx context.Context, actor domain.Actor, bookingID int32, decision RenterDecision) (*domain.RenterInspection, error)
	RecordOwnerInspection(ctx context.Context, actor domain.Actor, insp *domain.OwnerInspection) (*domain.OwnerInspection, error)
}

type RefundService interface {
	// RefundCancellation refunds a cancelled or rejected booking according
	// to who ended it. It returns nil when there is nothing to refund.
	RefundCancellation(ctx context.Context, booking *domain.Booking, actor domain.Actor, reason string) (*domain.Refund, error)
	RefundAmount(ctx context.Context, booking *domain.Booking, actor domain.Actor, amount float64, reason string) (*domain.Refund, error)
	Retry(ctx context.Context, refundID int32) (*domain.Refund, error)
	RetryFailed(ctx context.Context, limit int32) (retried, failed int, err error)
}

type WaitingQueueService interface {
	Join(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error)
	Leave(ctx context.Context, actor domain.Actor, entryID int32) error
	ListForUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error)
	Replay(ctx context.Context, vehicleID int32, freedStart, freedEnd time.Time) (*ReplayResult, error)
}

type ReleaseService interface {
	ReleaseExpired(ctx context.Context) (*domain.ReleaseSummary, error)
}

// Collaborators

// RefundRequest is what the payment gateway needs to return money.
type RefundRequest struct {
	PaymentReference string
	Amount           float64
	Reason           string
	IdempotencyKey   string
}

type GatewayRefund struct {
	RefundID         string
	EstimatedArrival *time.Time
}

type PaymentGateway interface {
	CreateRefund(ctx context.Context, req RefundRequest) (*GatewayRefund, error)
}

// Notifier delivers one notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, user *domain.User, channel domain.Channel, n domain.Notification) error
}

type ContractService interface {
	CreateContract(ctx context.Context, booking *domain.Booking) (*domain.Contract, error)
	IsSigned(ctx context.Context, contractID int32) (bool, error)
	// MarkSigned records the signature callback for the booking's contract.
	MarkSigned(ctx context.Context, bookingID int32) (*domain.Contract, error)
}

// Requests and results

type CreateBookingRequest struct {
	VehicleID        int32
	RenterID         int32
	StartDate        time.Time
	EndDate          time.Time
	TotalPrice       float64
	ServiceFee       float64
	InsuranceFee     float64
	SecurityDeposit  float64
	PaymentStatus    domain.PaymentStatus
	PaymentReference *string
	Notes            string
}

type RenterDecision struct {
	Approve         bool
	RejectionReason string
	// RefundAmount defaults to the booking total when nil.
	RefundAmount *float64
	// Correction lets an admin overwrite an existing decision.
	Correction bool
}

// ReplayResult reports one waiting-queue replay. Initiated lists entry ids in
// the order their notifications started.
type ReplayResult struct {
	Matched   int     `json:"matched"`
	Notified  int     `json:"notified"`
	Failed    int     `json:"failed"`
	Initiated []int32 `json:"initiated"`
}

// Policy holds the configurable business rules.
type Policy struct {
	SameDayTurnover        bool
	HoldOnApproval         bool
	AutoCreateContract     bool
	RequireOwnerInspection bool
}
