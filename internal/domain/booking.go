package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending            BookingStatus = "pending"
	BookingStatusApproved           BookingStatus = "approved"
	BookingStatusAwaitingInspection BookingStatus = "aguardando_vistoria"
	BookingStatusActive             BookingStatus = "active"
	BookingStatusCompleted          BookingStatus = "completed"
	BookingStatusRejected           BookingStatus = "rejected"
	BookingStatusCancelled          BookingStatus = "cancelled"
	BookingStatusRefunded           BookingStatus = "refunded"
)

// bookingTransitions lists every status reachable in one step.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:            {BookingStatusApproved, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusApproved:           {BookingStatusAwaitingInspection, BookingStatusActive, BookingStatusCancelled},
	BookingStatusAwaitingInspection: {BookingStatusActive, BookingStatusCancelled},
	BookingStatusActive:             {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCancelled:          {BookingStatusRefunded},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusApproved, BookingStatusAwaitingInspection,
		BookingStatusActive, BookingStatusCompleted, BookingStatusRejected,
		BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is directly reachable from s.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, candidate := range bookingTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Committed statuses are the only ones that block other bookings.
func (s BookingStatus) Committed() bool {
	return s == BookingStatusApproved || s == BookingStatusActive
}

// HoldForbidden reports statuses during which the booking must not own a hold.
func (s BookingStatus) HoldForbidden() bool {
	switch s {
	case BookingStatusPending, BookingStatusRejected, BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

type InspectionStatus string

const (
	InspectionStatusNotRequired InspectionStatus = "not_required"
	InspectionStatusPending     InspectionStatus = "pending"
	InspectionStatusCompleted   InspectionStatus = "completed"
)

type Booking struct {
	ID                  int32            `json:"id" db:"id"`
	VehicleID           int32            `json:"vehicle_id" db:"vehicle_id"`
	RenterID            int32            `json:"renter_id" db:"renter_id"`
	OwnerID             int32            `json:"owner_id" db:"owner_id"`
	StartDate           time.Time        `json:"start_date" db:"start_date"`
	EndDate             time.Time        `json:"end_date" db:"end_date"`
	Status              BookingStatus    `json:"status" db:"status"`
	TotalPrice          float64          `json:"total_price" db:"total_price"`
	ServiceFee          float64          `json:"service_fee" db:"service_fee"`
	InsuranceFee        float64          `json:"insurance_fee" db:"insurance_fee"`
	SecurityDeposit     float64          `json:"security_deposit" db:"security_deposit"`
	PaymentStatus       PaymentStatus    `json:"payment_status" db:"payment_status"`
	PaymentReference    *string          `json:"payment_reference,omitempty" db:"payment_reference"`
	InspectionStatus    InspectionStatus `json:"inspection_status" db:"inspection_status"`
	AvailabilityBlockID *int32           `json:"availability_block_id,omitempty" db:"availability_block_id"`
	ContractID          *int32           `json:"contract_id,omitempty" db:"contract_id"`
	HoldReleasedAt      *time.Time       `json:"hold_released_at,omitempty" db:"hold_released_at"`
	Notes               string           `json:"notes" db:"notes"`
	CreatedAt           time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at" db:"updated_at"`
}

// HoldReason is the ledger reason written for the booking's calendar hold.
func (b *Booking) HoldReason() string {
	return HoldReasonFor(b.ID)
}

func HoldReasonFor(bookingID int32) string {
	return fmt.Sprintf("%s%d", HoldReasonPrefix, bookingID)
}

func (b *Booking) HasHold() bool {
	return b.AvailabilityBlockID != nil
}

// UntilStart is negative once the booking has started.
func (b *Booking) UntilStart(at time.Time) time.Duration {
	return b.StartDate.Sub(at)
}
