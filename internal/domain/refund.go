package domain

import "time"

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

type RefundRequester string

const (
	RequestedByRenter RefundRequester = "renter"
	RequestedByOwner  RefundRequester = "owner"
	RequestedBySystem RefundRequester = "system"
	RequestedByAdmin  RefundRequester = "admin"
)

type Refund struct {
	ID               int32           `json:"id" db:"id"`
	BookingID        int32           `json:"booking_id" db:"booking_id"`
	Amount           float64         `json:"amount" db:"amount"`
	Percentage       float64         `json:"percentage" db:"percentage"`
	Reason           string          `json:"reason" db:"reason"`
	RequestedBy      RefundRequester `json:"requested_by" db:"requested_by"`
	RequestedByID    int32           `json:"requested_by_id" db:"requested_by_id"`
	Status           RefundStatus    `json:"status" db:"status"`
	RefundID         *string         `json:"refund_id,omitempty" db:"refund_id"`
	IdempotencyKey   string          `json:"-" db:"idempotency_key"`
	LastError        *string         `json:"last_error,omitempty" db:"last_error"`
	EstimatedArrival *time.Time      `json:"estimated_arrival,omitempty" db:"estimated_arrival"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Retryable refunds never reached the gateway successfully.
func (r *Refund) Retryable() bool {
	return r.Status == RefundStatusPending || r.Status == RefundStatusFailed
}

type Deduction struct {
	Reason string  `json:"reason"`
	Amount float64 `json:"amount"`
}

// RefundQuote is the outcome of the cancellation policy for one booking.
type RefundQuote struct {
	RefundAmount     float64     `json:"refund_amount"`
	RefundPercentage float64     `json:"refund_percentage"`
	Deductions       []Deduction `json:"deductions"`
}

// ReleaseSummary reports one run of the expired-hold release.
type ReleaseSummary struct {
	ReleasedCount       int  `json:"released_count"`
	NotifiedCount       int  `json:"notified_count"`
	FailedNotifications int  `json:"failed_notifications"`
	SkippedCount        int  `json:"skipped_count"`
	ErrorCount          int  `json:"error_count"`
	TimedOut            bool `json:"timed_out,omitempty"`
}
