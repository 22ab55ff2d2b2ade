package domain

import "time"

type WaitingQueueEntry struct {
	ID               int32     `json:"id" db:"id"`
	VehicleID        int32     `json:"vehicle_id" db:"vehicle_id"`
	UserID           int32     `json:"user_id" db:"user_id"`
	DesiredStartDate time.Time `json:"desired_start_date" db:"desired_start_date"`
	DesiredEndDate   time.Time `json:"desired_end_date" db:"desired_end_date"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	NotificationSent bool      `json:"notification_sent" db:"notification_sent"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Wants reports whether the freed range satisfies the entry. Any overlap is
// enough; the freed range need not cover the whole desired range.
func (e *WaitingQueueEntry) Wants(freedStart, freedEnd time.Time) bool {
	return DatesOverlap(e.DesiredStartDate, e.DesiredEndDate, freedStart, freedEnd, false)
}
