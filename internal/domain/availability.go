package domain

import (
	"strconv"
	"strings"
	"time"
)

const HoldReasonPrefix = "Reservado - Booking #"

// AvailabilityBlock marks a vehicle as not bookable for a range of calendar
// dates. StartDate and EndDate are both inclusive and carry no time of day.
type AvailabilityBlock struct {
	ID          int32     `json:"id" db:"id"`
	VehicleID   int32     `json:"vehicle_id" db:"vehicle_id"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	IsAvailable bool      `json:"is_available" db:"is_available"`
	Reason      string    `json:"reason" db:"reason"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IsHold reports whether the block was generated for a booking rather than
// entered manually by the owner.
func (b *AvailabilityBlock) IsHold() bool {
	return IsHoldReason(b.Reason)
}

func IsHoldReason(reason string) bool {
	_, ok := HoldBookingID(reason)
	return ok
}

// HoldBookingID extracts the booking id from a hold reason.
func HoldBookingID(reason string) (int32, bool) {
	rest, ok := strings.CutPrefix(reason, HoldReasonPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overlaps is the interval predicate shared by the conflict checker and the
// waiting queue. Both intervals are closed. The candidate [aStart, aEnd]
// conflicts with [bStart, bEnd] when its start falls inside b, its end falls
// inside b, or b lies entirely inside it. With allowTouching, intervals that
// only share an endpoint do not overlap, whatever their length; identical
// intervals always do.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time, allowTouching bool) bool {
	if allowTouching {
		if aStart.Equal(bStart) && aEnd.Equal(bEnd) {
			return true
		}
		return aStart.Before(bEnd) && bStart.Before(aEnd)
	}
	startInside := !aStart.Before(bStart) && !aStart.After(bEnd)
	endInside := !aEnd.Before(bStart) && !aEnd.After(bEnd)
	contains := !bStart.Before(aStart) && !bEnd.After(aEnd)
	return startInside || endInside || contains
}

// DatesOverlap applies Overlaps to calendar dates.
func DatesOverlap(aStart, aEnd, bStart, bEnd time.Time, allowTouching bool) bool {
	return Overlaps(DateOf(aStart), DateOf(aEnd), DateOf(bStart), DateOf(bEnd), allowTouching)
}
