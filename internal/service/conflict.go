package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

// Conflict describes why a vehicle cannot take a candidate interval.
type Conflict struct {
	BookingID int32
	BlockID   int32
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

type conflictChecker struct {
	repos         repository.Repositories
	allowTouching bool
}

func NewConflictChecker(repos repository.Repositories, policy Policy) ConflictChecker {
	return &conflictChecker{repos: repos, allowTouching: policy.SameDayTurnover}
}

func (c *conflictChecker) IsAvailable(ctx context.Context, vehicleID int32, start, end time.Time) (bool, error) {
	if err := validateRange(start, end); err != nil {
		return false, err
	}
	conflicts, err := findConflicts(ctx, c.repos, vehicleID, start, end, c.allowTouching, 0)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// findConflicts lists committed bookings and blocks that overlap the
// candidate on calendar dates. The booking identified by self and its own
// hold are ignored.
func findConflicts(ctx context.Context, repos repository.Repositories, vehicleID int32, start, end time.Time, allowTouching bool, self int32) ([]Conflict, error) {
	var conflicts []Conflict

	bookings, err := repos.Bookings.ListCommittedOverlapping(ctx, vehicleID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if b.ID == self || !b.Status.Committed() {
			continue
		}
		if domain.DatesOverlap(start, end, b.StartDate, b.EndDate, allowTouching) {
			conflicts = append(conflicts, Conflict{BookingID: b.ID, StartDate: b.StartDate, EndDate: b.EndDate})
		}
	}

	blocks, err := repos.Availability.ListOverlapping(ctx, vehicleID, start, end)
	if err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		if blk.IsAvailable {
			continue
		}
		if self != 0 && blk.Reason == domain.HoldReasonFor(self) {
			continue
		}
		if domain.DatesOverlap(start, end, blk.StartDate, blk.EndDate, allowTouching) {
			conflicts = append(conflicts, Conflict{BlockID: blk.ID, StartDate: blk.StartDate, EndDate: blk.EndDate, Reason: blk.Reason})
		}
	}
	return conflicts, nil
}

func unavailable(vehicleID int32, start, end time.Time, conflicts []Conflict) error {
	err := errors.Wrapf(domain.ErrVehicleUnavailable, "vehicle %d between %s and %s",
		vehicleID, utils.FormatDate(start), utils.FormatDate(end))
	return errors.WithDetailf(err, "%d conflicting intervals", len(conflicts))
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.InvalidInput("start and end dates are required")
	}
	if end.Before(start) {
		return domain.InvalidInput("end date %s is before start date %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}
