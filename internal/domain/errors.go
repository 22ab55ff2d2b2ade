package domain

import "github.com/cockroachdb/errors"

// Error taxonomy of the engine. Lower layers mark their errors with one of
// these so callers can branch with errors.Is.
var (
	ErrVehicleUnavailable     = errors.New("vehicle unavailable")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrNotifierDeliveryFailed = errors.New("notifier delivery failed")
	ErrPaymentGateway         = errors.New("payment gateway error")
)

func NotFound(what string, id int32) error {
	return errors.Wrapf(ErrNotFound, "%s %d", what, id)
}

func InvalidInput(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

func InvalidTransition(from, to BookingStatus) error {
	return errors.Wrapf(ErrInvalidStateTransition, "%s -> %s", from, to)
}
