package repository

import (
	"context"
	"time"

	"vehicle-booking-engine/internal/domain"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int32) (*domain.Booking, error)
	Update(ctx context.Context, booking *domain.Booking) error
	// ListCommittedOverlapping returns approved and active bookings of the
	// vehicle whose calendar dates intersect [start, end]. Callers apply the
	// exact overlap rule.
	ListCommittedOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.Booking, error)
	ListCompletedWithoutHold(ctx context.Context, limit int32) ([]domain.Booking, error)
}

type AvailabilityRepository interface {
	ListByVehicle(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error)
	ListOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.AvailabilityBlock, error)
	// FindIdentical returns nil when no block matches the tuple.
	FindIdentical(ctx context.Context, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error)
	Create(ctx context.Context, block *domain.AvailabilityBlock) error
	GetByID(ctx context.Context, id int32) (*domain.AvailabilityBlock, error)
	Delete(ctx context.Context, id int32) (bool, error)
	ListExpiredHolds(ctx context.Context, today time.Time) ([]domain.AvailabilityBlock, error)
	// DeleteExpiredHold only deletes the block if it still carries reason
	// and still ends before today.
	DeleteExpiredHold(ctx context.Context, id int32, reason string, today time.Time) (bool, error)
}

type WaitingQueueRepository interface {
	// FindActive returns nil when the user has no identical active entry.
	FindActive(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error)
	Create(ctx context.Context, entry *domain.WaitingQueueEntry) error
	GetByID(ctx context.Context, id int32) (*domain.WaitingQueueEntry, error)
	Deactivate(ctx context.Context, id int32) (bool, error)
	// ListActiveByVehicle is ordered oldest first.
	ListActiveByVehicle(ctx context.Context, vehicleID int32) ([]domain.WaitingQueueEntry, error)
	ListActiveByUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error)
	MarkNotified(ctx context.Context, id int32) error
	DeactivateMatching(ctx context.Context, vehicleID, userID int32, start, end time.Time) (int64, error)
}

type InspectionRepository interface {
	CreateRenterInspection(ctx context.Context, insp *domain.RenterInspection) error
	GetRenterInspection(ctx context.Context, bookingID int32) (*domain.RenterInspection, error)
	UpdateRenterInspection(ctx context.Context, insp *domain.RenterInspection) error
	CreateOwnerInspection(ctx context.Context, insp *domain.OwnerInspection) error
	GetOwnerInspection(ctx context.Context, bookingID int32) (*domain.OwnerInspection, error)
}

type RefundRepository interface {
	Create(ctx context.Context, refund *domain.Refund) error
	GetByID(ctx context.Context, id int32) (*domain.Refund, error)
	// GetByIdempotencyKey returns nil when the key is unused.
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error)
	Update(ctx context.Context, refund *domain.Refund) error
	ListFailed(ctx context.Context, limit int32) ([]domain.Refund, error)
}

type ContractRepository interface {
	Create(ctx context.Context, contract *domain.Contract) error
	GetByID(ctx context.Context, id int32) (*domain.Contract, error)
	GetByBookingID(ctx context.Context, bookingID int32) (*domain.Contract, error)
	Update(ctx context.Context, contract *domain.Contract) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.User, error)
}

type VehicleRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Vehicle, error)
}

// Repositories bundles every repository bound to the same connection or
// transaction.
type Repositories struct {
	Bookings     BookingRepository
	Availability AvailabilityRepository
	WaitingQueue WaitingQueueRepository
	Inspections  InspectionRepository
	Refunds      RefundRepository
	Contracts    ContractRepository
	Users        UserRepository
	Vehicles     VehicleRepository
}

// TxFunc runs with repositories bound to an open transaction.
type TxFunc func(ctx context.Context, repos Repositories) error

// Transactor runs units of work atomically. WithVehicleLock additionally
// serializes every unit of work touching the same vehicle.
type Transactor interface {
	WithinTx(ctx context.Context, fn TxFunc) error
	WithVehicleLock(ctx context.Context, vehicleID int32, fn TxFunc) error
}
