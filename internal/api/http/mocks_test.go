package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/service"
)

type MockBookingService struct {
	mock.Mock
	service.BookingService
}

func (m *MockBookingService) CreateBooking(ctx context.Context, req service.CreateBookingRequest) (*domain.Booking, error) {
	args := m.Called(ctx, req)
	if b := args.Get(0); b != nil {
		return b.(*domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, actor domain.Actor, id int32) (*domain.Booking, error) {
	args := m.Called(ctx, actor, id)
	if b := args.Get(0); b != nil {
		return b.(*domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookingService) UpdateStatus(ctx context.Context, actor domain.Actor, id int32, status domain.BookingStatus, reason string) (*domain.Booking, error) {
	args := m.Called(ctx, actor, id, status, reason)
	if b := args.Get(0); b != nil {
		return b.(*domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBookingService) ContractSigned(ctx context.Context, id int32) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingService) RefundQuote(ctx context.Context, actor domain.Actor, id int32) (*domain.RefundQuote, error) {
	args := m.Called(ctx, actor, id)
	if q := args.Get(0); q != nil {
		return q.(*domain.RefundQuote), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInspectionService struct {
	mock.Mock
}

func (m *MockInspectionService) RecordRenterInspection(ctx context.Context, actor domain.Actor, insp *domain.RenterInspection) (*domain.RenterInspection, error) {
	args := m.Called(ctx, actor, insp)
	if i := args.Get(0); i != nil {
		return i.(*domain.RenterInspection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInspectionService) DecideRenterInspection(ctx context.Context, actor domain.Actor, bookingID int32, decision service.RenterDecision) (*domain.RenterInspection, error) {
	args := m.Called(ctx, actor, bookingID, decision)
	if i := args.Get(0); i != nil {
		return i.(*domain.RenterInspection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInspectionService) RecordOwnerInspection(ctx context.Context, actor domain.Actor, insp *domain.OwnerInspection) (*domain.OwnerInspection, error) {
	args := m.Called(ctx, actor, insp)
	if i := args.Get(0); i != nil {
		return i.(*domain.OwnerInspection), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockQueueService struct {
	mock.Mock
	service.WaitingQueueService
}

func (m *MockQueueService) Join(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error) {
	args := m.Called(ctx, vehicleID, userID, start, end)
	if e := args.Get(0); e != nil {
		return e.(*domain.WaitingQueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockQueueService) Leave(ctx context.Context, actor domain.Actor, entryID int32) error {
	return m.Called(ctx, actor, entryID).Error(0)
}

func (m *MockQueueService) ListForUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.WaitingQueueEntry), args.Error(1)
}

type MockAvailabilityService struct {
	mock.Mock
	service.AvailabilityService
}

func (m *MockAvailabilityService) Blocks(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error) {
	args := m.Called(ctx, vehicleID)
	return args.Get(0).([]domain.AvailabilityBlock), args.Error(1)
}

func (m *MockAvailabilityService) AddManualBlock(ctx context.Context, actor domain.Actor, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error) {
	args := m.Called(ctx, actor, vehicleID, start, end, reason)
	if b := args.Get(0); b != nil {
		return b.(*domain.AvailabilityBlock), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAvailabilityService) RemoveManualBlock(ctx context.Context, actor domain.Actor, vehicleID, blockID int32) error {
	return m.Called(ctx, actor, vehicleID, blockID).Error(0)
}

type MockRefundService struct {
	mock.Mock
	service.RefundService
}

func (m *MockRefundService) Retry(ctx context.Context, id int32) (*domain.Refund, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*domain.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockReleaser struct {
	mock.Mock
}

func (m *MockReleaser) ReleaseNow(ctx context.Context) (*domain.ReleaseSummary, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.(*domain.ReleaseSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockConflictChecker struct {
	mock.Mock
}

func (m *MockConflictChecker) IsAvailable(ctx context.Context, vehicleID int32, start, end time.Time) (bool, error) {
	args := m.Called(ctx, vehicleID, start, end)
	return args.Bool(0), args.Error(1)
}
