package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/mock"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/utils"
	"vehicle-booking-engine/internal/worker"
)

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, req RefundRequest) (*GatewayRefund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GatewayRefund), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, user *domain.User, channel domain.Channel, n domain.Notification) error {
	args := m.Called(ctx, user, channel, n)
	return args.Error(0)
}

// notifiedUsers lists the users that got a notification of type t, in call
// order, once per channel.
func (m *MockNotifier) notifiedUsers(t domain.NotificationType) []int32 {
	var ids []int32
	for _, call := range m.Calls {
		if call.Method != "Notify" {
			continue
		}
		if call.Arguments.Get(3).(domain.Notification).Type == t {
			ids = append(ids, call.Arguments.Get(1).(*domain.User).ID)
		}
	}
	return ids
}

// recordingNotifier records delivery order without testify bookkeeping,
// for tests that care about sequencing.
type recordingNotifier struct {
	mu    sync.Mutex
	users []int32
	fail  map[int32]bool
	delay time.Duration
}

func (r *recordingNotifier) Notify(ctx context.Context, user *domain.User, channel domain.Channel, n domain.Notification) error {
	if r.fail[user.ID] {
		return errors.New("mailbox unavailable")
	}
	if channel != domain.ChannelInApp {
		return nil
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, user.ID)
	return nil
}

func (r *recordingNotifier) delivered() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.users...)
}

const (
	ownerID  int32 = 1
	renterID int32 = 2
	otherID  int32 = 3
	adminID  int32 = 9

	vehicleID  int32 = 10
	unlistedID int32 = 11
)

var (
	owner  = domain.Actor{UserID: ownerID}
	renter = domain.Actor{UserID: renterID}
	other  = domain.Actor{UserID: otherID}
	admin  = domain.Actor{UserID: adminID, IsAdmin: true}
)

// fixture wires every service over one memStore, the way cmd/server does.
type fixture struct {
	store        *memStore
	clock        *utils.MockClock
	gateway      *MockPaymentGateway
	notifier     *MockNotifier
	contracts    ContractService
	queue        WaitingQueueService
	refunds      RefundService
	bookings     BookingService
	inspections  InspectionService
	release      ReleaseService
	availability AvailabilityService
	checker      ConflictChecker
}

func defaultPolicy() Policy {
	return Policy{HoldOnApproval: true}
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()

	store := newMemStore()
	store.addUser(domain.User{ID: ownerID, Name: "Owner", Email: "owner@example.com"})
	store.addUser(domain.User{ID: renterID, Name: "Renter", Email: "renter@example.com"})
	store.addUser(domain.User{ID: otherID, Name: "Other", Email: "other@example.com"})
	store.addUser(domain.User{ID: adminID, Name: "Admin", Email: "admin@example.com", Roles: []string{"admin"}})
	store.addVehicle(domain.Vehicle{ID: vehicleID, OwnerID: ownerID, Brand: "Fiat", Model: "Uno", DailyPrice: 100, IsAvailable: true})
	store.addVehicle(domain.Vehicle{ID: unlistedID, OwnerID: ownerID, Brand: "VW", Model: "Gol", IsAvailable: false})

	f := &fixture{
		store:    store,
		clock:    utils.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		gateway:  new(MockPaymentGateway),
		notifier: new(MockNotifier),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	repos := store.repos()
	f.contracts = NewContractRegistry(repos, f.clock)
	f.queue = NewWaitingQueueService(repos, f.notifier, worker.NewPool(4, time.Second))
	f.refunds = NewRefundService(store, repos, f.gateway, f.notifier, f.clock)
	f.bookings = NewBookingService(store, repos, f.contracts, f.refunds, f.queue, f.notifier, f.clock, policy)
	f.inspections = NewInspectionService(store, repos, f.bookings, f.clock)
	f.release = NewReleaseService(store, repos, f.queue, f.clock, policy)
	f.availability = NewAvailabilityService(store, repos, f.queue, policy)
	f.checker = NewConflictChecker(repos, policy)
	return f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func bookingRequest(start, end time.Time) CreateBookingRequest {
	return CreateBookingRequest{
		VehicleID:        vehicleID,
		RenterID:         renterID,
		StartDate:        start,
		EndDate:          end,
		TotalPrice:       1000,
		ServiceFee:       100,
		SecurityDeposit:  500,
		PaymentStatus:    domain.PaymentStatusPaid,
		PaymentReference: strPtr("pay_123"),
	}
}

// book creates a booking and drives it to status through the normal
// transitions.
func (f *fixture) book(t *testing.T, req CreateBookingRequest, status domain.BookingStatus) *domain.Booking {
	t.Helper()
	ctx := context.Background()

	b, err := f.bookings.CreateBooking(ctx, req)
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	path := map[domain.BookingStatus][]domain.BookingStatus{
		domain.BookingStatusPending:   nil,
		domain.BookingStatusApproved:  {domain.BookingStatusApproved},
		domain.BookingStatusActive:    {domain.BookingStatusApproved, domain.BookingStatusActive},
		domain.BookingStatusCompleted: {domain.BookingStatusApproved, domain.BookingStatusActive, domain.BookingStatusCompleted},
	}[status]
	for _, next := range path {
		if b, err = f.bookings.UpdateStatus(ctx, owner, b.ID, next, ""); err != nil {
			t.Fatalf("move booking to %s: %v", next, err)
		}
	}
	return b
}
