package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres store. Every method
// takes the store mutex; WithVehicleLock adds a per-vehicle mutex so tests
// see the same serialization as production.
type memStore struct {
	mu      sync.Mutex
	nextID  int32
	seq     int
	epoch   time.Time
	vlocks  map[int32]*sync.Mutex
	lockMu  sync.Mutex
	failOn  map[string]error
	creates int

	bookings   map[int32]domain.Booking
	blocks     map[int32]domain.AvailabilityBlock
	entries    map[int32]domain.WaitingQueueEntry
	renterInsp map[int32]domain.RenterInspection
	ownerInsp  map[int32]domain.OwnerInspection
	refunds    map[int32]domain.Refund
	contracts  map[int32]domain.Contract
	users      map[int32]domain.User
	vehicles   map[int32]domain.Vehicle
}

func newMemStore() *memStore {
	return &memStore{
		epoch:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		vlocks:     map[int32]*sync.Mutex{},
		failOn:     map[string]error{},
		bookings:   map[int32]domain.Booking{},
		blocks:     map[int32]domain.AvailabilityBlock{},
		entries:    map[int32]domain.WaitingQueueEntry{},
		renterInsp: map[int32]domain.RenterInspection{},
		ownerInsp:  map[int32]domain.OwnerInspection{},
		refunds:    map[int32]domain.Refund{},
		contracts:  map[int32]domain.Contract{},
		users:      map[int32]domain.User{},
		vehicles:   map[int32]domain.Vehicle{},
	}
}

func (m *memStore) id() int32 {
	m.nextID++
	return m.nextID
}

// stamp returns strictly increasing creation times.
func (m *memStore) stamp() time.Time {
	m.seq++
	return m.epoch.Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) fail(op string) error {
	return m.failOn[op]
}

func (m *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Bookings:     (*memBookings)(m),
		Availability: (*memAvailability)(m),
		WaitingQueue: (*memQueue)(m),
		Inspections:  (*memInspections)(m),
		Refunds:      (*memRefunds)(m),
		Contracts:    (*memContracts)(m),
		Users:        (*memUsers)(m),
		Vehicles:     (*memVehicles)(m),
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return fn(ctx, m.repos())
}

func (m *memStore) WithVehicleLock(ctx context.Context, vehicleID int32, fn repository.TxFunc) error {
	m.lockMu.Lock()
	l, ok := m.vlocks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		m.vlocks[vehicleID] = l
	}
	m.lockMu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn(ctx, m.repos())
}

// Seeding helpers, used directly by tests.

func (m *memStore) addUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) addVehicle(v domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
}

func (m *memStore) booking(id int32) domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

func (m *memStore) putBooking(b domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *memStore) allBlocks(vehicleID int32) []domain.AvailabilityBlock {
	blocks, _ := (*memAvailability)(m).ListByVehicle(context.Background(), vehicleID)
	return blocks
}

func (m *memStore) entry(id int32) domain.WaitingQueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id]
}

func (m *memStore) refundsOf(bookingID int32) []domain.Refund {
	return (*memRefunds)(m).listByBooking(bookingID)
}

// Bookings

type memBookings memStore

func (r *memBookings) Create(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := (*memStore)(r).fail("bookings.Create"); err != nil {
		return err
	}
	r.creates++
	b.ID = (*memStore)(r).id()
	b.CreatedAt = (*memStore)(r).stamp()
	b.UpdatedAt = b.CreatedAt
	r.bookings[b.ID] = *b
	return nil
}

func (r *memBookings) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.NotFound("booking", id)
	}
	return &b, nil
}

func (r *memBookings) Update(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[b.ID]; !ok {
		return domain.NotFound("booking", b.ID)
	}
	r.bookings[b.ID] = *b
	return nil
}

func (r *memBookings) ListCommittedOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.VehicleID == vehicleID && b.Status.Committed() && domain.DatesOverlap(b.StartDate, b.EndDate, start, end, false) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memBookings) ListCompletedWithoutHold(ctx context.Context, limit int32) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Booking
	for _, b := range r.bookings {
		if b.Status == domain.BookingStatusCompleted && b.AvailabilityBlockID == nil && b.HoldReleasedAt == nil && b.ContractID != nil {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

// Availability

type memAvailability memStore

func (r *memAvailability) sorted(keep func(domain.AvailabilityBlock) bool) []domain.AvailabilityBlock {
	var out []domain.AvailabilityBlock
	for _, b := range r.blocks {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memAvailability) ListByVehicle(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b domain.AvailabilityBlock) bool { return b.VehicleID == vehicleID }), nil
}

func (r *memAvailability) ListOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b domain.AvailabilityBlock) bool {
		return b.VehicleID == vehicleID && domain.DatesOverlap(b.StartDate, b.EndDate, start, end, false)
	}), nil
}

func (r *memAvailability) FindIdentical(ctx context.Context, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blocks {
		if b.VehicleID == vehicleID && b.Reason == reason &&
			domain.DateOf(b.StartDate).Equal(domain.DateOf(start)) && domain.DateOf(b.EndDate).Equal(domain.DateOf(end)) {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *memAvailability) Create(ctx context.Context, b *domain.AvailabilityBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := (*memStore)(r).fail("availability.Create"); err != nil {
		return err
	}
	b.ID = (*memStore)(r).id()
	b.CreatedAt = (*memStore)(r).stamp()
	r.blocks[b.ID] = *b
	return nil
}

func (r *memAvailability) GetByID(ctx context.Context, id int32) (*domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok {
		return nil, domain.NotFound("availability block", id)
	}
	return &b, nil
}

func (r *memAvailability) Delete(ctx context.Context, id int32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blocks[id]
	delete(r.blocks, id)
	return ok, nil
}

func (r *memAvailability) ListExpiredHolds(ctx context.Context, today time.Time) ([]domain.AvailabilityBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(b domain.AvailabilityBlock) bool {
		return !b.IsAvailable && b.IsHold() && domain.DateOf(b.EndDate).Before(today)
	}), nil
}

func (r *memAvailability) DeleteExpiredHold(ctx context.Context, id int32, reason string, today time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[id]
	if !ok || b.Reason != reason || b.IsAvailable || !domain.DateOf(b.EndDate).Before(today) {
		return false, nil
	}
	delete(r.blocks, id)
	return true, nil
}

// Waiting queue

type memQueue memStore

func (r *memQueue) FindActive(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.IsActive && e.VehicleID == vehicleID && e.UserID == userID &&
			e.DesiredStartDate.Equal(start) && e.DesiredEndDate.Equal(end) {
			return &e, nil
		}
	}
	return nil, nil
}

func (r *memQueue) Create(ctx context.Context, e *domain.WaitingQueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = (*memStore)(r).id()
	e.CreatedAt = (*memStore)(r).stamp()
	r.entries[e.ID] = *e
	return nil
}

func (r *memQueue) GetByID(ctx context.Context, id int32) (*domain.WaitingQueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, domain.NotFound("waiting queue entry", id)
	}
	return &e, nil
}

func (r *memQueue) Deactivate(ctx context.Context, id int32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || !e.IsActive {
		return false, nil
	}
	e.IsActive = false
	r.entries[id] = e
	return true, nil
}

func (r *memQueue) list(keep func(domain.WaitingQueueEntry) bool) []domain.WaitingQueueEntry {
	var out []domain.WaitingQueueEntry
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memQueue) ListActiveByVehicle(ctx context.Context, vehicleID int32) ([]domain.WaitingQueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(e domain.WaitingQueueEntry) bool { return e.IsActive && e.VehicleID == vehicleID }), nil
}

func (r *memQueue) ListActiveByUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(e domain.WaitingQueueEntry) bool { return e.IsActive && e.UserID == userID }), nil
}

func (r *memQueue) MarkNotified(ctx context.Context, id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return domain.NotFound("waiting queue entry", id)
	}
	e.NotificationSent = true
	r.entries[id] = e
	return nil
}

func (r *memQueue) DeactivateMatching(ctx context.Context, vehicleID, userID int32, start, end time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, e := range r.entries {
		if e.IsActive && e.VehicleID == vehicleID && e.UserID == userID &&
			domain.DatesOverlap(e.DesiredStartDate, e.DesiredEndDate, start, end, false) {
			e.IsActive = false
			r.entries[id] = e
			n++
		}
	}
	return n, nil
}

// Inspections

type memInspections memStore

func (r *memInspections) CreateRenterInspection(ctx context.Context, in *domain.RenterInspection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.renterInsp[in.BookingID]; ok {
		return domain.InvalidInput("renter inspection already recorded for booking %d", in.BookingID)
	}
	in.ID = (*memStore)(r).id()
	r.renterInsp[in.BookingID] = *in
	return nil
}

func (r *memInspections) GetRenterInspection(ctx context.Context, bookingID int32) (*domain.RenterInspection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.renterInsp[bookingID]
	if !ok {
		return nil, domain.NotFound("renter inspection for booking", bookingID)
	}
	return &in, nil
}

func (r *memInspections) UpdateRenterInspection(ctx context.Context, in *domain.RenterInspection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.renterInsp[in.BookingID]; !ok {
		return domain.NotFound("renter inspection for booking", in.BookingID)
	}
	r.renterInsp[in.BookingID] = *in
	return nil
}

func (r *memInspections) CreateOwnerInspection(ctx context.Context, in *domain.OwnerInspection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ownerInsp[in.BookingID]; ok {
		return domain.InvalidInput("owner inspection already recorded for booking %d", in.BookingID)
	}
	in.ID = (*memStore)(r).id()
	r.ownerInsp[in.BookingID] = *in
	return nil
}

func (r *memInspections) GetOwnerInspection(ctx context.Context, bookingID int32) (*domain.OwnerInspection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.ownerInsp[bookingID]
	if !ok {
		return nil, domain.NotFound("owner inspection for booking", bookingID)
	}
	return &in, nil
}

// Refunds

type memRefunds memStore

func (r *memRefunds) Create(ctx context.Context, rf *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.refunds {
		if existing.IdempotencyKey == rf.IdempotencyKey {
			return errors.Newf("duplicate idempotency key %s", rf.IdempotencyKey)
		}
	}
	rf.ID = (*memStore)(r).id()
	rf.CreatedAt = (*memStore)(r).stamp()
	r.refunds[rf.ID] = *rf
	return nil
}

func (r *memRefunds) GetByID(ctx context.Context, id int32) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rf, ok := r.refunds[id]
	if !ok {
		return nil, domain.NotFound("refund", id)
	}
	return &rf, nil
}

func (r *memRefunds) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rf := range r.refunds {
		if rf.IdempotencyKey == key {
			return &rf, nil
		}
	}
	return nil, nil
}

func (r *memRefunds) Update(ctx context.Context, rf *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refunds[rf.ID]; !ok {
		return domain.NotFound("refund", rf.ID)
	}
	r.refunds[rf.ID] = *rf
	return nil
}

func (r *memRefunds) listByBooking(bookingID int32) []domain.Refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Refund
	for _, rf := range r.refunds {
		if rf.BookingID == bookingID {
			out = append(out, rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRefunds) ListFailed(ctx context.Context, limit int32) ([]domain.Refund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Refund
	for _, rf := range r.refunds {
		if rf.Status == domain.RefundStatusFailed {
			out = append(out, rf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

// Contracts

type memContracts memStore

func (r *memContracts) Create(ctx context.Context, c *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = (*memStore)(r).id()
	c.CreatedAt = (*memStore)(r).stamp()
	r.contracts[c.ID] = *c
	return nil
}

func (r *memContracts) GetByID(ctx context.Context, id int32) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, domain.NotFound("contract", id)
	}
	return &c, nil
}

func (r *memContracts) GetByBookingID(ctx context.Context, bookingID int32) (*domain.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contracts {
		if c.BookingID == bookingID {
			return &c, nil
		}
	}
	return nil, domain.NotFound("contract for booking", bookingID)
}

func (r *memContracts) Update(ctx context.Context, c *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[c.ID]; !ok {
		return domain.NotFound("contract", c.ID)
	}
	r.contracts[c.ID] = *c
	return nil
}

// Directories

type memUsers memStore

func (r *memUsers) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.NotFound("user", id)
	}
	return &u, nil
}

type memVehicles memStore

func (r *memVehicles) GetByID(ctx context.Context, id int32) (*domain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, domain.NotFound("vehicle", id)
	}
	return &v, nil
}
