package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-booking-engine/internal/domain"
)

func TestBookingService_CreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		b, err := f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)))
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		assert.Equal(t, domain.BookingStatusPending, b.Status)
		assert.Equal(t, ownerID, b.OwnerID)
		assert.Equal(t, domain.PaymentStatusPaid, b.PaymentStatus)
		assert.Equal(t, domain.InspectionStatusNotRequired, b.InspectionStatus)
		assert.Nil(t, b.AvailabilityBlockID)
		assert.Empty(t, f.store.allBlocks(vehicleID), "pending bookings never hold the calendar")
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())

		req := bookingRequest(date(2026, 3, 12), date(2026, 3, 10))
		_, err := f.bookings.CreateBooking(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		req = bookingRequest(date(2026, 3, 10), date(2026, 3, 12))
		req.ServiceFee = 2000
		_, err = f.bookings.CreateBooking(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		req = bookingRequest(date(2026, 3, 10), date(2026, 3, 12))
		req.RenterID = ownerID
		_, err = f.bookings.CreateBooking(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		req = bookingRequest(date(2026, 3, 10), date(2026, 3, 12))
		req.VehicleID = 404
		_, err = f.bookings.CreateBooking(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("Unlisted vehicle", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		req := bookingRequest(date(2026, 3, 10), date(2026, 3, 12))
		req.VehicleID = unlistedID
		_, err := f.bookings.CreateBooking(ctx, req)
		assert.True(t, errors.Is(err, domain.ErrVehicleUnavailable))
	})

	t.Run("Pending bookings do not block", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusPending)
		_, err := f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 11), date(2026, 3, 13)))
		assert.NoError(t, err)
	})

	t.Run("Committed bookings block", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusApproved)

		cases := []struct {
			name       string
			start, end time.Time
		}{
			{"start inside", date(2026, 3, 11), date(2026, 3, 15)},
			{"end inside", date(2026, 3, 8), date(2026, 3, 10)},
			{"contains existing", date(2026, 3, 9), date(2026, 3, 13)},
			{"inside existing", date(2026, 3, 11), date(2026, 3, 11)},
			{"touching end", date(2026, 3, 12), date(2026, 3, 14)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.bookings.CreateBooking(ctx, bookingRequest(tc.start, tc.end))
				assert.True(t, errors.Is(err, domain.ErrVehicleUnavailable), "got %v", err)
			})
		}

		_, err := f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 13), date(2026, 3, 14)))
		assert.NoError(t, err)
	})

	t.Run("Same day turnover", func(t *testing.T) {
		policy := defaultPolicy()
		policy.SameDayTurnover = true
		f := newFixture(t, policy)
		f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusApproved)

		_, err := f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 12), date(2026, 3, 14)))
		assert.NoError(t, err)
	})

	t.Run("Manual blocks block", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		_, err := f.availability.AddManualBlock(ctx, owner, vehicleID, date(2026, 3, 10), date(2026, 3, 12), "")
		require.NoError(t, err)

		_, err = f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 12), date(2026, 3, 14)))
		assert.True(t, errors.Is(err, domain.ErrVehicleUnavailable))
	})

	t.Run("Booking clears the renter's waiting entries", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		entry, err := f.queue.Join(ctx, vehicleID, renterID, date(2026, 3, 10), date(2026, 3, 12))
		require.NoError(t, err)

		_, err = f.bookings.CreateBooking(ctx, bookingRequest(date(2026, 3, 11), date(2026, 3, 12)))
		require.NoError(t, err)
		assert.False(t, f.store.entry(entry.ID).IsActive)
	})
}

func TestBookingService_NoDoubleBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())

	const n = 12
	ids := make([]int32, n)
	for i := range ids {
		// Overlapping windows shifted by a day; all of them share March 15.
		start := date(2026, 3, 10+i%5)
		b := f.book(t, bookingRequest(start, date(2026, 3, 15)), domain.BookingStatusPending)
		ids[i] = b.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
		refused  int
	)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.UpdateStatus(ctx, owner, id, domain.BookingStatusApproved, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				approved++
			case errors.Is(err, domain.ErrVehicleUnavailable):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, approved)
	assert.Equal(t, n-1, refused)
	assert.Len(t, f.store.allBlocks(vehicleID), 1)

	var committed []domain.Booking
	for _, id := range ids {
		if b := f.store.booking(id); b.Status.Committed() {
			committed = append(committed, b)
		}
	}
	assert.Len(t, committed, 1)
}

func TestBookingService_StateMachine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())

	t.Run("pending to completed is rejected", func(t *testing.T) {
		b := f.book(t, bookingRequest(date(2026, 4, 1), date(2026, 4, 2)), domain.BookingStatusPending)
		_, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusCompleted, "")
		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))
		assert.Equal(t, domain.BookingStatusPending, f.store.booking(b.ID).Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		b := f.book(t, bookingRequest(date(2026, 4, 5), date(2026, 4, 6)), domain.BookingStatusPending)
		_, err := f.bookings.UpdateStatus(ctx, owner, b.ID, "finished", "")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("terminal statuses stay terminal", func(t *testing.T) {
		b := f.book(t, bookingRequest(date(2026, 4, 8), date(2026, 4, 9)), domain.BookingStatusCompleted)
		_, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusCancelled, "")
		assert.True(t, errors.Is(err, domain.ErrInvalidStateTransition))
	})

	t.Run("authorization", func(t *testing.T) {
		b := f.book(t, bookingRequest(date(2026, 4, 12), date(2026, 4, 13)), domain.BookingStatusPending)

		_, err := f.bookings.UpdateStatus(ctx, renter, b.ID, domain.BookingStatusApproved, "")
		assert.True(t, errors.Is(err, domain.ErrForbidden), "renters cannot approve")

		_, err = f.bookings.UpdateStatus(ctx, other, b.ID, domain.BookingStatusCancelled, "")
		assert.True(t, errors.Is(err, domain.ErrForbidden), "strangers cannot cancel")

		_, err = f.bookings.GetBooking(ctx, other, b.ID)
		assert.True(t, errors.Is(err, domain.ErrForbidden))

		_, err = f.bookings.GetBooking(ctx, renter, 999)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		got, err := f.bookings.GetBooking(ctx, admin, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)

		res, err := f.bookings.UpdateStatus(ctx, admin, b.ID, domain.BookingStatusApproved, "approved by support")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusApproved, res.Status)
		assert.Contains(t, res.Notes, "approved by support")
	})

	t.Run("refunded is reserved for privileged actors", func(t *testing.T) {
		req := bookingRequest(date(2026, 4, 20), date(2026, 4, 21))
		req.PaymentStatus = domain.PaymentStatusPending
		b := f.book(t, req, domain.BookingStatusPending)
		_, err := f.bookings.UpdateStatus(ctx, renter, b.ID, domain.BookingStatusCancelled, "")
		require.NoError(t, err)

		_, err = f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusRefunded, "")
		assert.True(t, errors.Is(err, domain.ErrForbidden))

		res, err := f.bookings.UpdateStatus(ctx, admin, b.ID, domain.BookingStatusRefunded, "refunded offline")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusRefunded, res.Status)
		assert.Equal(t, domain.PaymentStatusRefunded, res.PaymentStatus)
	})
}

func TestBookingService_HoldLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())
	req := bookingRequest(date(2026, 3, 10), date(2026, 3, 12))
	req.PaymentStatus = domain.PaymentStatusPending

	b := f.book(t, req, domain.BookingStatusApproved)
	require.NotNil(t, b.AvailabilityBlockID)
	blocks := f.store.allBlocks(vehicleID)
	require.Len(t, blocks, 1)
	assert.Equal(t, domain.HoldReasonFor(b.ID), blocks[0].Reason)
	assert.Equal(t, *b.AvailabilityBlockID, blocks[0].ID)
	assert.Equal(t, date(2026, 3, 10), blocks[0].StartDate)
	assert.Equal(t, date(2026, 3, 12), blocks[0].EndDate)

	active, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusActive, "")
	require.NoError(t, err)
	assert.Equal(t, b.AvailabilityBlockID, active.AvailabilityBlockID)
	assert.Len(t, f.store.allBlocks(vehicleID), 1)

	entry, err := f.queue.Join(ctx, vehicleID, otherID, date(2026, 3, 11), date(2026, 3, 14))
	require.NoError(t, err)

	cancelled, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusCancelled, "vehicle broke down")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.AvailabilityBlockID)
	assert.Empty(t, f.store.allBlocks(vehicleID))

	assert.Contains(t, f.notifier.notifiedUsers(domain.NotificationVehicleAvailable), otherID)
	assert.True(t, f.store.entry(entry.ID).NotificationSent)
}

func TestBookingService_CheckAndBlockCompletedBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("hold waits for the signed contract", func(t *testing.T) {
		f := newFixture(t, Policy{AutoCreateContract: true})
		b := f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusApproved)
		require.NotNil(t, b.ContractID, "approval issues a contract")
		assert.Empty(t, f.store.allBlocks(vehicleID))

		_, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusActive, "")
		require.NoError(t, err)
		done, err := f.bookings.UpdateStatus(ctx, owner, b.ID, domain.BookingStatusCompleted, "")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusCompleted, done.Status)
		assert.Nil(t, done.AvailabilityBlockID)
		assert.Empty(t, f.store.allBlocks(vehicleID))

		blocked, err := f.bookings.CheckAndBlockCompletedBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, blocked)

		blocked, err = f.bookings.ContractSigned(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, blocked)

		blocks := f.store.allBlocks(vehicleID)
		require.Len(t, blocks, 1)
		assert.Equal(t, domain.HoldReasonFor(b.ID), blocks[0].Reason)
		assert.Equal(t, blocks[0].ID, *f.store.booking(b.ID).AvailabilityBlockID)
	})

	t.Run("idempotent under concurrency", func(t *testing.T) {
		f := newFixture(t, Policy{})
		b := f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusCompleted)
		_, err := f.bookings.ContractSigned(ctx, b.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				blocked, err := f.bookings.CheckAndBlockCompletedBooking(ctx, b.ID)
				assert.NoError(t, err)
				assert.True(t, blocked)
			}()
		}
		wg.Wait()
		assert.Len(t, f.store.allBlocks(vehicleID), 1)
	})

	t.Run("hold created on approval is reused", func(t *testing.T) {
		f := newFixture(t, defaultPolicy())
		b := f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusCompleted)
		held := *f.store.booking(b.ID).AvailabilityBlockID

		blocked, err := f.bookings.ContractSigned(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, blocked)
		blocks := f.store.allBlocks(vehicleID)
		require.Len(t, blocks, 1)
		assert.Equal(t, held, blocks[0].ID)
	})

	t.Run("late signature holds until the release job expires it", func(t *testing.T) {
		f := newFixture(t, Policy{})
		b := f.book(t, bookingRequest(date(2026, 2, 1), date(2026, 2, 3)), domain.BookingStatusCompleted)
		waiting, err := f.queue.Join(ctx, vehicleID, otherID, date(2026, 2, 2), date(2026, 2, 4))
		require.NoError(t, err)

		blocked, err := f.bookings.ContractSigned(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, blocked)
		require.Len(t, f.store.allBlocks(vehicleID), 1)
		assert.Nil(t, f.store.booking(b.ID).HoldReleasedAt)

		summary, err := f.release.ReleaseExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.ReleasedCount)
		assert.Equal(t, 1, summary.NotifiedCount)
		assert.True(t, f.store.entry(waiting.ID).NotificationSent)
		assert.NotNil(t, f.store.booking(b.ID).HoldReleasedAt)

		blocked, err = f.bookings.CheckAndBlockCompletedBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, blocked)
		assert.Empty(t, f.store.allBlocks(vehicleID))
	})

	t.Run("non completed bookings are ignored", func(t *testing.T) {
		f := newFixture(t, Policy{})
		b := f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusActive)
		blocked, err := f.bookings.CheckAndBlockCompletedBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, blocked)
	})
}

func TestBookingService_ReconcileCompletedHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Policy{AutoCreateContract: true})

	b := f.book(t, bookingRequest(date(2026, 3, 10), date(2026, 3, 12)), domain.BookingStatusCompleted)
	require.NotNil(t, b.ContractID)

	// The provider marks the contract signed without calling back.
	contract, err := f.store.repos().Contracts.GetByID(ctx, *b.ContractID)
	require.NoError(t, err)
	contract.Status = domain.ContractStatusSigned
	require.NoError(t, f.store.repos().Contracts.Update(ctx, contract))

	n, err := f.bookings.ReconcileCompletedHolds(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.store.allBlocks(vehicleID), 1)

	n, err = f.bookings.ReconcileCompletedHolds(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBookingService_RefundQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultPolicy())
	now := f.clock.Now()
	b := f.book(t, bookingRequest(now.Add(30*time.Hour), now.Add(78*time.Hour)), domain.BookingStatusApproved)

	q, err := f.bookings.RefundQuote(ctx, renter, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, q.RefundAmount)
	assert.Equal(t, 75.0, q.RefundPercentage)

	_, err = f.bookings.RefundQuote(ctx, other, b.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}
