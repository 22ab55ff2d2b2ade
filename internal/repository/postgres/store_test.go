package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/repository/postgres"
)

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return postgres.NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStore_WithVehicleLock(t *testing.T) {
	ctx := context.Background()

	t.Run("Commits after taking the advisory lock", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs(sqlmock.AnyArg(), int32(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE waiting_queue SET notification_sent = true").
			WithArgs(int32(9)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithVehicleLock(ctx, 5, func(ctx context.Context, repos repository.Repositories) error {
			return repos.WaitingQueue.MarkNotified(ctx, 9)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls back when the unit of work fails", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := store.WithVehicleLock(ctx, 5, func(ctx context.Context, repos repository.Repositories) error {
			return domain.ErrVehicleUnavailable
		})
		assert.ErrorIs(t, err, domain.ErrVehicleUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Lock failure aborts before the unit of work", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WillReturnError(errors.New("canceling statement due to lock timeout"))
		mock.ExpectRollback()

		called := false
		err := store.WithVehicleLock(ctx, 5, func(ctx context.Context, repos repository.Repositories) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_WithinTx(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		require.NotNil(t, repos.Bookings)
		require.NotNil(t, repos.Refunds)
		return nil
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
