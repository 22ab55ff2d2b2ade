package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
)

// vehicleLockNamespace is the first key of the two-key advisory lock so
// vehicle ids cannot collide with other advisory lock users.
const vehicleLockNamespace int32 = 7301

// Store exposes the repositories bound to the connection pool and runs
// transactions that rebind them to a *sqlx.Tx.
type Store struct {
	db *sqlx.DB
	repository.Repositories
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:           db,
		Repositories: bind(db),
	}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func bind(q sqlx.ExtContext) repository.Repositories {
	return repository.Repositories{
		Bookings:     NewBookingRepository(q),
		Availability: NewAvailabilityRepository(q),
		WaitingQueue: NewWaitingQueueRepository(q),
		Inspections:  NewInspectionRepository(q),
		Refunds:      NewRefundRepository(q),
		Contracts:    NewContractRepository(q),
		Users:        NewUserRepository(q),
		Vehicles:     NewVehicleRepository(q),
	}
}

func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	return s.runTx(ctx, nil, fn)
}

// WithVehicleLock takes a transaction scoped advisory lock on the vehicle.
// The lock is released by the commit or rollback that ends the transaction.
func (s *Store) WithVehicleLock(ctx context.Context, vehicleID int32, fn repository.TxFunc) error {
	return s.runTx(ctx, func(tx *sqlx.Tx) error {
		logger.DatabaseCall("LOCK", "pg_advisory_xact_lock", "vehicleID", vehicleID)
		_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, vehicleLockNamespace, vehicleID)
		logger.DatabaseResult("LOCK", 0, err, "vehicleID", vehicleID)
		return errors.Wrapf(err, "lock vehicle %d", vehicleID)
	}, fn)
}

func (s *Store) runTx(ctx context.Context, prepare func(tx *sqlx.Tx) error, fn repository.TxFunc) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("Failed to roll back transaction", "error", rbErr)
			}
		}
	}()

	if prepare != nil {
		if err = prepare(tx); err != nil {
			return err
		}
	}
	if err = fn(ctx, bind(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// notFound converts sql.ErrNoRows into the domain not-found error.
func notFound(err error, what string, id int32) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(what, id)
	}
	return errors.Wrapf(err, "load %s %d", what, id)
}

// affected reports whether the statement touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
