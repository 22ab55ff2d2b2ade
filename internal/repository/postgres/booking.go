package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
)

const bookingColumns = `id, vehicle_id, renter_id, owner_id, start_date, end_date, status, total_price,
	service_fee, insurance_fee, security_deposit, payment_status, payment_reference, inspection_status,
	availability_block_id, contract_id, hold_released_at, notes, created_at, updated_at`

type bookingRepository struct {
	db sqlx.ExtContext
}

func NewBookingRepository(db sqlx.ExtContext) repository.BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `INSERT INTO bookings (vehicle_id, renter_id, owner_id, start_date, end_date, status, total_price,
	          service_fee, insurance_fee, security_deposit, payment_status, payment_reference, inspection_status,
	          notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) RETURNING id`
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	logger.DatabaseCall("INSERT", "bookings", "vehicleID", b.VehicleID, "renterID", b.RenterID)
	err := r.db.QueryRowxContext(ctx, query,
		b.VehicleID, b.RenterID, b.OwnerID, b.StartDate, b.EndDate, b.Status, b.TotalPrice,
		b.ServiceFee, b.InsuranceFee, b.SecurityDeposit, b.PaymentStatus, b.PaymentReference, b.InspectionStatus,
		b.Notes, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	logger.DatabaseResult("INSERT", 1, err, "bookingID", b.ID)
	return errors.Wrap(err, "insert booking")
}

func (r *bookingRepository) GetByID(ctx context.Context, id int32) (*domain.Booking, error) {
	var b domain.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, &b, query, id); err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

func (r *bookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	query := `UPDATE bookings SET status=$1, payment_status=$2, payment_reference=$3, inspection_status=$4,
	          availability_block_id=$5, contract_id=$6, hold_released_at=$7, notes=$8, updated_at=$9
	          WHERE id=$10`
	b.UpdatedAt = time.Now().UTC()

	logger.DatabaseCall("UPDATE", "bookings", "bookingID", b.ID, "status", b.Status)
	res, err := r.db.ExecContext(ctx, query,
		b.Status, b.PaymentStatus, b.PaymentReference, b.InspectionStatus,
		b.AvailabilityBlockID, b.ContractID, b.HoldReleasedAt, b.Notes, b.UpdatedAt, b.ID)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err, "bookingID", b.ID)
		return errors.Wrapf(err, "update booking %d", b.ID)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("booking", b.ID)
	}
	logger.DatabaseResult("UPDATE", 1, nil, "bookingID", b.ID)
	return nil
}

func (r *bookingRepository) ListCommittedOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE vehicle_id = $1 AND status IN ('approved', 'active')
	          AND (start_date AT TIME ZONE 'UTC')::date <= $3
	          AND (end_date AT TIME ZONE 'UTC')::date >= $2
	          ORDER BY start_date`
	var bookings []domain.Booking
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, vehicleID, domain.DateOf(start), domain.DateOf(end)); err != nil {
		return nil, errors.Wrapf(err, "list committed bookings of vehicle %d", vehicleID)
	}
	return bookings, nil
}

func (r *bookingRepository) ListCompletedWithoutHold(ctx context.Context, limit int32) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE status = 'completed' AND availability_block_id IS NULL
	          AND hold_released_at IS NULL AND contract_id IS NOT NULL
	          ORDER BY id LIMIT $1`
	var bookings []domain.Booking
	if err := sqlx.SelectContext(ctx, r.db, &bookings, query, limit); err != nil {
		return nil, errors.Wrap(err, "list completed bookings without hold")
	}
	return bookings, nil
}
