package postgres

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

const renterInspectionColumns = `id, booking_id, renter_id, owner_id, vehicle_id, mileage, fuel_level, vehicle_condition,
	photos, observations, damages, status, approval_decision, rejection_reason, refund_amount, inspected_at, decided_at`

const ownerInspectionColumns = `id, booking_id, owner_id, renter_id, vehicle_id, mileage, fuel_level, vehicle_condition,
	exterior_condition, interior_condition, engine_condition, tires_condition, photos, observations, damages, status,
	deposit_decision, deposit_return_amount, deposit_retained_amount, deposit_retention_reason, inspected_at, decided_at`

type inspectionRepository struct {
	db sqlx.ExtContext
}

func NewInspectionRepository(db sqlx.ExtContext) repository.InspectionRepository {
	return &inspectionRepository{db: db}
}

func (r *inspectionRepository) CreateRenterInspection(ctx context.Context, in *domain.RenterInspection) error {
	query := `INSERT INTO vehicle_inspections (booking_id, renter_id, owner_id, vehicle_id, mileage, fuel_level,
	          vehicle_condition, photos, observations, damages, status, inspected_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		in.BookingID, in.RenterID, in.OwnerID, in.VehicleID, in.Mileage, in.FuelLevel,
		in.VehicleCondition, in.Photos, in.Observations, in.Damages, in.Status, in.InspectedAt,
	).Scan(&in.ID)
	return duplicateAsInvalid(err, "renter inspection already recorded for booking %d", in.BookingID)
}

func (r *inspectionRepository) GetRenterInspection(ctx context.Context, bookingID int32) (*domain.RenterInspection, error) {
	var in domain.RenterInspection
	query := `SELECT ` + renterInspectionColumns + ` FROM vehicle_inspections WHERE booking_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &in, query, bookingID); err != nil {
		return nil, notFound(err, "renter inspection for booking", bookingID)
	}
	return &in, nil
}

func (r *inspectionRepository) UpdateRenterInspection(ctx context.Context, in *domain.RenterInspection) error {
	query := `UPDATE vehicle_inspections SET status=$1, approval_decision=$2, rejection_reason=$3,
	          refund_amount=$4, decided_at=$5 WHERE id=$6`
	res, err := r.db.ExecContext(ctx, query, in.Status, in.ApprovalDecision, in.RejectionReason, in.RefundAmount, in.DecidedAt, in.ID)
	if err != nil {
		return errors.Wrapf(err, "update renter inspection %d", in.ID)
	}
	if ok, err := affected(res); err != nil || !ok {
		if err != nil {
			return err
		}
		return domain.NotFound("renter inspection", in.ID)
	}
	return nil
}

func (r *inspectionRepository) CreateOwnerInspection(ctx context.Context, in *domain.OwnerInspection) error {
	query := `INSERT INTO owner_inspections (booking_id, owner_id, renter_id, vehicle_id, mileage, fuel_level,
	          vehicle_condition, exterior_condition, interior_condition, engine_condition, tires_condition,
	          photos, observations, damages, status, deposit_decision, deposit_return_amount,
	          deposit_retained_amount, deposit_retention_reason, inspected_at, decided_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	          RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		in.BookingID, in.OwnerID, in.RenterID, in.VehicleID, in.Mileage, in.FuelLevel,
		in.VehicleCondition, in.ExteriorCondition, in.InteriorCondition, in.EngineCondition, in.TiresCondition,
		in.Photos, in.Observations, in.Damages, in.Status, in.DepositDecision, in.DepositReturnAmount,
		in.DepositRetainedAmount, in.DepositRetentionReason, in.InspectedAt, in.DecidedAt,
	).Scan(&in.ID)
	return duplicateAsInvalid(err, "owner inspection already recorded for booking %d", in.BookingID)
}

func (r *inspectionRepository) GetOwnerInspection(ctx context.Context, bookingID int32) (*domain.OwnerInspection, error) {
	var in domain.OwnerInspection
	query := `SELECT ` + ownerInspectionColumns + ` FROM owner_inspections WHERE booking_id = $1`
	if err := sqlx.GetContext(ctx, r.db, &in, query, bookingID); err != nil {
		return nil, notFound(err, "owner inspection for booking", bookingID)
	}
	return &in, nil
}

// duplicateAsInvalid turns a unique violation into ErrInvalidInput.
func duplicateAsInvalid(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return domain.InvalidInput(format, args...)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "insert returned no id")
	}
	return errors.Wrap(err, "insert inspection")
}
