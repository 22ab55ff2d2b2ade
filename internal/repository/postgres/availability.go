package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
)

const blockColumns = `id, vehicle_id, start_date, end_date, is_available, reason, created_at`

type availabilityRepository struct {
	db sqlx.ExtContext
}

func NewAvailabilityRepository(db sqlx.ExtContext) repository.AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) ListByVehicle(ctx context.Context, vehicleID int32) ([]domain.AvailabilityBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks WHERE vehicle_id = $1 ORDER BY start_date, id`
	var blocks []domain.AvailabilityBlock
	if err := sqlx.SelectContext(ctx, r.db, &blocks, query, vehicleID); err != nil {
		return nil, errors.Wrapf(err, "list blocks of vehicle %d", vehicleID)
	}
	return blocks, nil
}

func (r *availabilityRepository) ListOverlapping(ctx context.Context, vehicleID int32, start, end time.Time) ([]domain.AvailabilityBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks
	          WHERE vehicle_id = $1 AND is_available = false AND start_date <= $3 AND end_date >= $2
	          ORDER BY start_date, id`
	var blocks []domain.AvailabilityBlock
	if err := sqlx.SelectContext(ctx, r.db, &blocks, query, vehicleID, domain.DateOf(start), domain.DateOf(end)); err != nil {
		return nil, errors.Wrapf(err, "list overlapping blocks of vehicle %d", vehicleID)
	}
	return blocks, nil
}

func (r *availabilityRepository) FindIdentical(ctx context.Context, vehicleID int32, start, end time.Time, reason string) (*domain.AvailabilityBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks
	          WHERE vehicle_id = $1 AND start_date = $2 AND end_date = $3 AND reason = $4
	          ORDER BY id LIMIT 1`
	var b domain.AvailabilityBlock
	err := sqlx.GetContext(ctx, r.db, &b, query, vehicleID, domain.DateOf(start), domain.DateOf(end), reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find identical block")
	}
	return &b, nil
}

func (r *availabilityRepository) Create(ctx context.Context, b *domain.AvailabilityBlock) error {
	query := `INSERT INTO availability_blocks (vehicle_id, start_date, end_date, is_available, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	b.StartDate = domain.DateOf(b.StartDate)
	b.EndDate = domain.DateOf(b.EndDate)
	b.CreatedAt = time.Now().UTC()

	logger.DatabaseCall("INSERT", "availability_blocks", "vehicleID", b.VehicleID, "reason", b.Reason)
	err := r.db.QueryRowxContext(ctx, query, b.VehicleID, b.StartDate, b.EndDate, b.IsAvailable, b.Reason, b.CreatedAt).Scan(&b.ID)
	logger.DatabaseResult("INSERT", 1, err, "blockID", b.ID)
	return errors.Wrap(err, "insert availability block")
}

func (r *availabilityRepository) GetByID(ctx context.Context, id int32) (*domain.AvailabilityBlock, error) {
	var b domain.AvailabilityBlock
	if err := sqlx.GetContext(ctx, r.db, &b, `SELECT `+blockColumns+` FROM availability_blocks WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "availability block", id)
	}
	return &b, nil
}

func (r *availabilityRepository) Delete(ctx context.Context, id int32) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM availability_blocks WHERE id = $1`, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete block %d", id)
	}
	return affected(res)
}

func (r *availabilityRepository) ListExpiredHolds(ctx context.Context, today time.Time) ([]domain.AvailabilityBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM availability_blocks
	          WHERE is_available = false AND end_date < $1 AND reason LIKE $2
	          ORDER BY end_date, id`
	var blocks []domain.AvailabilityBlock
	if err := sqlx.SelectContext(ctx, r.db, &blocks, query, domain.DateOf(today), domain.HoldReasonPrefix+"%"); err != nil {
		return nil, errors.Wrap(err, "list expired holds")
	}
	return blocks, nil
}

func (r *availabilityRepository) DeleteExpiredHold(ctx context.Context, id int32, reason string, today time.Time) (bool, error) {
	query := `DELETE FROM availability_blocks
	          WHERE id = $1 AND reason = $2 AND end_date < $3 AND is_available = false`
	logger.DatabaseCall("DELETE", "availability_blocks", "blockID", id)
	res, err := r.db.ExecContext(ctx, query, id, reason, domain.DateOf(today))
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err, "blockID", id)
		return false, errors.Wrapf(err, "delete expired hold %d", id)
	}
	return affected(res)
}
