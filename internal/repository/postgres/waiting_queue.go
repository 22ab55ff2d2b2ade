package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
)

const entryColumns = `id, vehicle_id, user_id, desired_start_date, desired_end_date, is_active, notification_sent, created_at`

type waitingQueueRepository struct {
	db sqlx.ExtContext
}

func NewWaitingQueueRepository(db sqlx.ExtContext) repository.WaitingQueueRepository {
	return &waitingQueueRepository{db: db}
}

func (r *waitingQueueRepository) FindActive(ctx context.Context, vehicleID, userID int32, start, end time.Time) (*domain.WaitingQueueEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM waiting_queue
	          WHERE vehicle_id = $1 AND user_id = $2 AND desired_start_date = $3 AND desired_end_date = $4
	          AND is_active = true
	          ORDER BY created_at LIMIT 1`
	var e domain.WaitingQueueEntry
	err := sqlx.GetContext(ctx, r.db, &e, query, vehicleID, userID, domain.DateOf(start), domain.DateOf(end))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find active waiting entry")
	}
	return &e, nil
}

func (r *waitingQueueRepository) Create(ctx context.Context, e *domain.WaitingQueueEntry) error {
	query := `INSERT INTO waiting_queue (vehicle_id, user_id, desired_start_date, desired_end_date, is_active, notification_sent, created_at)
	          VALUES ($1, $2, $3, $4, true, false, $5) RETURNING id`
	e.DesiredStartDate = domain.DateOf(e.DesiredStartDate)
	e.DesiredEndDate = domain.DateOf(e.DesiredEndDate)
	e.IsActive = true
	e.NotificationSent = false
	e.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query, e.VehicleID, e.UserID, e.DesiredStartDate, e.DesiredEndDate, e.CreatedAt).Scan(&e.ID)
	return errors.Wrap(err, "insert waiting entry")
}

func (r *waitingQueueRepository) GetByID(ctx context.Context, id int32) (*domain.WaitingQueueEntry, error) {
	var e domain.WaitingQueueEntry
	if err := sqlx.GetContext(ctx, r.db, &e, `SELECT `+entryColumns+` FROM waiting_queue WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "waiting queue entry", id)
	}
	return &e, nil
}

func (r *waitingQueueRepository) Deactivate(ctx context.Context, id int32) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE waiting_queue SET is_active = false WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return false, errors.Wrapf(err, "deactivate waiting entry %d", id)
	}
	return affected(res)
}

func (r *waitingQueueRepository) ListActiveByVehicle(ctx context.Context, vehicleID int32) ([]domain.WaitingQueueEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM waiting_queue
	          WHERE vehicle_id = $1 AND is_active = true
	          ORDER BY created_at, id`
	var entries []domain.WaitingQueueEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, vehicleID); err != nil {
		return nil, errors.Wrapf(err, "list waiting entries of vehicle %d", vehicleID)
	}
	return entries, nil
}

func (r *waitingQueueRepository) ListActiveByUser(ctx context.Context, userID int32) ([]domain.WaitingQueueEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM waiting_queue
	          WHERE user_id = $1 AND is_active = true
	          ORDER BY created_at, id`
	var entries []domain.WaitingQueueEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, userID); err != nil {
		return nil, errors.Wrapf(err, "list waiting entries of user %d", userID)
	}
	return entries, nil
}

func (r *waitingQueueRepository) MarkNotified(ctx context.Context, id int32) error {
	_, err := r.db.ExecContext(ctx, `UPDATE waiting_queue SET notification_sent = true WHERE id = $1`, id)
	return errors.Wrapf(err, "mark waiting entry %d notified", id)
}

func (r *waitingQueueRepository) DeactivateMatching(ctx context.Context, vehicleID, userID int32, start, end time.Time) (int64, error) {
	query := `UPDATE waiting_queue SET is_active = false
	          WHERE vehicle_id = $1 AND user_id = $2 AND is_active = true
	          AND desired_start_date <= $4 AND desired_end_date >= $3`
	res, err := r.db.ExecContext(ctx, query, vehicleID, userID, domain.DateOf(start), domain.DateOf(end))
	if err != nil {
		return 0, errors.Wrap(err, "deactivate matching waiting entries")
	}
	return res.RowsAffected()
}
