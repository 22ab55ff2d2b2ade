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

const refundColumns = `id, booking_id, amount, percentage, reason, requested_by, requested_by_id, status,
	refund_id, idempotency_key, last_error, estimated_arrival, processed_at, created_at`

type refundRepository struct {
	db sqlx.ExtContext
}

func NewRefundRepository(db sqlx.ExtContext) repository.RefundRepository {
	return &refundRepository{db: db}
}

func (r *refundRepository) Create(ctx context.Context, rf *domain.Refund) error {
	logger.EnterMethod("refundRepository.Create", "bookingID", rf.BookingID, "amount", rf.Amount)

	query := `INSERT INTO refunds (booking_id, amount, percentage, reason, requested_by, requested_by_id, status,
	          idempotency_key, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	rf.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query,
		rf.BookingID, rf.Amount, rf.Percentage, rf.Reason, rf.RequestedBy, rf.RequestedByID, rf.Status,
		rf.IdempotencyKey, rf.CreatedAt,
	).Scan(&rf.ID)
	if err != nil {
		logger.ExitMethodWithError("refundRepository.Create", err, "bookingID", rf.BookingID)
		return errors.Wrap(err, "insert refund")
	}

	logger.ExitMethod("refundRepository.Create", "refundID", rf.ID)
	return nil
}

func (r *refundRepository) GetByID(ctx context.Context, id int32) (*domain.Refund, error) {
	var rf domain.Refund
	if err := sqlx.GetContext(ctx, r.db, &rf, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "refund", id)
	}
	return &rf, nil
}

func (r *refundRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Refund, error) {
	var rf domain.Refund
	err := sqlx.GetContext(ctx, r.db, &rf, `SELECT `+refundColumns+` FROM refunds WHERE idempotency_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load refund by idempotency key")
	}
	return &rf, nil
}

func (r *refundRepository) Update(ctx context.Context, rf *domain.Refund) error {
	query := `UPDATE refunds SET status=$1, refund_id=$2, last_error=$3, estimated_arrival=$4, processed_at=$5
	          WHERE id=$6`
	res, err := r.db.ExecContext(ctx, query, rf.Status, rf.RefundID, rf.LastError, rf.EstimatedArrival, rf.ProcessedAt, rf.ID)
	if err != nil {
		return errors.Wrapf(err, "update refund %d", rf.ID)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("refund", rf.ID)
	}
	return nil
}

func (r *refundRepository) ListFailed(ctx context.Context, limit int32) ([]domain.Refund, error) {
	var refunds []domain.Refund
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE status = 'failed' ORDER BY created_at, id LIMIT $1`
	if err := sqlx.SelectContext(ctx, r.db, &refunds, query, limit); err != nil {
		return nil, errors.Wrap(err, "list failed refunds")
	}
	return refunds, nil
}
