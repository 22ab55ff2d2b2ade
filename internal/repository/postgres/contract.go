package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
)

const contractColumns = `id, booking_id, contract_number, status, signed_at, created_at`

type contractRepository struct {
	db sqlx.ExtContext
}

func NewContractRepository(db sqlx.ExtContext) repository.ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, c *domain.Contract) error {
	query := `INSERT INTO contracts (booking_id, contract_number, status, signed_at, created_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	c.CreatedAt = time.Now().UTC()
	err := r.db.QueryRowxContext(ctx, query, c.BookingID, c.ContractNumber, c.Status, c.SignedAt, c.CreatedAt).Scan(&c.ID)
	return errors.Wrap(err, "insert contract")
}

func (r *contractRepository) GetByID(ctx context.Context, id int32) (*domain.Contract, error) {
	var c domain.Contract
	if err := sqlx.GetContext(ctx, r.db, &c, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "contract", id)
	}
	return &c, nil
}

func (r *contractRepository) GetByBookingID(ctx context.Context, bookingID int32) (*domain.Contract, error) {
	var c domain.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE booking_id = $1 ORDER BY id DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, r.db, &c, query, bookingID); err != nil {
		return nil, notFound(err, "contract for booking", bookingID)
	}
	return &c, nil
}

func (r *contractRepository) Update(ctx context.Context, c *domain.Contract) error {
	_, err := r.db.ExecContext(ctx, `UPDATE contracts SET status=$1, signed_at=$2 WHERE id=$3`, c.Status, c.SignedAt, c.ID)
	return errors.Wrapf(err, "update contract %d", c.ID)
}
