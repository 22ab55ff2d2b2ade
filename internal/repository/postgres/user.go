package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/repository"
)

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db sqlx.ExtContext) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	u := &domain.User{}
	query := `SELECT id, name, email, COALESCE(phone, '') AS phone, push_token, roles FROM users WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, u, query, id); err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

type vehicleRepository struct {
	db sqlx.ExtContext
}

func NewVehicleRepository(db sqlx.ExtContext) repository.VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) GetByID(ctx context.Context, id int32) (*domain.Vehicle, error) {
	v := &domain.Vehicle{}
	query := `SELECT id, owner_id, brand, model, year, daily_price, is_available FROM vehicles WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, v, query, id); err != nil {
		return nil, notFound(err, "vehicle", id)
	}
	return v, nil
}
