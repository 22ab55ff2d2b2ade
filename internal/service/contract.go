package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/logger"
	"vehicle-booking-engine/internal/repository"
	"vehicle-booking-engine/internal/utils"
)

// contractRegistry is the local stand-in for the e-signature provider. It
// keeps one contract per booking and learns about signatures through the
// callback endpoint.
type contractRegistry struct {
	repos repository.Repositories
	clock utils.Clock
}

func NewContractRegistry(repos repository.Repositories, clock utils.Clock) ContractService {
	return &contractRegistry{repos: repos, clock: clock}
}

func (c *contractRegistry) CreateContract(ctx context.Context, b *domain.Booking) (*domain.Contract, error) {
	existing, err := c.repos.Contracts.GetByBookingID(ctx, b.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	contract := &domain.Contract{
		BookingID:      b.ID,
		ContractNumber: contractNumber(c.clock.Now().Year()),
		Status:         domain.ContractStatusSent,
	}
	if err := c.repos.Contracts.Create(ctx, contract); err != nil {
		return nil, err
	}
	logger.WithBooking(b.ID, b.VehicleID).Info("Contract issued", "contract_number", contract.ContractNumber)
	return contract, nil
}

func (c *contractRegistry) IsSigned(ctx context.Context, contractID int32) (bool, error) {
	contract, err := c.repos.Contracts.GetByID(ctx, contractID)
	if err != nil {
		return false, err
	}
	return contract.Status == domain.ContractStatusSigned, nil
}

func (c *contractRegistry) MarkSigned(ctx context.Context, bookingID int32) (*domain.Contract, error) {
	now := c.clock.Now()
	contract, err := c.repos.Contracts.GetByBookingID(ctx, bookingID)
	if errors.Is(err, domain.ErrNotFound) {
		contract = &domain.Contract{
			BookingID:      bookingID,
			ContractNumber: contractNumber(now.Year()),
			Status:         domain.ContractStatusSigned,
			SignedAt:       &now,
		}
		if err := c.repos.Contracts.Create(ctx, contract); err != nil {
			return nil, err
		}
		return contract, nil
	}
	if err != nil {
		return nil, err
	}
	switch contract.Status {
	case domain.ContractStatusSigned:
		return contract, nil
	case domain.ContractStatusCancelled:
		return nil, errors.Wrapf(domain.ErrInvalidStateTransition, "contract %s is cancelled", contract.ContractNumber)
	}
	contract.Status = domain.ContractStatusSigned
	contract.SignedAt = &now
	if err := c.repos.Contracts.Update(ctx, contract); err != nil {
		return nil, err
	}
	return contract, nil
}

func contractNumber(year int) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("CT-%d-%s", year, id[:8])
}
