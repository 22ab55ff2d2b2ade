package domain

import "time"

type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "draft"
	ContractStatusSent      ContractStatus = "sent"
	ContractStatusSigned    ContractStatus = "signed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

type Contract struct {
	ID             int32          `json:"id" db:"id"`
	BookingID      int32          `json:"booking_id" db:"booking_id"`
	ContractNumber string         `json:"contract_number" db:"contract_number"`
	Status         ContractStatus `json:"status" db:"status"`
	SignedAt       *time.Time     `json:"signed_at,omitempty" db:"signed_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}
