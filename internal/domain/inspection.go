package domain

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

type InspectionDecisionStatus string

const (
	InspectionPending  InspectionDecisionStatus = "pending"
	InspectionApproved InspectionDecisionStatus = "approved"
	InspectionRejected InspectionDecisionStatus = "rejected"
)

type DepositDecision string

const (
	DepositFullReturn    DepositDecision = "full_return"
	DepositPartialReturn DepositDecision = "partial_return"
	DepositNoReturn      DepositDecision = "no_return"
)

// DepositTolerance is the rounding slack allowed when a partial return is
// checked against the original deposit.
const DepositTolerance = 0.01

type Damage struct {
	Type        string `json:"type"`
	Location    string `json:"location"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Photo       string `json:"photo,omitempty"`
}

// Damages is stored as a jsonb column.
type Damages []Damage

func (d Damages) Value() (driver.Value, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d)
}

func (d *Damages) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return errors.Newf("unsupported damages column type %T", src)
}

// RenterInspection is recorded by the renter when the vehicle is handed over.
type RenterInspection struct {
	ID               int32                    `json:"id" db:"id"`
	BookingID        int32                    `json:"booking_id" db:"booking_id"`
	RenterID         int32                    `json:"renter_id" db:"renter_id"`
	OwnerID          int32                    `json:"owner_id" db:"owner_id"`
	VehicleID        int32                    `json:"vehicle_id" db:"vehicle_id"`
	Mileage          int32                    `json:"mileage" db:"mileage"`
	FuelLevel        string                   `json:"fuel_level" db:"fuel_level"`
	VehicleCondition string                   `json:"vehicle_condition" db:"vehicle_condition"`
	Photos           pq.StringArray           `json:"photos" db:"photos"`
	Observations     string                   `json:"observations" db:"observations"`
	Damages          Damages                  `json:"damages" db:"damages"`
	Status           InspectionDecisionStatus `json:"status" db:"status"`
	ApprovalDecision *bool                    `json:"approval_decision" db:"approval_decision"`
	RejectionReason  *string                  `json:"rejection_reason,omitempty" db:"rejection_reason"`
	RefundAmount     *float64                 `json:"refund_amount,omitempty" db:"refund_amount"`
	InspectedAt      time.Time                `json:"inspected_at" db:"inspected_at"`
	DecidedAt        *time.Time               `json:"decided_at,omitempty" db:"decided_at"`
}

func (i *RenterInspection) Decided() bool {
	return i.ApprovalDecision != nil
}

// OwnerInspection is recorded by the owner once the vehicle is returned and
// carries the deposit disposition.
type OwnerInspection struct {
	ID                     int32                    `json:"id" db:"id"`
	BookingID              int32                    `json:"booking_id" db:"booking_id"`
	OwnerID                int32                    `json:"owner_id" db:"owner_id"`
	RenterID               int32                    `json:"renter_id" db:"renter_id"`
	VehicleID              int32                    `json:"vehicle_id" db:"vehicle_id"`
	Mileage                int32                    `json:"mileage" db:"mileage"`
	FuelLevel              string                   `json:"fuel_level" db:"fuel_level"`
	VehicleCondition       string                   `json:"vehicle_condition" db:"vehicle_condition"`
	ExteriorCondition      string                   `json:"exterior_condition" db:"exterior_condition"`
	InteriorCondition      string                   `json:"interior_condition" db:"interior_condition"`
	EngineCondition        string                   `json:"engine_condition" db:"engine_condition"`
	TiresCondition         string                   `json:"tires_condition" db:"tires_condition"`
	Photos                 pq.StringArray           `json:"photos" db:"photos"`
	Observations           string                   `json:"observations" db:"observations"`
	Damages                Damages                  `json:"damages" db:"damages"`
	Status                 InspectionDecisionStatus `json:"status" db:"status"`
	DepositDecision        DepositDecision          `json:"deposit_decision" db:"deposit_decision"`
	DepositReturnAmount    float64                  `json:"deposit_return_amount" db:"deposit_return_amount"`
	DepositRetainedAmount  float64                  `json:"deposit_retained_amount" db:"deposit_retained_amount"`
	DepositRetentionReason *string                  `json:"deposit_retention_reason,omitempty" db:"deposit_retention_reason"`
	InspectedAt            time.Time                `json:"inspected_at" db:"inspected_at"`
	DecidedAt              *time.Time               `json:"decided_at,omitempty" db:"decided_at"`
}

// ApplyDepositDecision validates the disposition against the booking's
// deposit and fills in the derived amounts.
func (o *OwnerInspection) ApplyDepositDecision(deposit float64) error {
	switch o.DepositDecision {
	case DepositFullReturn:
		o.DepositReturnAmount = deposit
		o.DepositRetainedAmount = 0
	case DepositPartialReturn:
		if o.DepositReturnAmount < 0 || o.DepositRetainedAmount < 0 {
			return InvalidInput("deposit amounts must not be negative")
		}
		if math.Abs(o.DepositReturnAmount+o.DepositRetainedAmount-deposit) > DepositTolerance+1e-9 {
			return InvalidInput("returned %.2f plus retained %.2f must equal deposit %.2f",
				o.DepositReturnAmount, o.DepositRetainedAmount, deposit)
		}
	case DepositNoReturn:
		if o.DepositRetentionReason == nil || *o.DepositRetentionReason == "" {
			return InvalidInput("retention reason is required when no deposit is returned")
		}
		o.DepositReturnAmount = 0
		o.DepositRetainedAmount = deposit
	default:
		return InvalidInput("unknown deposit decision %q", o.DepositDecision)
	}
	o.Status = InspectionApproved
	return nil
}
