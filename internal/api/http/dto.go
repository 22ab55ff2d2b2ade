package http

import (
	"time"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/service"
	"vehicle-booking-engine/internal/utils"
)

type createBookingRequest struct {
	VehicleID        int32   `json:"vehicle_id" validate:"required,gt=0"`
	RenterID         int32   `json:"renter_id" validate:"omitempty,gt=0"`
	StartDate        string  `json:"start_date" validate:"required"`
	EndDate          string  `json:"end_date" validate:"required"`
	TotalPrice       float64 `json:"total_price" validate:"gte=0"`
	ServiceFee       float64 `json:"service_fee" validate:"gte=0,ltefield=TotalPrice"`
	InsuranceFee     float64 `json:"insurance_fee" validate:"gte=0"`
	SecurityDeposit  float64 `json:"security_deposit" validate:"gte=0"`
	PaymentStatus    string  `json:"payment_status" validate:"omitempty,oneof=pending paid"`
	PaymentReference *string `json:"payment_reference" validate:"omitempty,max=255"`
	Notes            string  `json:"notes" validate:"max=2000"`
}

func (r *createBookingRequest) toService(renterID int32) (service.CreateBookingRequest, error) {
	start, err := utils.ParseTimestamp(r.StartDate)
	if err != nil {
		return service.CreateBookingRequest{}, domain.InvalidInput("start_date: %v", err)
	}
	end, err := utils.ParseTimestamp(r.EndDate)
	if err != nil {
		return service.CreateBookingRequest{}, domain.InvalidInput("end_date: %v", err)
	}
	return service.CreateBookingRequest{
		VehicleID:        r.VehicleID,
		RenterID:         renterID,
		StartDate:        start,
		EndDate:          end,
		TotalPrice:       r.TotalPrice,
		ServiceFee:       r.ServiceFee,
		InsuranceFee:     r.InsuranceFee,
		SecurityDeposit:  r.SecurityDeposit,
		PaymentStatus:    domain.PaymentStatus(r.PaymentStatus),
		PaymentReference: r.PaymentReference,
		Notes:            r.Notes,
	}, nil
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved aguardando_vistoria active completed rejected cancelled refunded"`
	Reason string `json:"reason" validate:"max=1000"`
}

type contractSignedResponse struct {
	Blocked bool `json:"blocked"`
}

type renterInspectionRequest struct {
	Mileage          int32           `json:"mileage" validate:"gte=0"`
	FuelLevel        string          `json:"fuel_level" validate:"required,max=50"`
	VehicleCondition string          `json:"vehicle_condition" validate:"required,max=100"`
	Photos           []string        `json:"photos" validate:"dive,required"`
	Observations     string          `json:"observations" validate:"max=4000"`
	Damages          []damageRequest `json:"damages" validate:"dive"`
}

type damageRequest struct {
	Type        string `json:"type" validate:"required"`
	Location    string `json:"location"`
	Severity    string `json:"severity" validate:"omitempty,oneof=minor moderate severe"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
}

func toDamages(in []damageRequest) domain.Damages {
	out := make(domain.Damages, 0, len(in))
	for _, d := range in {
		out = append(out, domain.Damage{
			Type:        d.Type,
			Location:    d.Location,
			Severity:    d.Severity,
			Description: d.Description,
			Photo:       d.Photo,
		})
	}
	return out
}

func (r *renterInspectionRequest) toDomain(bookingID int32) *domain.RenterInspection {
	return &domain.RenterInspection{
		BookingID:        bookingID,
		Mileage:          r.Mileage,
		FuelLevel:        r.FuelLevel,
		VehicleCondition: r.VehicleCondition,
		Photos:           r.Photos,
		Observations:     r.Observations,
		Damages:          toDamages(r.Damages),
	}
}

type renterDecisionRequest struct {
	Approve         *bool    `json:"approve" validate:"required"`
	RejectionReason string   `json:"rejection_reason" validate:"max=1000"`
	RefundAmount    *float64 `json:"refund_amount" validate:"omitempty,gte=0"`
	Correction      bool     `json:"correction"`
}

func (r *renterDecisionRequest) toService() service.RenterDecision {
	return service.RenterDecision{
		Approve:         *r.Approve,
		RejectionReason: r.RejectionReason,
		RefundAmount:    r.RefundAmount,
		Correction:      r.Correction,
	}
}

type ownerInspectionRequest struct {
	Mileage                int32           `json:"mileage" validate:"gte=0"`
	FuelLevel              string          `json:"fuel_level" validate:"required,max=50"`
	VehicleCondition       string          `json:"vehicle_condition" validate:"required,max=100"`
	ExteriorCondition      string          `json:"exterior_condition" validate:"max=100"`
	InteriorCondition      string          `json:"interior_condition" validate:"max=100"`
	EngineCondition        string          `json:"engine_condition" validate:"max=100"`
	TiresCondition         string          `json:"tires_condition" validate:"max=100"`
	Photos                 []string        `json:"photos" validate:"dive,required"`
	Observations           string          `json:"observations" validate:"max=4000"`
	Damages                []damageRequest `json:"damages" validate:"dive"`
	DepositDecision        string          `json:"deposit_decision" validate:"required,oneof=full_return partial_return no_return"`
	DepositReturnAmount    float64         `json:"deposit_return_amount" validate:"gte=0"`
	DepositRetainedAmount  float64         `json:"deposit_retained_amount" validate:"gte=0"`
	DepositRetentionReason *string         `json:"deposit_retention_reason" validate:"omitempty,max=1000"`
}

func (r *ownerInspectionRequest) toDomain(bookingID int32) *domain.OwnerInspection {
	return &domain.OwnerInspection{
		BookingID:              bookingID,
		Mileage:                r.Mileage,
		FuelLevel:              r.FuelLevel,
		VehicleCondition:       r.VehicleCondition,
		ExteriorCondition:      r.ExteriorCondition,
		InteriorCondition:      r.InteriorCondition,
		EngineCondition:        r.EngineCondition,
		TiresCondition:         r.TiresCondition,
		Photos:                 r.Photos,
		Observations:           r.Observations,
		Damages:                toDamages(r.Damages),
		DepositDecision:        domain.DepositDecision(r.DepositDecision),
		DepositReturnAmount:    r.DepositReturnAmount,
		DepositRetainedAmount:  r.DepositRetainedAmount,
		DepositRetentionReason: r.DepositRetentionReason,
	}
}

type joinQueueRequest struct {
	VehicleID        int32  `json:"vehicle_id" validate:"required,gt=0"`
	DesiredStartDate string `json:"desired_start_date" validate:"required"`
	DesiredEndDate   string `json:"desired_end_date" validate:"required"`
}

type manualBlockRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=255"`
}

// parseDateRange reads two yyyy-mm-dd calendar dates.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := utils.ParseDate(startStr)
	if err != nil {
		return time.Time{}, time.Time{}, domain.InvalidInput("%v", err)
	}
	end, err := utils.ParseDate(endStr)
	if err != nil {
		return time.Time{}, time.Time{}, domain.InvalidInput("%v", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.InvalidInput("end date %s is before start date %s", endStr, startStr)
	}
	return start, end, nil
}
