package domain

type Vehicle struct {
	ID          int32   `json:"id" db:"id"`
	OwnerID     int32   `json:"owner_id" db:"owner_id"`
	Brand       string  `json:"brand" db:"brand"`
	Model       string  `json:"model" db:"model"`
	Year        int32   `json:"year" db:"year"`
	DailyPrice  float64 `json:"daily_price" db:"daily_price"`
	IsAvailable bool    `json:"is_available" db:"is_available"`
}

func (v *Vehicle) DisplayName() string {
	if v.Brand == "" && v.Model == "" {
		return "Vehicle"
	}
	if v.Model == "" {
		return v.Brand
	}
	return v.Brand + " " + v.Model
}
