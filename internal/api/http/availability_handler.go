package http

import (
	"net/http"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/utils"
)

func (h *Handler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	blocks, err := h.services.Availability.Blocks(r.Context(), vehicleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *Handler) AddAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req manualBlockRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	block, err := h.services.Availability.AddManualBlock(r.Context(), actor(r), vehicleID, start, end, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (h *Handler) RemoveAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	blockID, err := pathID(r, "blockId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.services.Availability.RemoveManualBlock(r.Context(), actor(r), vehicleID, blockID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type availabilityResponse struct {
	VehicleID int32  `json:"vehicle_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Available bool   `json:"available"`
}

// CheckAvailability answers whether the vehicle can be booked for
// ?start=...&end=..., both yyyy-mm-dd or RFC 3339.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	start, err := utils.ParseTimestamp(q.Get("start"))
	if err != nil {
		writeError(w, r, domain.InvalidInput("start: %v", err))
		return
	}
	end, err := utils.ParseTimestamp(q.Get("end"))
	if err != nil {
		writeError(w, r, domain.InvalidInput("end: %v", err))
		return
	}
	available, err := h.services.Conflicts.IsAvailable(r.Context(), vehicleID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		VehicleID: vehicleID,
		StartDate: utils.FormatDate(start),
		EndDate:   utils.FormatDate(end),
		Available: available,
	})
}
