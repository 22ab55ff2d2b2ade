package http

import (
	"net/http"

	"github.com/cockroachdb/errors"

	"vehicle-booking-engine/internal/domain"
)

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	caller := actor(r)
	renterID := caller.UserID
	if req.RenterID != 0 && req.RenterID != caller.UserID {
		if !caller.Privileged() {
			writeError(w, r, errors.Wrap(domain.ErrForbidden, "cannot book on behalf of another user"))
			return
		}
		renterID = req.RenterID
	}

	in, err := req.toService(renterID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.services.Bookings.CreateBooking(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.services.Bookings.GetBooking(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.services.Bookings.UpdateStatus(r.Context(), actor(r), id, domain.BookingStatus(req.Status), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ContractSigned is the signature provider's callback.
func (h *Handler) ContractSigned(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	blocked, err := h.services.Bookings.ContractSigned(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contractSignedResponse{Blocked: blocked})
}

func (h *Handler) RefundQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := h.services.Bookings.RefundQuote(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) RecordRenterInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req renterInspectionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	insp, err := h.services.Inspections.RecordRenterInspection(r.Context(), actor(r), req.toDomain(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insp)
}

func (h *Handler) DecideRenterInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req renterDecisionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	insp, err := h.services.Inspections.DecideRenterInspection(r.Context(), actor(r), id, req.toService())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *Handler) RecordOwnerInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ownerInspectionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	insp, err := h.services.Inspections.RecordOwnerInspection(r.Context(), actor(r), req.toDomain(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, insp)
}
