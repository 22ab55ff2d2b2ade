package http

import (
	"net/http"
)

// ReleaseExpired triggers the expired-hold release outside its schedule.
func (h *Handler) ReleaseExpired(w http.ResponseWriter, r *http.Request) {
	summary, err := h.services.Release.ReleaseNow(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) RetryRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	refund, err := h.services.Refunds.Retry(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refund)
}
