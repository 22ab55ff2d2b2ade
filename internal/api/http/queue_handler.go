package http

import (
	"net/http"
)

func (h *Handler) JoinWaitingQueue(w http.ResponseWriter, r *http.Request) {
	var req joinQueueRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, end, err := parseDateRange(req.DesiredStartDate, req.DesiredEndDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := h.services.Queue.Join(r.Context(), req.VehicleID, actor(r).UserID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListWaitingQueue(w http.ResponseWriter, r *http.Request) {
	entries, err := h.services.Queue.ListForUser(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) LeaveWaitingQueue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.services.Queue.Leave(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
