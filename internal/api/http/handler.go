package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"vehicle-booking-engine/internal/domain"
	"vehicle-booking-engine/internal/service"
)

// Releaser runs the expired-hold release on demand.
type Releaser interface {
	ReleaseNow(ctx context.Context) (*domain.ReleaseSummary, error)
}

// Services are the engine operations exposed over HTTP.
type Services struct {
	Bookings     service.BookingService
	Inspections  service.InspectionService
	Queue        service.WaitingQueueService
	Availability service.AvailabilityService
	Conflicts    service.ConflictChecker
	Refunds      service.RefundService
	Release      Releaser
}

type Handler struct {
	services  Services
	validator *validator.Validate
}

func NewHandler(services Services) *Handler {
	return &Handler{
		services:  services,
		validator: validator.New(),
	}
}

// NewRouter registers every API route under its security name.
func NewRouter(h *Handler, auth *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Handler)

	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost).Name("createBooking")
	api.HandleFunc("/bookings/{id:[0-9]+}", h.GetBooking).Methods(http.MethodGet).Name("getBooking")
	api.HandleFunc("/bookings/{id:[0-9]+}/status", h.UpdateBookingStatus).Methods(http.MethodPatch).Name("updateBookingStatus")
	api.HandleFunc("/bookings/{id:[0-9]+}/contract/signed", h.ContractSigned).Methods(http.MethodPost).Name("contractSigned")
	api.HandleFunc("/bookings/{id:[0-9]+}/refund-quote", h.RefundQuote).Methods(http.MethodGet).Name("refundQuote")
	api.HandleFunc("/bookings/{id:[0-9]+}/inspections/renter", h.RecordRenterInspection).Methods(http.MethodPost).Name("recordRenterInspection")
	api.HandleFunc("/bookings/{id:[0-9]+}/inspections/renter/decision", h.DecideRenterInspection).Methods(http.MethodPost).Name("decideRenterInspection")
	api.HandleFunc("/bookings/{id:[0-9]+}/inspections/owner", h.RecordOwnerInspection).Methods(http.MethodPost).Name("recordOwnerInspection")

	api.HandleFunc("/waiting-queue", h.JoinWaitingQueue).Methods(http.MethodPost).Name("joinWaitingQueue")
	api.HandleFunc("/waiting-queue", h.ListWaitingQueue).Methods(http.MethodGet).Name("listWaitingQueue")
	api.HandleFunc("/waiting-queue/{id:[0-9]+}", h.LeaveWaitingQueue).Methods(http.MethodDelete).Name("leaveWaitingQueue")

	api.HandleFunc("/vehicles/release-expired", h.ReleaseExpired).Methods(http.MethodPost).Name("releaseExpired")
	api.HandleFunc("/vehicles/{id:[0-9]+}/availability/check", h.CheckAvailability).Methods(http.MethodGet).Name("checkAvailability")
	api.HandleFunc("/vehicles/{id:[0-9]+}/availability", h.ListAvailability).Methods(http.MethodGet).Name("listAvailability")
	api.HandleFunc("/vehicles/{id:[0-9]+}/availability", h.AddAvailability).Methods(http.MethodPost).Name("addAvailability")
	api.HandleFunc("/vehicles/{id:[0-9]+}/availability/{blockId:[0-9]+}", h.RemoveAvailability).Methods(http.MethodDelete).Name("removeAvailability")

	api.HandleFunc("/refunds/{id:[0-9]+}/retry", h.RetryRefund).Methods(http.MethodPost).Name("retryRefund")

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads the JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.InvalidInput("invalid request body: %v", err)
	}
	if err := h.validator.Struct(dst); err != nil {
		return domain.InvalidInput("validation failed: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int32, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 32)
	if err != nil || id <= 0 {
		return 0, domain.InvalidInput("invalid %s", name)
	}
	return int32(id), nil
}

// actor returns the authenticated caller. Public routes get the zero actor.
func actor(r *http.Request) domain.Actor {
	a, _ := ActorFromContext(r.Context())
	return a
}
