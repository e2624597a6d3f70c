package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"roombook/internal/bookings/service"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"roombook/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// CreateBookingRequest uses pointers for the times so a missing field is told
// apart from midnight.
type CreateBookingRequest struct {
	Room           string           `json:"room"`
	RequesterEmail string           `json:"requester_email"`
	Date           model.Date       `json:"date"`
	TimeFrom       *model.TimeOfDay `json:"time_from"`
	TimeTo         *model.TimeOfDay `json:"time_to"`
}

func (req *CreateBookingRequest) toBooking() (*model.Booking, error) {
	if req.TimeFrom == nil || req.TimeTo == nil {
		return nil, apperrors.InvalidInput("time_from and time_to are required")
	}
	return &model.Booking{
		Room:           req.Room,
		RequesterEmail: req.RequesterEmail,
		Date:           req.Date,
		TimeFrom:       *req.TimeFrom,
		TimeTo:         *req.TimeTo,
	}, nil
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	bookings, err := h.service.List(r.Context(), query.Get("room"), model.Date(query.Get("date")))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body").WithCause(err))
		return
	}

	booking, err := req.toBooking()
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	created, err := h.service.Create(r.Context(), booking)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	message := fmt.Sprintf("Booking created successfully for room: %s on date: %s from %s to %s",
		created.Room, created.Date, created.TimeFrom, created.TimeTo)
	if err := httputil.WriteCreated(w, created, message); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Cancel(r.Context(), id); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	message := fmt.Sprintf("Booking with ID: %s was successfully cancelled.", id)
	if err := httputil.WriteMessage(w, http.StatusOK, message); err != nil {
		h.log.Error("failed to write message response", "handler", "Cancel", "operation", "WriteMessage", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/bookings", h.List)
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
}
