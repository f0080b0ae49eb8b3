package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"roombooking/internal/bookings/service"
	apperrors "roombooking/pkg/errors"
	httputil "roombooking/pkg/http"
	"roombooking/pkg/logger"
	"roombooking/pkg/middleware"
	"roombooking/pkg/model"

	"github.com/julienschmidt/httprouter"
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

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Create")
	if !ok {
		return
	}

	var req model.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Create(r.Context(), &req, actor)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
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

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	query := r.URL.Query()
	filter := model.BookingFilter{
		ResourceID:  query.Get("resource_id"),
		RequesterID: query.Get("requester_id"),
		Status:      model.BookingStatus(query.Get("status")),
	}
	if filter.From, err = httputil.ParseTimeParam(r, "from"); err != nil {
		h.writeError(w, "List", err)
		return
	}
	if filter.To, err = httputil.ParseTimeParam(r, "to"); err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Edit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Edit")
	if !ok {
		return
	}

	var req model.EditBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Edit", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Edit(r.Context(), ps.ByName("id"), actor, &req)
	if err != nil {
		h.writeError(w, "Edit", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Edit", "operation", "WriteSuccess", "error", err)
	}
}

// Approve answers 200 with the approval result, or 409 SLOT_CONFLICT naming
// the approved booking it lost to.
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Approve")
	if !ok {
		return
	}

	result, err := h.service.Approve(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Reject", h.service.Reject)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps, "Cancel", h.service.Cancel)
}

type transitionFunc func(ctx context.Context, id string, actor model.Actor) (*model.Booking, error)

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params, name string, fn transitionFunc) {
	actor, ok := h.actor(w, r, name)
	if !ok {
		return
	}

	booking, err := fn(r.Context(), ps.ByName("id"), actor)
	if err != nil {
		h.writeError(w, name, err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", name, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	start, err := httputil.ParseTimeParam(r, "start_time")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	end, err := httputil.ParseTimeParam(r, "end_time")
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}
	if start == nil || end == nil {
		h.writeError(w, "Availability", apperrors.InvalidInput("start_time and end_time are required"))
		return
	}

	availability, err := h.service.CheckAvailability(r.Context(), r.URL.Query().Get("resource_id"), *start, *end)
	if err != nil {
		h.writeError(w, "Availability", err)
		return
	}

	if err := httputil.WriteSuccess(w, availability); err != nil {
		h.log.Error("failed to write success response", "handler", "Availability", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request, name string) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, name, apperrors.Unauthorized("Authentication required"))
	}
	return actor, ok
}

func (h *BookingHandler) writeError(w http.ResponseWriter, name string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/availability", h.Availability)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Edit)
	router.POST("/api/v1/bookings/id/:id/approve", h.Approve)
	router.POST("/api/v1/bookings/id/:id/reject", h.Reject)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
}
