// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the engagement ledger.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/service"
)

// Handler holds all HTTP handlers for the ledger API.
type Handler struct {
	ledger *service.Ledger
}

// New constructs a Handler.
func New(ledger *service.Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, kind apperr.Kind) {
	writeJSON(w, status, model.ErrorResponse{Error: msg, Kind: string(kind)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// statusFor maps a ledger error kind to an HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNotAllowed:
		if errors.Is(err, apperr.ErrAlreadyReserved) || errors.Is(err, apperr.ErrAlreadyUpvoted) {
			return http.StatusConflict
		}
		return http.StatusForbidden
	case apperr.KindCapacityFull, apperr.KindCapacity, apperr.KindState:
		return http.StatusConflict
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict, apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err with the status its kind maps to. Errors
// outside the taxonomy are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, status, "internal error", "")
		return
	}
	var e *apperr.Error
	msg := err.Error()
	if errors.As(err, &e) {
		msg = e.Message
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, msg, apperr.KindOf(err))
}

// emptyIfNil returns an empty slice rather than nil so clients get [] not null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), apperr.KindValidation)
		return
	}
	event, err := h.ledger.CreateEvent(r.Context(), userID(r), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events, optionally filtered with ?host= and ?category=.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.ledger.ListEvents(r.Context(), repository.EventFilter{
		HostID:     q.Get("host"),
		CategoryID: q.Get("category"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(events))
}

// GetEvent handles GET /events/{id}.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.ledger.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CapacitySnapshot handles GET /events/{id}/capacity.
func (h *Handler) CapacitySnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.CapacitySnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UpdateEvent handles PATCH /events/{id}.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), apperr.KindValidation)
		return
	}
	event, err := h.ledger.UpdateEvent(r.Context(), userID(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CancelEvent handles POST /events/{id}/cancel and returns the reservations
// the cancellation released.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	canceled, err := h.ledger.CancelEvent(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(canceled))
}

// TransitionEvent handles POST /events/{id}/status.
func (h *Handler) TransitionEvent(w http.ResponseWriter, r *http.Request) {
	var req model.StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), apperr.KindValidation)
		return
	}
	event, err := h.ledger.TransitionEvent(r.Context(), userID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteEvent(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// Reserve handles POST /events/{id}/reservations.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.Reserve(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// CancelReservation handles DELETE /events/{id}/reservations.
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.CancelReservation(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EventReservations handles GET /events/{id}/reservations.
func (h *Handler) EventReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.EventReservations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// MyReservations handles GET /me/reservations.
func (h *Handler) MyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.UserReservations(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// ─── Upvotes ──────────────────────────────────────────────────────────────────

// Upvote handles POST /events/{id}/upvotes.
func (h *Handler) Upvote(w http.ResponseWriter, r *http.Request) {
	u, err := h.ledger.Upvote(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// RemoveUpvote handles DELETE /events/{id}/upvotes.
func (h *Handler) RemoveUpvote(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.RemoveUpvote(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpvoteCount handles GET /events/{id}/upvotes.
func (h *Handler) UpvoteCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.ledger.UpvoteCount(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

// ─── Attendance & streaks ─────────────────────────────────────────────────────

// MarkAttendance handles POST /events/{id}/attendance.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	var req model.AttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), apperr.KindValidation)
		return
	}
	streak, err := h.ledger.MarkAttendance(r.Context(), userID(r), chi.URLParam(r, "id"), req.UserID, req.Attended)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

// Streak handles GET /users/{userID}/streak.
func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	streak, err := h.ledger.Streak(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}

// ─── Notifications ────────────────────────────────────────────────────────────

// Notifications handles GET /me/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.Notifications(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// MarkNotificationRead handles POST /me/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.MarkNotificationRead(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification handles DELETE /me/notifications/{id}.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteNotification(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
