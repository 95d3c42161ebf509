package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type route struct {
	method  string
	pattern string
	handle  func(*Handler) http.HandlerFunc
}

// routes lists every authenticated endpoint. /health is public.
var routes = []route{
	{http.MethodGet, "/events", func(h *Handler) http.HandlerFunc { return h.ListEvents }},
	{http.MethodPost, "/events", func(h *Handler) http.HandlerFunc { return h.CreateEvent }},
	{http.MethodGet, "/events/{id}", func(h *Handler) http.HandlerFunc { return h.GetEvent }},
	{http.MethodPatch, "/events/{id}", func(h *Handler) http.HandlerFunc { return h.UpdateEvent }},
	{http.MethodDelete, "/events/{id}", func(h *Handler) http.HandlerFunc { return h.DeleteEvent }},
	{http.MethodGet, "/events/{id}/capacity", func(h *Handler) http.HandlerFunc { return h.CapacitySnapshot }},
	{http.MethodPost, "/events/{id}/cancel", func(h *Handler) http.HandlerFunc { return h.CancelEvent }},
	{http.MethodPost, "/events/{id}/status", func(h *Handler) http.HandlerFunc { return h.TransitionEvent }},

	{http.MethodGet, "/events/{id}/reservations", func(h *Handler) http.HandlerFunc { return h.EventReservations }},
	{http.MethodPost, "/events/{id}/reservations", func(h *Handler) http.HandlerFunc { return h.Reserve }},
	{http.MethodDelete, "/events/{id}/reservations", func(h *Handler) http.HandlerFunc { return h.CancelReservation }},

	{http.MethodGet, "/events/{id}/upvotes", func(h *Handler) http.HandlerFunc { return h.UpvoteCount }},
	{http.MethodPost, "/events/{id}/upvotes", func(h *Handler) http.HandlerFunc { return h.Upvote }},
	{http.MethodDelete, "/events/{id}/upvotes", func(h *Handler) http.HandlerFunc { return h.RemoveUpvote }},

	{http.MethodPost, "/events/{id}/attendance", func(h *Handler) http.HandlerFunc { return h.MarkAttendance }},
	{http.MethodGet, "/users/{userID}/streak", func(h *Handler) http.HandlerFunc { return h.Streak }},

	{http.MethodGet, "/me/reservations", func(h *Handler) http.HandlerFunc { return h.MyReservations }},
	{http.MethodGet, "/me/notifications", func(h *Handler) http.HandlerFunc { return h.Notifications }},
	{http.MethodPost, "/me/notifications/{id}/read", func(h *Handler) http.HandlerFunc { return h.MarkNotificationRead }},
	{http.MethodDelete, "/me/notifications/{id}", func(h *Handler) http.HandlerFunc { return h.DeleteNotification }},
}

// Router builds the chi router with the global middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger)
	r.Use(CORS)

	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		for _, rt := range routes {
			r.Method(rt.method, rt.pattern, rt.handle(h))
		}
	})
	return r
}
