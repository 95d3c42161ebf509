package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/service"
)

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	stores := memory.New().Stores()
	inbox := service.NewNotificationService(stores.Notifications, service.Options{})
	ledger := service.NewLedger(stores, inbox, inboxNotifier{inbox}, service.Options{})
	return &testServer{t: t, router: New(ledger).Router()}
}

// inboxNotifier delivers synchronously so tests can read the inbox at once.
type inboxNotifier struct{ sink service.NotificationSink }

func (n inboxNotifier) Notify(ctx context.Context, userID, message string) {
	_ = n.sink.Deliver(ctx, userID, message)
}

func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
}

func (s *testServer) createEvent(host string, capacity int) model.Event {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/events", host, model.CreateEventRequest{
		Title:       "Open mic",
		Capacity:    capacity,
		Location:    "Cafe",
		ScheduledAt: time.Date(2026, time.June, 1, 19, 0, 0, 0, time.UTC),
	})
	wantStatus(s.t, rec, http.StatusCreated)
	return decode[model.Event](s.t, rec)
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/health", "", nil)
	wantStatus(t, rec, http.StatusOK)
}

func TestMissingUserHeader(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/events", "", nil)
	wantStatus(t, rec, http.StatusUnauthorized)
}

func TestReservationFlow(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent("host", 1)
	path := "/events/" + e.ID + "/reservations"

	wantStatus(t, s.do(http.MethodPost, path, "alice", nil), http.StatusCreated)

	rec := s.do(http.MethodPost, path, "alice", nil)
	wantStatus(t, rec, http.StatusConflict)
	if got := decode[model.ErrorResponse](t, rec); got.Kind != string(apperr.KindNotAllowed) {
		t.Fatalf("duplicate kind = %q", got.Kind)
	}

	rec = s.do(http.MethodPost, path, "bob", nil)
	wantStatus(t, rec, http.StatusConflict)
	if got := decode[model.ErrorResponse](t, rec); got.Kind != string(apperr.KindCapacityFull) {
		t.Fatalf("full kind = %q", got.Kind)
	}

	rec = s.do(http.MethodGet, "/events/"+e.ID+"/capacity", "bob", nil)
	wantStatus(t, rec, http.StatusOK)
	if snap := decode[model.CapacitySnapshot](t, rec); snap.AttendeeCount != 1 || snap.Capacity != 1 || snap.Remaining != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	wantStatus(t, s.do(http.MethodDelete, path, "alice", nil), http.StatusOK)
	wantStatus(t, s.do(http.MethodDelete, path, "alice", nil), http.StatusNotFound)
	wantStatus(t, s.do(http.MethodPost, path, "bob", nil), http.StatusCreated)

	rec = s.do(http.MethodGet, "/me/reservations", "bob", nil)
	wantStatus(t, rec, http.StatusOK)
	if list := decode[[]model.Reservation](t, rec); len(list) != 1 || list[0].EventID != e.ID {
		t.Fatalf("bob reservations = %+v", list)
	}
}

func TestHostOnlyOperations(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent("host", 2)

	loc := "Library"
	rec := s.do(http.MethodPatch, "/events/"+e.ID, "mallory", model.EventPatch{Location: &loc})
	wantStatus(t, rec, http.StatusForbidden)

	rec = s.do(http.MethodPatch, "/events/"+e.ID, "host", model.EventPatch{Location: &loc})
	wantStatus(t, rec, http.StatusOK)
	if got := decode[model.Event](t, rec); got.Location != loc {
		t.Fatalf("location = %q", got.Location)
	}

	wantStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/reservations", "a", nil), http.StatusCreated)
	wantStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/reservations", "b", nil), http.StatusCreated)
	one := 1
	rec = s.do(http.MethodPatch, "/events/"+e.ID, "host", model.EventPatch{Capacity: &one})
	wantStatus(t, rec, http.StatusConflict)
	if got := decode[model.ErrorResponse](t, rec); got.Kind != string(apperr.KindCapacity) {
		t.Fatalf("shrink kind = %q", got.Kind)
	}

	wantStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/cancel", "mallory", nil), http.StatusForbidden)
	rec = s.do(http.MethodPost, "/events/"+e.ID+"/cancel", "host", nil)
	wantStatus(t, rec, http.StatusOK)
	if released := decode[[]model.Reservation](t, rec); len(released) != 2 {
		t.Fatalf("released = %+v", released)
	}
	wantStatus(t, s.do(http.MethodPost, "/events/"+e.ID+"/reservations", "c", nil), http.StatusConflict)

	rec = s.do(http.MethodGet, "/me/notifications", "a", nil)
	wantStatus(t, rec, http.StatusOK)
	if inbox := decode[[]model.Notification](t, rec); len(inbox) != 2 {
		t.Fatalf("inbox = %+v", inbox)
	}
}

func TestLifecycleAndAttendance(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent("host", 2)
	status := "/events/" + e.ID + "/status"

	wantStatus(t, s.do(http.MethodPost, status, "host", model.StatusRequest{Status: model.StatusCompleted}), http.StatusConflict)
	wantStatus(t, s.do(http.MethodPost, status, "host", model.StatusRequest{Status: "paused"}), http.StatusBadRequest)
	wantStatus(t, s.do(http.MethodPost, status, "host", model.StatusRequest{Status: model.StatusOngoing}), http.StatusOK)

	att := "/events/" + e.ID + "/attendance"
	wantStatus(t, s.do(http.MethodPost, att, "guest", model.AttendanceRequest{UserID: "guest", Attended: true}), http.StatusForbidden)
	rec := s.do(http.MethodPost, att, "host", model.AttendanceRequest{UserID: "guest", Attended: true})
	wantStatus(t, rec, http.StatusOK)

	rec = s.do(http.MethodGet, "/users/guest/streak", "anyone", nil)
	wantStatus(t, rec, http.StatusOK)
	if st := decode[model.Streak](t, rec); st.StreakCount != 1 || !st.Active {
		t.Fatalf("streak = %+v", st)
	}
	wantStatus(t, s.do(http.MethodGet, "/users/nobody/streak", "anyone", nil), http.StatusNotFound)
}

func TestUpvoteEndpoints(t *testing.T) {
	s := newTestServer(t)
	e := s.createEvent("host", 2)
	path := "/events/" + e.ID + "/upvotes"

	wantStatus(t, s.do(http.MethodPost, path, "a", nil), http.StatusCreated)
	wantStatus(t, s.do(http.MethodPost, path, "a", nil), http.StatusConflict)
	wantStatus(t, s.do(http.MethodPost, path, "b", nil), http.StatusCreated)
	wantStatus(t, s.do(http.MethodDelete, path, "b", nil), http.StatusNoContent)
	wantStatus(t, s.do(http.MethodDelete, path, "b", nil), http.StatusNotFound)

	rec := s.do(http.MethodGet, path, "a", nil)
	wantStatus(t, rec, http.StatusOK)
	if c := decode[model.UpvoteCount](t, rec); c.Count != 1 || !c.Upvoted {
		t.Fatalf("count = %+v", c)
	}
	wantStatus(t, s.do(http.MethodGet, "/events/missing/upvotes", "a", nil), http.StatusNotFound)
}

func TestBadBodies(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(`{"title":"x","bogus":1}`))
	req.Header.Set(UserHeader, "host")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	wantStatus(t, rec, http.StatusBadRequest)

	rec = s.do(http.MethodPost, "/events", "host", model.CreateEventRequest{Title: "x", Capacity: 0})
	wantStatus(t, rec, http.StatusBadRequest)
	if got := decode[model.ErrorResponse](t, rec); got.Kind != string(apperr.KindValidation) {
		t.Fatalf("kind = %q", got.Kind)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrNotFound, http.StatusNotFound},
		{apperr.ErrNotHost, http.StatusForbidden},
		{apperr.ErrAlreadyReserved, http.StatusConflict},
		{apperr.ErrAlreadyUpvoted, http.StatusConflict},
		{apperr.ErrCapacityFull, http.StatusConflict},
		{apperr.ErrCapacity, http.StatusConflict},
		{apperr.ErrState, http.StatusConflict},
		{apperr.ErrValidation, http.StatusBadRequest},
		{apperr.ErrConflict, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", apperr.ErrUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestListEventsByCategory(t *testing.T) {
	s := newTestServer(t)
	for _, category := range []string{"music", "games", "music"} {
		rec := s.do(http.MethodPost, "/events", "host", model.CreateEventRequest{
			Title:       "Meetup",
			CategoryID:  category,
			Capacity:    5,
			ScheduledAt: time.Date(2026, time.June, 1, 19, 0, 0, 0, time.UTC),
		})
		wantStatus(t, rec, http.StatusCreated)
	}

	rec := s.do(http.MethodGet, "/events?category=music", "guest", nil)
	wantStatus(t, rec, http.StatusOK)
	events := decode[[]model.Event](t, rec)
	if len(events) != 2 {
		t.Fatalf("music events = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.CategoryID != "music" {
			t.Fatalf("unexpected category %q", e.CategoryID)
		}
	}
}
