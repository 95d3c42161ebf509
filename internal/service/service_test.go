package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/memory"
)

type sentNotification struct {
	userID  string
	message string
}

// recordingNotifier captures notifications synchronously.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, userID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID: userID, message: message})
}

func (r *recordingNotifier) forUser(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.userID == userID {
			out = append(out, n.message)
		}
	}
	return out
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// testOptions returns options with a fixed clock and sequential ids.
func testOptions() Options {
	var seq atomic.Int64
	base := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	return Options{
		StoreTimeout: time.Second,
		MaxRetries:   3,
		Now: func() time.Time {
			return base.Add(time.Duration(seq.Load()) * time.Second)
		},
		NewID: func() string {
			return fmt.Sprintf("id-%04d", seq.Add(1))
		},
	}
}

type fixture struct {
	ledger   *Ledger
	store    *memory.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	opts := testOptions()
	stores := store.Stores()
	inbox := NewNotificationService(stores.Notifications, opts)
	return &fixture{
		ledger:   NewLedger(stores, inbox, notifier, opts),
		store:    store,
		notifier: notifier,
	}
}

func (f *fixture) createEvent(t *testing.T, hostID string, capacity int) *model.Event {
	t.Helper()
	e, err := f.ledger.Events.Create(context.Background(), hostID, model.CreateEventRequest{
		Title:       "Sunset picnic",
		Description: "Bring a blanket",
		Capacity:    capacity,
		Location:    "Riverside park",
		ScheduledAt: time.Date(2026, time.April, 2, 18, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func (f *fixture) attendeeCount(t *testing.T, eventID string) int {
	t.Helper()
	snap, err := f.ledger.CapacitySnapshot(context.Background(), eventID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap.AttendeeCount
}

// failingReservations wraps a ReservationStore and fails every create.
type failingReservations struct {
	repository.ReservationStore
	err error
}

func (f failingReservations) CreateReservation(context.Context, *model.Reservation) error {
	return f.err
}

func wantKind(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}
