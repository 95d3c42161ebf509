package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

func TestConcurrentReservationsNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	const capacity, extra = 5, 15
	e := f.createEvent(t, "host", capacity)

	var wg sync.WaitGroup
	var succeeded, full int64
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := f.ledger.Reserve(context.Background(), userID, e.ID)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, apperr.ErrCapacityFull):
				atomic.AddInt64(&full, 1)
			default:
				t.Errorf("reserve %s: unexpected error %v", userID, err)
			}
		}(fmt.Sprintf("user-%02d", i))
	}
	wg.Wait()

	if succeeded != capacity {
		t.Fatalf("succeeded = %d, want %d", succeeded, capacity)
	}
	if full != extra {
		t.Fatalf("capacity full = %d, want %d", full, extra)
	}
	if got := f.attendeeCount(t, e.ID); got != capacity {
		t.Fatalf("attendee_count = %d, want %d", got, capacity)
	}
	active, err := f.ledger.EventReservations(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != capacity {
		t.Fatalf("active reservations = %d, want %d", len(active), capacity)
	}
}

func TestConcurrentDuplicateReservationsCreateOne(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.createEvent(t, "host", 50)

	var wg sync.WaitGroup
	var succeeded, rejected int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Reserve(context.Background(), "same-user", e.ID)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, apperr.ErrAlreadyReserved):
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != 19 {
		t.Fatalf("succeeded = %d rejected = %d", succeeded, rejected)
	}
	if got := f.attendeeCount(t, e.ID); got != 1 {
		t.Fatalf("attendee_count = %d, want 1", got)
	}
}

func TestSecondReserveIsNotAllowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 3)
	if _, err := f.ledger.Reserve(ctx, "a", e.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err := f.ledger.Reserve(ctx, "a", e.ID)
	wantKind(t, err, apperr.ErrNotAllowed)
	wantKind(t, err, apperr.ErrAlreadyReserved)
	if got := f.attendeeCount(t, e.ID); got != 1 {
		t.Fatalf("attendee_count = %d, want 1", got)
	}
}

func TestReserveCancelReserveRoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 3)
	if _, err := f.ledger.Reserve(ctx, "other", e.ID); err != nil {
		t.Fatalf("seed reserve: %v", err)
	}
	before := f.attendeeCount(t, e.ID)

	if _, err := f.ledger.Reserve(ctx, "a", e.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	canceled, err := f.ledger.CancelReservation(ctx, "a", e.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != model.ReservationCanceled {
		t.Fatalf("status = %s, want canceled", canceled.Status)
	}
	if got := f.attendeeCount(t, e.ID); got != before {
		t.Fatalf("after reserve+cancel attendee_count = %d, want %d", got, before)
	}

	if _, err := f.ledger.Reserve(ctx, "a", e.ID); err != nil {
		t.Fatalf("reserve again: %v", err)
	}
	if got := f.attendeeCount(t, e.ID); got != before+1 {
		t.Fatalf("after re-reserve attendee_count = %d, want %d", got, before+1)
	}
	ok, err := f.ledger.Reservations.HasActiveReservation(ctx, "a", e.ID)
	if err != nil || !ok {
		t.Fatalf("has active = %v, %v", ok, err)
	}
}

func TestCapacityTwoScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 2)

	for _, u := range []string{"A", "B"} {
		if _, err := f.ledger.Reserve(ctx, u, e.ID); err != nil {
			t.Fatalf("reserve %s: %v", u, err)
		}
	}
	if got := f.attendeeCount(t, e.ID); got != 2 {
		t.Fatalf("attendee_count = %d, want 2", got)
	}
	_, err := f.ledger.Reserve(ctx, "C", e.ID)
	wantKind(t, err, apperr.ErrCapacityFull)

	if _, err := f.ledger.CancelReservation(ctx, "A", e.ID); err != nil {
		t.Fatalf("cancel A: %v", err)
	}
	if snap, err := f.ledger.CapacitySnapshot(ctx, e.ID); err != nil || snap.Remaining != 1 {
		t.Fatalf("snapshot after cancel = %+v, %v", snap, err)
	}
	if _, err := f.ledger.Reserve(ctx, "C", e.ID); err != nil {
		t.Fatalf("reserve C after A canceled: %v", err)
	}
	if got := f.attendeeCount(t, e.ID); got != 2 {
		t.Fatalf("attendee_count = %d, want 2", got)
	}
}

func TestReserveStateAndExistence(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.Reserve(ctx, "a", "missing")
	wantKind(t, err, apperr.ErrNotFound)

	e := f.createEvent(t, "host", 3)
	if _, err := f.ledger.TransitionEvent(ctx, "host", e.ID, model.StatusOngoing); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.ledger.Reserve(ctx, "a", e.ID); err != nil {
		t.Fatalf("reserve ongoing: %v", err)
	}
	if _, err := f.ledger.TransitionEvent(ctx, "host", e.ID, model.StatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = f.ledger.Reserve(ctx, "b", e.ID)
	wantKind(t, err, apperr.ErrState)
}

func TestCancelWithoutReservationIsNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 3)
	_, err := f.ledger.CancelReservation(ctx, "ghost", e.ID)
	wantKind(t, err, apperr.ErrNotFound)
	if f.notifier.count() != 0 {
		t.Fatalf("notifications sent on failure: %d", f.notifier.count())
	}
}

func TestFailedInsertReleasesSpot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 1)

	insertErr := errors.New("disk full")
	opts := testOptions()
	ledger := NewReservationLedger(
		failingReservations{ReservationStore: f.store, err: insertErr},
		f.ledger.Events,
		opts,
	)
	_, err := ledger.Reserve(ctx, "a", e.ID)
	if !errors.Is(err, insertErr) {
		t.Fatalf("error = %v, want %v", err, insertErr)
	}
	if got := f.attendeeCount(t, e.ID); got != 0 {
		t.Fatalf("attendee_count = %d, want 0 after compensation", got)
	}

	// The spot is usable again through the healthy ledger.
	if _, err := f.ledger.Reserve(ctx, "b", e.ID); err != nil {
		t.Fatalf("reserve after compensation: %v", err)
	}
}

// gatedReservations holds CreateReservation until proceed is closed.
type gatedReservations struct {
	repository.ReservationStore
	entered chan struct{}
	proceed chan struct{}
}

func (g gatedReservations) CreateReservation(ctx context.Context, r *model.Reservation) error {
	close(g.entered)
	<-g.proceed
	return g.ReservationStore.CreateReservation(ctx, r)
}

func TestCancelEventDuringReserveLeavesNoActiveReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 2)

	gate := gatedReservations{
		ReservationStore: f.store,
		entered:          make(chan struct{}),
		proceed:          make(chan struct{}),
	}
	opts := testOptions()
	opts.StoreTimeout = 10 * time.Second
	ledger := NewReservationLedger(gate, f.ledger.Events, opts)

	done := make(chan error, 1)
	go func() {
		_, err := ledger.Reserve(ctx, "alice", e.ID)
		done <- err
	}()

	<-gate.entered
	canceled, err := f.ledger.CancelEvent(ctx, "host", e.ID)
	if err != nil {
		t.Fatalf("cancel event: %v", err)
	}
	if len(canceled) != 0 {
		t.Fatalf("cascade canceled %d reservations before the row existed", len(canceled))
	}
	close(gate.proceed)

	wantKind(t, <-done, apperr.ErrState)
	if got := f.attendeeCount(t, e.ID); got != 0 {
		t.Fatalf("attendee_count = %d, want 0", got)
	}
	active, err := f.ledger.EventReservations(ctx, e.ID)
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active reservations on canceled event: %+v", active)
	}
}

func TestCanceledRequestSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.createEvent(t, "host", 3)

	ctx, cancel := context.WithCancel(context.Background())
	r, err := f.ledger.Reservations.Reserve(ctx, "a", e.ID)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	cancel()
	f.ledger.notify(ctx, "a", "You have RSVP'd to event "+r.EventID)

	if got := f.notifier.forUser("a"); len(got) != 0 {
		t.Fatalf("notifications after cancel = %v", got)
	}
	// The committed reservation stands.
	if n := f.attendeeCount(t, e.ID); n != 1 {
		t.Fatalf("attendee_count = %d, want 1", n)
	}
}

func TestReserveNotifiesOnlyOnSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 1)
	if _, err := f.ledger.Reserve(ctx, "a", e.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.ledger.Reserve(ctx, "b", e.ID); err == nil {
		t.Fatal("expected capacity failure")
	}
	if got := f.notifier.forUser("a"); len(got) != 1 {
		t.Fatalf("a notifications = %v", got)
	}
	if got := f.notifier.forUser("b"); len(got) != 0 {
		t.Fatalf("b notifications = %v", got)
	}
}

func TestUserReservationsNewestFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	first := f.createEvent(t, "host", 3)
	second := f.createEvent(t, "host", 3)
	if _, err := f.ledger.Reserve(ctx, "a", first.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.ledger.Reserve(ctx, "a", second.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, err := f.ledger.UserReservations(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].EventID != second.ID || got[1].EventID != first.ID {
		t.Fatalf("reservations = %+v", got)
	}
}

func TestHostCancelCascadesToReservations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 5)
	for _, u := range []string{"a", "b"} {
		if _, err := f.ledger.Reserve(ctx, u, e.ID); err != nil {
			t.Fatalf("reserve %s: %v", u, err)
		}
	}

	_, err := f.ledger.CancelEvent(ctx, "a", e.ID)
	wantKind(t, err, apperr.ErrNotHost)

	canceled, err := f.ledger.CancelEvent(ctx, "host", e.ID)
	if err != nil {
		t.Fatalf("cancel event: %v", err)
	}
	if len(canceled) != 2 {
		t.Fatalf("canceled reservations = %d, want 2", len(canceled))
	}
	for _, r := range canceled {
		if r.Status != model.ReservationCanceled {
			t.Fatalf("reservation %s status = %s", r.ID, r.Status)
		}
	}
	active, err := f.ledger.EventReservations(ctx, e.ID)
	if err != nil || len(active) != 0 {
		t.Fatalf("active after cascade = %d, %v", len(active), err)
	}
	snap, _ := f.ledger.CapacitySnapshot(ctx, e.ID)
	if snap.Status != model.StatusCanceled || snap.AttendeeCount != 0 {
		t.Fatalf("snapshot = %+v", snap)
	}

	_, err = f.ledger.Reserve(ctx, "c", e.ID)
	wantKind(t, err, apperr.ErrState)

	for _, u := range []string{"a", "b"} {
		if msgs := f.notifier.forUser(u); len(msgs) != 2 {
			t.Fatalf("%s notifications = %v, want RSVP + canceled", u, msgs)
		}
	}
}
