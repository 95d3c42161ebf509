// Package storetest holds behaviour checks every store backend must pass.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// Run exercises stores. Records use fresh UUIDs, so a shared database is fine.
func Run(t *testing.T, stores repository.Stores) {
	t.Helper()
	t.Run("ConditionalIncrementHonoursCapacity", func(t *testing.T) { conditionalIncrement(t, stores) })
	t.Run("IncrementRequiresReservableStatus", func(t *testing.T) { incrementStatus(t, stores) })
	t.Run("UpdateEventGuards", func(t *testing.T) { updateGuards(t, stores) })
	t.Run("DeleteEventRequiresNoAttendees", func(t *testing.T) { deleteGuard(t, stores) })
	t.Run("OneActiveReservationPerPair", func(t *testing.T) { activePair(t, stores) })
	t.Run("UpvotesUniqueAndSummed", func(t *testing.T) { upvotes(t, stores) })
	t.Run("StreakCompareAndSet", func(t *testing.T) { streaks(t, stores) })
	t.Run("NotificationsScopedToOwner", func(t *testing.T) { notifications(t, stores) })
	t.Run("ListEventsFilters", func(t *testing.T) { listFilters(t, stores) })
}

// Truncate to millisecond precision so values survive every backend intact.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newEvent(t *testing.T, stores repository.Stores, capacity int) *model.Event {
	t.Helper()
	ts := now()
	e := &model.Event{
		ID:          uuid.NewString(),
		HostID:      uuid.NewString(),
		Title:       "Store check",
		Capacity:    capacity,
		ScheduledAt: ts.Add(24 * time.Hour),
		Status:      model.StatusUpcoming,
		Version:     1,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := stores.Events.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func getEvent(t *testing.T, stores repository.Stores, id string) *model.Event {
	t.Helper()
	e, err := stores.Events.GetEvent(context.Background(), id)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	return e
}

func conditionalIncrement(t *testing.T, stores repository.Stores) {
	const capacity, callers = 4, 24
	e := newEvent(t, stores, capacity)

	var wg sync.WaitGroup
	var won int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := stores.Events.IncrementAttendees(context.Background(), e.ID)
			if err != nil {
				t.Errorf("increment: %v", err)
				return
			}
			if ok {
				atomic.AddInt64(&won, 1)
			}
		}()
	}
	wg.Wait()

	if won != capacity {
		t.Fatalf("increments won = %d, want %d", won, capacity)
	}
	if got := getEvent(t, stores, e.ID).AttendeeCount; got != capacity {
		t.Fatalf("attendee_count = %d, want %d", got, capacity)
	}

	for i := 0; i < capacity+2; i++ {
		if err := stores.Events.DecrementAttendees(context.Background(), e.ID); err != nil {
			t.Fatalf("decrement: %v", err)
		}
	}
	if got := getEvent(t, stores, e.ID).AttendeeCount; got != 0 {
		t.Fatalf("attendee_count after decrements = %d, want 0", got)
	}
	if err := stores.Events.DecrementAttendees(context.Background(), uuid.NewString()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("decrement missing = %v, want ErrNotFound", err)
	}
}

func incrementStatus(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	e := newEvent(t, stores, 3)
	err := stores.Events.TransitionStatus(ctx, e.ID, []model.EventStatus{model.StatusOngoing}, model.StatusCompleted)
	if !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("transition from wrong state = %v", err)
	}
	if err := stores.Events.TransitionStatus(ctx, e.ID, model.ReservableStatuses, model.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	ok, err := stores.Events.IncrementAttendees(ctx, e.ID)
	if err != nil || ok {
		t.Fatalf("increment canceled = %v, %v", ok, err)
	}
	ok, err = stores.Events.IncrementAttendees(ctx, uuid.NewString())
	if err != nil || ok {
		t.Fatalf("increment missing = %v, %v", ok, err)
	}
}

func updateGuards(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	e := newEvent(t, stores, 3)
	for i := 0; i < 2; i++ {
		if ok, err := stores.Events.IncrementAttendees(ctx, e.ID); err != nil || !ok {
			t.Fatalf("increment: %v, %v", ok, err)
		}
	}

	one := 1
	err := stores.Events.UpdateEvent(ctx, e.ID, e.Version, model.EventPatch{Capacity: &one})
	if !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("shrink below attendees = %v", err)
	}
	loc := "Hall B"
	err = stores.Events.UpdateEvent(ctx, e.ID, e.Version+7, model.EventPatch{Location: &loc})
	if !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("stale version = %v", err)
	}

	two := 2
	if err := stores.Events.UpdateEvent(ctx, e.ID, e.Version, model.EventPatch{Capacity: &two, Location: &loc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := getEvent(t, stores, e.ID)
	if got.Capacity != 2 || got.Location != loc || got.Version != e.Version+1 || got.Title != e.Title {
		t.Fatalf("event after update = %+v", got)
	}
}

func deleteGuard(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	e := newEvent(t, stores, 2)
	if ok, err := stores.Events.IncrementAttendees(ctx, e.ID); err != nil || !ok {
		t.Fatalf("increment: %v, %v", ok, err)
	}
	if err := stores.Events.DeleteEvent(ctx, e.ID); !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("delete with attendee = %v", err)
	}
	if err := stores.Events.DecrementAttendees(ctx, e.ID); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := stores.Events.DeleteEvent(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := stores.Events.GetEvent(ctx, e.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
}

func activePair(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	e := newEvent(t, stores, 5)
	user := uuid.NewString()
	mk := func(at time.Time) *model.Reservation {
		return &model.Reservation{
			ID:        uuid.NewString(),
			UserID:    user,
			EventID:   e.ID,
			Status:    model.ReservationActive,
			CreatedAt: at,
			UpdatedAt: at,
		}
	}

	first := mk(now())
	if err := stores.Reservations.CreateReservation(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := stores.Reservations.CreateReservation(ctx, mk(now())); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second active = %v, want ErrDuplicate", err)
	}
	got, err := stores.Reservations.GetActiveReservation(ctx, user, e.ID)
	if err != nil || got.ID != first.ID {
		t.Fatalf("get active = %+v, %v", got, err)
	}

	if err := stores.Reservations.CancelReservation(ctx, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := stores.Reservations.CancelReservation(ctx, first.ID); !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("cancel twice = %v", err)
	}
	if _, err := stores.Reservations.GetActiveReservation(ctx, user, e.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get after cancel = %v", err)
	}

	second := mk(now().Add(time.Second))
	if err := stores.Reservations.CreateReservation(ctx, second); err != nil {
		t.Fatalf("re-reserve after cancel: %v", err)
	}
	other := &model.Reservation{
		ID: uuid.NewString(), UserID: uuid.NewString(), EventID: e.ID,
		Status: model.ReservationActive, CreatedAt: now().Add(2 * time.Second), UpdatedAt: now(),
	}
	if err := stores.Reservations.CreateReservation(ctx, other); err != nil {
		t.Fatalf("other user: %v", err)
	}

	byEvent, err := stores.Reservations.ListActiveByEvent(ctx, e.ID)
	if err != nil {
		t.Fatalf("list by event: %v", err)
	}
	if len(byEvent) != 2 || byEvent[0].ID != other.ID || byEvent[1].ID != second.ID {
		t.Fatalf("by event = %+v", byEvent)
	}
	byUser, err := stores.Reservations.ListActiveByUser(ctx, user)
	if err != nil || len(byUser) != 1 || byUser[0].ID != second.ID {
		t.Fatalf("by user = %+v, %v", byUser, err)
	}
}

func upvotes(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	eventID := uuid.NewString()
	for i := 0; i < 3; i++ {
		u := &model.Upvote{ID: uuid.NewString(), UserID: uuid.NewString(), EventID: eventID, Count: 1, CreatedAt: now()}
		if err := stores.Upvotes.CreateUpvote(ctx, u); err != nil {
			t.Fatalf("upvote: %v", err)
		}
	}
	voter := uuid.NewString()
	u := &model.Upvote{ID: uuid.NewString(), UserID: voter, EventID: eventID, Count: 1, CreatedAt: now()}
	if err := stores.Upvotes.CreateUpvote(ctx, u); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	dup := *u
	dup.ID = uuid.NewString()
	if err := stores.Upvotes.CreateUpvote(ctx, &dup); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate upvote = %v", err)
	}

	total, err := stores.Upvotes.SumUpvotes(ctx, eventID)
	if err != nil || total != 4 {
		t.Fatalf("sum = %d, %v", total, err)
	}
	if err := stores.Upvotes.DeleteUpvote(ctx, voter, eventID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := stores.Upvotes.DeleteUpvote(ctx, voter, eventID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete twice = %v", err)
	}
	if _, err := stores.Upvotes.GetUpvote(ctx, voter, eventID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
	if total, _ := stores.Upvotes.SumUpvotes(ctx, eventID); total != 3 {
		t.Fatalf("sum after delete = %d", total)
	}
	if total, err := stores.Upvotes.SumUpvotes(ctx, uuid.NewString()); err != nil || total != 0 {
		t.Fatalf("sum of nothing = %d, %v", total, err)
	}
}

func streaks(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	user := uuid.NewString()
	if _, err := stores.Streaks.GetStreak(ctx, user); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("get missing = %v", err)
	}

	day := now()
	st := &model.Streak{UserID: user, LastAttendance: &day, StreakCount: 1, Active: true, Version: 1, CreatedAt: day, UpdatedAt: day}
	if err := stores.Streaks.CreateStreak(ctx, st); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := stores.Streaks.CreateStreak(ctx, st); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("create twice = %v", err)
	}

	next := *st
	next.StreakCount = 2
	next.Version = 2
	if err := stores.Streaks.UpdateStreak(ctx, &next, 1); err != nil {
		t.Fatalf("update: %v", err)
	}
	stale := next
	stale.StreakCount = 9
	stale.Version = 2
	if err := stores.Streaks.UpdateStreak(ctx, &stale, 1); !errors.Is(err, repository.ErrConditionFailed) {
		t.Fatalf("stale update = %v", err)
	}

	got, err := stores.Streaks.GetStreak(ctx, user)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StreakCount != 2 || got.Version != 2 || got.LastAttendance == nil || !got.LastAttendance.Equal(day) {
		t.Fatalf("streak = %+v", got)
	}
}

func notifications(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	owner := uuid.NewString()
	older := &model.Notification{ID: uuid.NewString(), UserID: owner, Message: "first", CreatedAt: now()}
	newer := &model.Notification{ID: uuid.NewString(), UserID: owner, Message: "second", CreatedAt: now().Add(time.Second)}
	for _, n := range []*model.Notification{older, newer} {
		if err := stores.Notifications.CreateNotification(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := stores.Notifications.ListNotifications(ctx, owner)
	if err != nil || len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("list = %+v, %v", list, err)
	}

	intruder := uuid.NewString()
	if err := stores.Notifications.MarkNotificationRead(ctx, intruder, older.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("mark foreign = %v", err)
	}
	if err := stores.Notifications.DeleteNotification(ctx, intruder, older.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("delete foreign = %v", err)
	}
	if err := stores.Notifications.MarkNotificationRead(ctx, owner, older.ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := stores.Notifications.DeleteNotification(ctx, owner, newer.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = stores.Notifications.ListNotifications(ctx, owner)
	if len(list) != 1 || !list[0].Read {
		t.Fatalf("list after changes = %+v", list)
	}
}

func listFilters(t *testing.T, stores repository.Stores) {
	ctx := context.Background()
	host := uuid.NewString()
	category := uuid.NewString()
	var ids []string
	for i, cat := range []string{category, "other", category} {
		ts := now().Add(time.Duration(i) * time.Second)
		e := &model.Event{
			ID:          uuid.NewString(),
			HostID:      host,
			CategoryID:  cat,
			Title:       "Filter check",
			Capacity:    1,
			ScheduledAt: ts.Add(24 * time.Hour),
			Status:      model.StatusUpcoming,
			Version:     1,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
		if err := stores.Events.CreateEvent(ctx, e); err != nil {
			t.Fatalf("create event: %v", err)
		}
		ids = append(ids, e.ID)
	}

	byHost, err := stores.Events.ListEvents(ctx, repository.EventFilter{HostID: host})
	if err != nil || len(byHost) != 3 {
		t.Fatalf("by host = %d, %v", len(byHost), err)
	}
	got, err := stores.Events.ListEvents(ctx, repository.EventFilter{HostID: host, CategoryID: category})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[0] {
		t.Fatalf("by category = %+v", got)
	}
}
