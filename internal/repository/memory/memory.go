// Package memory provides an in-process store backend. A single mutex makes
// every method one atomic step, which is the same guarantee the database
// backends get from conditional writes.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

type pairKey struct {
	userID  string
	eventID string
}

type stored[T any] struct {
	val T
	seq uint64
}

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu  sync.Mutex
	seq uint64
	now func() time.Time

	events        map[string]*stored[model.Event]
	reservations  map[string]*stored[model.Reservation]
	activePairs   map[pairKey]string
	upvotes       map[pairKey]*stored[model.Upvote]
	streaks       map[string]*model.Streak
	notifications map[string]*stored[model.Notification]
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		now:           func() time.Time { return time.Now().UTC() },
		events:        make(map[string]*stored[model.Event]),
		reservations:  make(map[string]*stored[model.Reservation]),
		activePairs:   make(map[pairKey]string),
		upvotes:       make(map[pairKey]*stored[model.Upvote]),
		streaks:       make(map[string]*model.Streak),
		notifications: make(map[string]*stored[model.Notification]),
	}
}

// Stores exposes the Store through the repository bundle.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Events:        s,
		Reservations:  s,
		Upvotes:       s,
		Streaks:       s,
		Notifications: s,
		Close:         func(context.Context) error { return nil },
	}
}

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return repository.ErrDuplicate
	}
	s.events[e.ID] = &stored[model.Event]{val: *e, seq: s.next()}
	return nil
}

// GetEvent returns a copy of one event.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e := rec.val
	return &e, nil
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]*stored[model.Event], 0, len(s.events))
	for _, rec := range s.events {
		if filter.HostID != "" && rec.val.HostID != filter.HostID {
			continue
		}
		if filter.CategoryID != "" && rec.val.CategoryID != filter.CategoryID {
			continue
		}
		recs = append(recs, rec)
	}
	sortNewest(recs, func(e model.Event) time.Time { return e.CreatedAt })
	out := make([]model.Event, len(recs))
	for i, rec := range recs {
		out[i] = rec.val
	}
	return out, nil
}

// UpdateEvent applies patch under a version and capacity guard.
func (s *Store) UpdateEvent(ctx context.Context, id string, expectedVersion int64, patch model.EventPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return repository.ErrConditionFailed
	}
	e := &rec.val
	if e.Version != expectedVersion {
		return repository.ErrConditionFailed
	}
	if patch.Capacity != nil && *patch.Capacity < e.AttendeeCount {
		return repository.ErrConditionFailed
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.Capacity != nil {
		e.Capacity = *patch.Capacity
	}
	e.Version++
	e.UpdatedAt = s.now()
	return nil
}

// TransitionStatus moves the event to `to` if its status is one of `from`.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok || !slices.Contains(from, rec.val.Status) {
		return repository.ErrConditionFailed
	}
	rec.val.Status = to
	rec.val.Version++
	rec.val.UpdatedAt = s.now()
	return nil
}

// IncrementAttendees adds one attendee while reservable and below capacity.
func (s *Store) IncrementAttendees(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok || !rec.val.Status.Reservable() || rec.val.AttendeeCount >= rec.val.Capacity {
		return false, nil
	}
	rec.val.AttendeeCount++
	rec.val.UpdatedAt = s.now()
	return true, nil
}

// DecrementAttendees removes one attendee, clamping at zero.
func (s *Store) DecrementAttendees(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	if rec.val.AttendeeCount > 0 {
		rec.val.AttendeeCount--
		rec.val.UpdatedAt = s.now()
	}
	return nil
}

// DeleteEvent removes an event with no attendees along with its reservations.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.events[id]
	if !ok || rec.val.AttendeeCount != 0 {
		return repository.ErrConditionFailed
	}
	delete(s.events, id)
	for rid, r := range s.reservations {
		if r.val.EventID == id {
			delete(s.reservations, rid)
		}
	}
	return nil
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// CreateReservation inserts a reservation, enforcing one active per pair.
func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{r.UserID, r.EventID}
	if r.Status == model.ReservationActive {
		if _, ok := s.activePairs[key]; ok {
			return repository.ErrDuplicate
		}
	}
	if _, ok := s.reservations[r.ID]; ok {
		return repository.ErrDuplicate
	}
	s.reservations[r.ID] = &stored[model.Reservation]{val: *r, seq: s.next()}
	if r.Status == model.ReservationActive {
		s.activePairs[key] = r.ID
	}
	return nil
}

// GetActiveReservation returns the active reservation for a pair.
func (s *Store) GetActiveReservation(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.activePairs[pairKey{userID, eventID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r := s.reservations[id].val
	return &r, nil
}

// CancelReservation flips an active reservation to canceled.
func (s *Store) CancelReservation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.reservations[id]
	if !ok || rec.val.Status != model.ReservationActive {
		return repository.ErrConditionFailed
	}
	rec.val.Status = model.ReservationCanceled
	rec.val.UpdatedAt = s.now()
	delete(s.activePairs, pairKey{rec.val.UserID, rec.val.EventID})
	return nil
}

// ListActiveByEvent returns an event's active reservations, newest first.
func (s *Store) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	return s.listActive(ctx, func(r model.Reservation) bool { return r.EventID == eventID })
}

// ListActiveByUser returns a user's active reservations, newest first.
func (s *Store) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.listActive(ctx, func(r model.Reservation) bool { return r.UserID == userID })
}

func (s *Store) listActive(ctx context.Context, match func(model.Reservation) bool) ([]model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*stored[model.Reservation]
	for _, rec := range s.reservations {
		if rec.val.Status == model.ReservationActive && match(rec.val) {
			recs = append(recs, rec)
		}
	}
	sortNewest(recs, func(r model.Reservation) time.Time { return r.CreatedAt })
	out := make([]model.Reservation, len(recs))
	for i, rec := range recs {
		out[i] = rec.val
	}
	return out, nil
}

// ─── Upvotes ──────────────────────────────────────────────────────────────────

// CreateUpvote inserts an upvote, unique per pair.
func (s *Store) CreateUpvote(ctx context.Context, u *model.Upvote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{u.UserID, u.EventID}
	if _, ok := s.upvotes[key]; ok {
		return repository.ErrDuplicate
	}
	s.upvotes[key] = &stored[model.Upvote]{val: *u, seq: s.next()}
	return nil
}

// GetUpvote returns the upvote for a pair.
func (s *Store) GetUpvote(ctx context.Context, userID, eventID string) (*model.Upvote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.upvotes[pairKey{userID, eventID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := rec.val
	return &u, nil
}

// DeleteUpvote removes the upvote for a pair.
func (s *Store) DeleteUpvote(ctx context.Context, userID, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{userID, eventID}
	if _, ok := s.upvotes[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.upvotes, key)
	return nil
}

// SumUpvotes totals the counts of an event's upvotes.
func (s *Store) SumUpvotes(ctx context.Context, eventID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for key, rec := range s.upvotes {
		if key.eventID == eventID {
			total += rec.val.Count
		}
	}
	return total, nil
}

// ─── Streaks ──────────────────────────────────────────────────────────────────

// GetStreak returns a copy of a user's streak.
func (s *Store) GetStreak(ctx context.Context, userID string) (*model.Streak, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streaks[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyStreak(st), nil
}

// CreateStreak inserts a user's first streak record.
func (s *Store) CreateStreak(ctx context.Context, st *model.Streak) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streaks[st.UserID]; ok {
		return repository.ErrDuplicate
	}
	s.streaks[st.UserID] = copyStreak(st)
	return nil
}

// UpdateStreak overwrites a streak if its version still matches.
func (s *Store) UpdateStreak(ctx context.Context, st *model.Streak, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.streaks[st.UserID]
	if !ok || cur.Version != expectedVersion {
		return repository.ErrConditionFailed
	}
	s.streaks[st.UserID] = copyStreak(st)
	return nil
}

func copyStreak(st *model.Streak) *model.Streak {
	c := *st
	if st.LastAttendance != nil {
		t := *st.LastAttendance
		c.LastAttendance = &t
	}
	return &c
}

// ─── Notifications ────────────────────────────────────────────────────────────

// CreateNotification inserts a notification.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = &stored[model.Notification]{val: *n, seq: s.next()}
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []*stored[model.Notification]
	for _, rec := range s.notifications {
		if rec.val.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sortNewest(recs, func(n model.Notification) time.Time { return n.CreatedAt })
	out := make([]model.Notification, len(recs))
	for i, rec := range recs {
		out[i] = rec.val
	}
	return out, nil
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.notifications[id]
	if !ok || rec.val.UserID != userID {
		return repository.ErrNotFound
	}
	rec.val.Read = true
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.notifications[id]
	if !ok || rec.val.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

// sortNewest orders by timestamp descending, breaking ties by insertion order
// so repeated reads return the same sequence.
func sortNewest[T any](recs []*stored[T], at func(T) time.Time) {
	sort.Slice(recs, func(i, j int) bool {
		ti, tj := at(recs[i].val), at(recs[j].val)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return recs[i].seq > recs[j].seq
	})
}

var (
	_ repository.EventStore        = (*Store)(nil)
	_ repository.ReservationStore  = (*Store)(nil)
	_ repository.UpvoteStore       = (*Store)(nil)
	_ repository.StreakStore       = (*Store)(nil)
	_ repository.NotificationStore = (*Store)(nil)
)
