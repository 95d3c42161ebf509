// Package repository declares the store contracts the engagement ledger
// consumes. Each backend (memory, postgres, mongostore) implements all of
// them; every conditional method is a single atomic compare-and-set at the
// store so callers never read-then-write a shared counter.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a uniqueness constraint rejects a create.
var ErrDuplicate = errors.New("duplicate key")

// ErrConditionFailed is returned when a conditional write matched no record.
var ErrConditionFailed = errors.New("condition not met")

// EventFilter narrows ListEvents. Zero value lists everything.
type EventFilter struct {
	HostID     string
	CategoryID string
}

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListEvents returns events newest first.
	ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
	// UpdateEvent applies patch only if the stored version equals
	// expectedVersion and, when the capacity changes, the new capacity is not
	// below the attendee count. It bumps the version. ErrConditionFailed
	// otherwise.
	UpdateEvent(ctx context.Context, id string, expectedVersion int64, patch model.EventPatch) error
	// TransitionStatus moves the event to `to` only if its current status is
	// one of `from`. ErrConditionFailed otherwise.
	TransitionStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error
	// IncrementAttendees adds one attendee only if the event is reservable and
	// below capacity. It reports whether the increment happened.
	IncrementAttendees(ctx context.Context, id string) (bool, error)
	// DecrementAttendees removes one attendee, never going below zero.
	DecrementAttendees(ctx context.Context, id string) error
	// DeleteEvent removes the event only while its attendee count is zero.
	// ErrConditionFailed otherwise.
	DeleteEvent(ctx context.Context, id string) error
}

// ReservationStore persists reservations. At most one active reservation may
// exist per (user, event) pair; CreateReservation returns ErrDuplicate when
// that constraint rejects the insert.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	GetActiveReservation(ctx context.Context, userID, eventID string) (*model.Reservation, error)
	// CancelReservation flips an active reservation to canceled.
	// ErrConditionFailed when it is no longer active.
	CancelReservation(ctx context.Context, id string) error
	// ListActiveByEvent and ListActiveByUser return most-recent first.
	ListActiveByEvent(ctx context.Context, eventID string) ([]model.Reservation, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error)
}

// UpvoteStore persists upvotes, unique per (user, event).
type UpvoteStore interface {
	CreateUpvote(ctx context.Context, u *model.Upvote) error
	GetUpvote(ctx context.Context, userID, eventID string) (*model.Upvote, error)
	DeleteUpvote(ctx context.Context, userID, eventID string) error
	SumUpvotes(ctx context.Context, eventID string) (int, error)
}

// StreakStore persists one streak per user.
type StreakStore interface {
	GetStreak(ctx context.Context, userID string) (*model.Streak, error)
	CreateStreak(ctx context.Context, s *model.Streak) error
	// UpdateStreak overwrites the record only if the stored version equals
	// expectedVersion, then stores s.Version.
	UpdateStreak(ctx context.Context, s *model.Streak, expectedVersion int64) error
}

// NotificationStore persists user inbox messages.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	// ListNotifications returns a user's notifications newest first.
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	DeleteNotification(ctx context.Context, userID, id string) error
}

// Stores bundles one backend's implementations.
type Stores struct {
	Events        EventStore
	Reservations  ReservationStore
	Upvotes       UpvoteStore
	Streaks       StreakStore
	Notifications NotificationStore
	// Close releases the backend's resources.
	Close func(ctx context.Context) error
}
