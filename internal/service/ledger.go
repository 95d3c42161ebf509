package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// Ledger is the composition point of the engagement ledger. It is built once
// at startup and sequences calls across the owners when a user action touches
// more than one of them. Notifications go out only after a mutation commits.
type Ledger struct {
	Guard        HostGuard
	Events       *EventRegistry
	Reservations *ReservationLedger
	Upvotes      *EngagementCounter
	Streaks      *StreakTracker
	Inbox        *NotificationService

	notifier Notifier
}

// NewLedger wires the owners over one store backend.
func NewLedger(stores repository.Stores, inbox *NotificationService, notifier Notifier, opts Options) *Ledger {
	opts = opts.withDefaults()
	registry := NewEventRegistry(stores.Events, opts)
	return &Ledger{
		Events:       registry,
		Reservations: NewReservationLedger(stores.Reservations, registry, opts),
		Upvotes:      NewEngagementCounter(stores.Upvotes, opts),
		Streaks:      NewStreakTracker(stores.Streaks, opts),
		Inbox:        inbox,
		notifier:     notifier,
	}
}

// notify dispatches a message unless the request was canceled: a canceled
// request keeps whatever it committed but runs no further steps.
func (l *Ledger) notify(ctx context.Context, userID, message string) {
	if l.notifier == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		log.Printf("skip notification to user %s: %v", userID, err)
		return
	}
	l.notifier.Notify(ctx, userID, message)
}

// hostedEvent loads an event and checks that actorID hosts it.
func (l *Ledger) hostedEvent(ctx context.Context, actorID, eventID string) (*model.Event, error) {
	event, err := l.Events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := l.Guard.AssertIsHost(event, actorID); err != nil {
		return nil, err
	}
	return event, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent publishes a new event hosted by hostID.
func (l *Ledger) CreateEvent(ctx context.Context, hostID string, req model.CreateEventRequest) (_ *model.Event, err error) {
	ctx, span := startSpan(ctx, "Ledger.CreateEvent", attribute.String("user.id", hostID))
	defer func() { endSpan(span, err) }()

	event, err := l.Events.Create(ctx, hostID, req)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, hostID, fmt.Sprintf("You have created event %s", event.Title))
	return event, nil
}

// GetEvent returns one event.
func (l *Ledger) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	return l.Events.Get(ctx, eventID)
}

// ListEvents returns events newest first, narrowed by host and category when
// the filter sets them.
func (l *Ledger) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	return l.Events.List(ctx, filter)
}

// CapacitySnapshot returns an event's capacity, attendee count and status.
func (l *Ledger) CapacitySnapshot(ctx context.Context, eventID string) (model.CapacitySnapshot, error) {
	return l.Events.CapacitySnapshot(ctx, eventID)
}

// UpdateEvent applies a host edit to an event.
func (l *Ledger) UpdateEvent(ctx context.Context, actorID, eventID string, patch model.EventPatch) (_ *model.Event, err error) {
	ctx, span := startSpan(ctx, "Ledger.UpdateEvent",
		attribute.String("user.id", actorID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	if _, err := l.hostedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	event, err := l.Events.Update(ctx, eventID, patch)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, actorID, fmt.Sprintf("You have updated event %s", event.Title))
	return event, nil
}

// CancelEvent cancels an event and every active reservation it holds, so the
// attendee count and the reservation records never diverge. It returns the
// reservations it canceled.
func (l *Ledger) CancelEvent(ctx context.Context, actorID, eventID string) (_ []model.Reservation, err error) {
	ctx, span := startSpan(ctx, "Ledger.CancelEvent",
		attribute.String("user.id", actorID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	event, err := l.hostedEvent(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}
	if err := l.Events.Cancel(ctx, eventID); err != nil {
		return nil, err
	}
	// Reserves still writing their row when the status flips release themselves.
	canceled, err := l.Reservations.CancelAllForEvent(ctx, eventID)
	span.SetAttributes(attribute.Int("ledger.cascaded_reservations", len(canceled)))
	for _, r := range canceled {
		l.notify(ctx, r.UserID, fmt.Sprintf("Event %s has been canceled", event.Title))
	}
	if err != nil {
		return canceled, fmt.Errorf("cancel event %s: cascade: %w", eventID, err)
	}
	l.notify(ctx, actorID, fmt.Sprintf("You have canceled event %s", event.Title))
	return canceled, nil
}

// TransitionEvent applies an externally triggered lifecycle move (start or
// complete). Cancellation goes through CancelEvent.
func (l *Ledger) TransitionEvent(ctx context.Context, actorID, eventID string, to model.EventStatus) (_ *model.Event, err error) {
	ctx, span := startSpan(ctx, "Ledger.TransitionEvent",
		attribute.String("user.id", actorID), attribute.String("event.id", eventID),
		attribute.String("event.status", string(to)))
	defer func() { endSpan(span, err) }()

	if to == model.StatusCanceled {
		return nil, apperr.New(apperr.KindValidation, "use event cancellation to cancel an event")
	}
	if _, err := l.hostedEvent(ctx, actorID, eventID); err != nil {
		return nil, err
	}
	if err := l.Events.Transition(ctx, eventID, to); err != nil {
		return nil, err
	}
	return l.Events.Get(ctx, eventID)
}

// DeleteEvent removes an event that has no active reservations.
func (l *Ledger) DeleteEvent(ctx context.Context, actorID, eventID string) (err error) {
	ctx, span := startSpan(ctx, "Ledger.DeleteEvent",
		attribute.String("user.id", actorID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	if _, err := l.hostedEvent(ctx, actorID, eventID); err != nil {
		return err
	}
	return l.Events.Delete(ctx, eventID)
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// Reserve takes a spot for userID. Any authenticated user may reserve.
func (l *Ledger) Reserve(ctx context.Context, userID, eventID string) (_ *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "Ledger.Reserve",
		attribute.String("user.id", userID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	r, err := l.Reservations.Reserve(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, userID, fmt.Sprintf("You have RSVP'd to event %s", eventID))
	return r, nil
}

// CancelReservation releases userID's spot.
func (l *Ledger) CancelReservation(ctx context.Context, userID, eventID string) (_ *model.Reservation, err error) {
	ctx, span := startSpan(ctx, "Ledger.CancelReservation",
		attribute.String("user.id", userID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	r, err := l.Reservations.Cancel(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, userID, fmt.Sprintf("You have cancelled your RSVP to event %s", eventID))
	return r, nil
}

// EventReservations returns an event's active reservations.
func (l *Ledger) EventReservations(ctx context.Context, eventID string) ([]model.Reservation, error) {
	if _, err := l.Events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	return l.Reservations.ListActiveByEvent(ctx, eventID)
}

// UserReservations returns a user's active reservations.
func (l *Ledger) UserReservations(ctx context.Context, userID string) ([]model.Reservation, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	return l.Reservations.ListActiveByUser(ctx, userID)
}

// ─── Upvotes ──────────────────────────────────────────────────────────────────

// Upvote records userID's upvote for an existing event.
func (l *Ledger) Upvote(ctx context.Context, userID, eventID string) (_ *model.Upvote, err error) {
	ctx, span := startSpan(ctx, "Ledger.Upvote",
		attribute.String("user.id", userID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	if _, err := l.Events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	u, err := l.Upvotes.Upvote(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, userID, fmt.Sprintf("You have upvoted event %s", eventID))
	return u, nil
}

// RemoveUpvote withdraws userID's upvote.
func (l *Ledger) RemoveUpvote(ctx context.Context, userID, eventID string) (err error) {
	ctx, span := startSpan(ctx, "Ledger.RemoveUpvote",
		attribute.String("user.id", userID), attribute.String("event.id", eventID))
	defer func() { endSpan(span, err) }()

	if err := l.Upvotes.RemoveUpvote(ctx, userID, eventID); err != nil {
		return err
	}
	l.notify(ctx, userID, fmt.Sprintf("You have removed your upvote from event %s", eventID))
	return nil
}

// UpvoteCount returns the total upvotes of an existing event and whether
// viewerID is one of the upvoters.
func (l *Ledger) UpvoteCount(ctx context.Context, viewerID, eventID string) (model.UpvoteCount, error) {
	if _, err := l.Events.Get(ctx, eventID); err != nil {
		return model.UpvoteCount{}, err
	}
	n, err := l.Upvotes.Count(ctx, eventID)
	if err != nil {
		return model.UpvoteCount{}, err
	}
	upvoted, err := l.Upvotes.HasUpvoted(ctx, viewerID, eventID)
	if err != nil {
		return model.UpvoteCount{}, err
	}
	return model.UpvoteCount{EventID: eventID, Count: n, Upvoted: upvoted}, nil
}

// ─── Attendance & streaks ─────────────────────────────────────────────────────

// MarkAttendance lets the host record whether userID attended. An attendance
// counts on the event's scheduled date; a miss resets the streak.
func (l *Ledger) MarkAttendance(ctx context.Context, actorID, eventID, userID string, attended bool) (_ *model.Streak, err error) {
	ctx, span := startSpan(ctx, "Ledger.MarkAttendance",
		attribute.String("user.id", actorID), attribute.String("event.id", eventID),
		attribute.String("attendee.id", userID), attribute.Bool("attended", attended))
	defer func() { endSpan(span, err) }()

	event, err := l.hostedEvent(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == model.StatusCanceled {
		return nil, apperr.Newf(apperr.KindState, "event %s is canceled", eventID)
	}
	if attended {
		return l.Streaks.RecordAttendance(ctx, userID, event.ScheduledAt)
	}
	return l.Streaks.RecordMiss(ctx, userID)
}

// Streak returns userID's streak.
func (l *Ledger) Streak(ctx context.Context, userID string) (*model.Streak, error) {
	return l.Streaks.Get(ctx, userID)
}

// ─── Inbox ────────────────────────────────────────────────────────────────────

// Notifications returns userID's inbox.
func (l *Ledger) Notifications(ctx context.Context, userID string) ([]model.Notification, error) {
	if l.Inbox == nil {
		return nil, errors.New("notification inbox is not configured")
	}
	return l.Inbox.List(ctx, userID)
}

// MarkNotificationRead marks one of userID's notifications read.
func (l *Ledger) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if l.Inbox == nil {
		return errors.New("notification inbox is not configured")
	}
	return l.Inbox.MarkRead(ctx, userID, id)
}

// DeleteNotification removes one of userID's notifications.
func (l *Ledger) DeleteNotification(ctx context.Context, userID, id string) error {
	if l.Inbox == nil {
		return errors.New("notification inbox is not configured")
	}
	return l.Inbox.Delete(ctx, userID, id)
}
