package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// transitions lists, for each target status, the statuses it may be entered from.
var transitions = map[model.EventStatus][]model.EventStatus{
	model.StatusOngoing:   {model.StatusUpcoming},
	model.StatusCompleted: {model.StatusOngoing},
	model.StatusCanceled:  {model.StatusUpcoming, model.StatusOngoing},
}

// EventRegistry owns event records and the event lifecycle.
type EventRegistry struct {
	events repository.EventStore
	opts   Options
}

// NewEventRegistry constructs an EventRegistry.
func NewEventRegistry(events repository.EventStore, opts Options) *EventRegistry {
	return &EventRegistry{events: events, opts: opts.withDefaults()}
}

// Create validates the request and stores a new upcoming event.
func (r *EventRegistry) Create(ctx context.Context, hostID string, req model.CreateEventRequest) (*model.Event, error) {
	if err := requireID("host id", hostID); err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, apperr.New(apperr.KindValidation, "event title is required")
	}
	if req.Capacity <= 0 {
		return nil, apperr.New(apperr.KindValidation, "capacity must be a positive integer")
	}
	if req.Capacity > maxCapacity {
		return nil, apperr.New(apperr.KindValidation, "capacity cannot exceed 100,000")
	}

	now := r.opts.Now()
	event := &model.Event{
		ID:            r.opts.NewID(),
		HostID:        hostID,
		Title:         req.Title,
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		MoodTagID:     req.MoodTagID,
		Capacity:      req.Capacity,
		AttendeeCount: 0,
		Location:      req.Location,
		ScheduledAt:   req.ScheduledAt.UTC(),
		Status:        model.StatusUpcoming,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.opts.store(ctx, "create event", func(ctx context.Context) error {
		return r.events.CreateEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Get returns one event or a not-found error.
func (r *EventRegistry) Get(ctx context.Context, id string) (*model.Event, error) {
	if err := requireID("event id", id); err != nil {
		return nil, err
	}
	var event *model.Event
	err := r.opts.store(ctx, "get event", func(ctx context.Context) (err error) {
		event, err = r.events.GetEvent(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Newf(apperr.KindNotFound, "event %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// List returns events newest first, optionally restricted to one host.
func (r *EventRegistry) List(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	var events []model.Event
	err := r.opts.store(ctx, "list events", func(ctx context.Context) (err error) {
		events, err = r.events.ListEvents(ctx, filter)
		return err
	})
	return events, err
}

// Update applies a host edit. The caller must already have checked that the
// actor is the host. Shrinking capacity below the attendee count is rejected.
func (r *EventRegistry) Update(ctx context.Context, id string, patch model.EventPatch) (*model.Event, error) {
	if patch.Empty() {
		return nil, apperr.New(apperr.KindValidation, "nothing to update")
	}
	if patch.Capacity != nil {
		if *patch.Capacity <= 0 {
			return nil, apperr.New(apperr.KindValidation, "capacity must be a positive integer")
		}
		if *patch.Capacity > maxCapacity {
			return nil, apperr.New(apperr.KindValidation, "capacity cannot exceed 100,000")
		}
	}

	for attempt := 0; attempt < r.opts.MaxRetries; attempt++ {
		event, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if event.Status.Terminal() {
			return nil, apperr.Newf(apperr.KindState, "event %s is %s and can no longer be edited", id, event.Status)
		}
		if patch.Capacity != nil && *patch.Capacity < event.AttendeeCount {
			return nil, &apperr.Error{
				Kind:    apperr.KindCapacity,
				Message: "capacity cannot be lower than the current attendee count",
			}
		}
		err = r.opts.store(ctx, "update event", func(ctx context.Context) error {
			return r.events.UpdateEvent(ctx, id, event.Version, patch)
		})
		if err == nil {
			return r.Get(ctx, id)
		}
		if !errors.Is(err, repository.ErrConditionFailed) {
			return nil, err
		}
		// Version moved or attendees grew past the new capacity: re-read.
	}
	return nil, apperr.Wrap(apperr.KindConflict, "update event: too many concurrent changes", apperr.ErrConflict)
}

// Cancel moves an upcoming or ongoing event to canceled.
func (r *EventRegistry) Cancel(ctx context.Context, id string) error {
	return r.Transition(ctx, id, model.StatusCanceled)
}

// Transition moves an event along the lifecycle. Undefined transitions fail
// with a state error.
func (r *EventRegistry) Transition(ctx context.Context, id string, to model.EventStatus) error {
	from, ok := transitions[to]
	if !ok {
		return apperr.Newf(apperr.KindValidation, "unknown target status %q", to)
	}
	event, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !containsStatus(from, event.Status) {
		return apperr.Newf(apperr.KindState, "event %s cannot move from %s to %s", id, event.Status, to)
	}
	err = r.opts.store(ctx, "transition event", func(ctx context.Context) error {
		return r.events.TransitionStatus(ctx, id, from, to)
	})
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperr.Newf(apperr.KindState, "event %s changed state concurrently", id)
	}
	return err
}

// CapacitySnapshot returns the capacity, attendee count and status of an event.
func (r *EventRegistry) CapacitySnapshot(ctx context.Context, id string) (model.CapacitySnapshot, error) {
	event, err := r.Get(ctx, id)
	if err != nil {
		return model.CapacitySnapshot{}, err
	}
	return model.CapacitySnapshot{
		EventID:       event.ID,
		Capacity:      event.Capacity,
		AttendeeCount: event.AttendeeCount,
		Remaining:     event.Remaining(),
		Status:        event.Status,
	}, nil
}

// IncrementAttendeeCount atomically takes one spot. It reports false when the
// event is full or no longer reservable.
func (r *EventRegistry) IncrementAttendeeCount(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.opts.store(ctx, "increment attendees", func(ctx context.Context) (err error) {
		ok, err = r.events.IncrementAttendees(ctx, id)
		return err
	})
	return ok, err
}

// DecrementAttendeeCount atomically releases one spot, never below zero.
func (r *EventRegistry) DecrementAttendeeCount(ctx context.Context, id string) error {
	return r.opts.store(ctx, "decrement attendees", func(ctx context.Context) error {
		return r.events.DecrementAttendees(ctx, id)
	})
}

// Delete removes an event that has no active reservations.
func (r *EventRegistry) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	err := r.opts.store(ctx, "delete event", func(ctx context.Context) error {
		return r.events.DeleteEvent(ctx, id)
	})
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperr.Newf(apperr.KindState, "event %s still has active reservations", id)
	}
	return err
}

func containsStatus(list []model.EventStatus, s model.EventStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
