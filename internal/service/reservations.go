package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// cascadeParallelism caps concurrent cancellations when an event is canceled.
const cascadeParallelism = 8

// ReservationLedger owns reservation records and enforces the capacity and
// one-active-reservation invariants against the event registry.
type ReservationLedger struct {
	reservations repository.ReservationStore
	registry     *EventRegistry
	opts         Options
}

// NewReservationLedger constructs a ReservationLedger.
func NewReservationLedger(reservations repository.ReservationStore, registry *EventRegistry, opts Options) *ReservationLedger {
	return &ReservationLedger{reservations: reservations, registry: registry, opts: opts.withDefaults()}
}

// Reserve takes one spot of an event for a user.
//
// The conditional increment is the decision point for capacity: two
// reservers that both observed a free spot in the snapshot still cannot both
// pass it. The reservation row is written only after the increment succeeds,
// and a failed write gives the spot back.
func (l *ReservationLedger) Reserve(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}

	snap, err := l.registry.CapacitySnapshot(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !snap.Status.Reservable() {
		return nil, apperr.Newf(apperr.KindState, "event %s is %s", eventID, snap.Status)
	}

	reserved, err := l.HasActiveReservation(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if reserved {
		return nil, apperr.ErrAlreadyReserved
	}

	ok, err := l.registry.IncrementAttendeeCount(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, l.classifyRejectedIncrement(ctx, eventID)
	}

	now := l.opts.Now()
	reservation := &model.Reservation{
		ID:        l.opts.NewID(),
		UserID:    userID,
		EventID:   eventID,
		Status:    model.ReservationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = l.opts.store(ctx, "create reservation", func(ctx context.Context) error {
		return l.reservations.CreateReservation(ctx, reservation)
	})
	if err != nil {
		// The increment is committed; release it even if the caller is gone.
		if derr := l.registry.DecrementAttendeeCount(context.WithoutCancel(ctx), eventID); derr != nil {
			return nil, fmt.Errorf("reserve: release spot after failed insert: %w", errors.Join(err, derr))
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.ErrAlreadyReserved
		}
		return nil, err
	}
	if err := l.confirmReservable(ctx, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// confirmReservable re-reads the event after the reservation row is written.
// A cancel that landed between the increment and the write listed the
// event's reservations before this row existed, so the row is released here
// instead.
func (l *ReservationLedger) confirmReservable(ctx context.Context, r *model.Reservation) error {
	ctx = context.WithoutCancel(ctx)
	snap, err := l.registry.CapacitySnapshot(ctx, r.EventID)
	if err != nil {
		return fmt.Errorf("reserve: confirm event state: %w", err)
	}
	if snap.Status.Reservable() {
		return nil
	}
	// A cascade that already saw the row wins the flip and owns the decrement.
	if err := l.release(ctx, r); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("reserve: release reservation on %s event: %w", snap.Status, err)
	}
	return apperr.Newf(apperr.KindState, "event %s is %s", r.EventID, snap.Status)
}

// classifyRejectedIncrement explains why the conditional increment matched
// nothing: the event vanished, left a reservable state, or is full.
func (l *ReservationLedger) classifyRejectedIncrement(ctx context.Context, eventID string) error {
	snap, err := l.registry.CapacitySnapshot(ctx, eventID)
	if err != nil {
		return err
	}
	if !snap.Status.Reservable() {
		return apperr.Newf(apperr.KindState, "event %s is %s", eventID, snap.Status)
	}
	return &apperr.Error{
		Kind:    apperr.KindCapacityFull,
		Message: fmt.Sprintf("event %s is fully booked", eventID),
	}
}

// Cancel releases the user's active reservation for an event.
func (l *ReservationLedger) Cancel(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	if err := requireID("event id", eventID); err != nil {
		return nil, err
	}
	var reservation *model.Reservation
	err := l.opts.store(ctx, "get reservation", func(ctx context.Context) (err error) {
		reservation, err = l.reservations.GetActiveReservation(ctx, userID, eventID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Newf(apperr.KindNotFound, "no active reservation for event %s", eventID)
	}
	if err != nil {
		return nil, err
	}
	if err := l.release(ctx, reservation); err != nil {
		return nil, err
	}
	reservation.Status = model.ReservationCanceled
	return reservation, nil
}

// release flips one reservation to canceled and gives its spot back. Only the
// caller whose flip succeeded decrements, so the count mirrors the number of
// active reservations.
func (l *ReservationLedger) release(ctx context.Context, r *model.Reservation) error {
	err := l.opts.store(ctx, "cancel reservation", func(ctx context.Context) error {
		return l.reservations.CancelReservation(ctx, r.ID)
	})
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperr.Newf(apperr.KindNotFound, "reservation %s is no longer active", r.ID)
	}
	if err != nil {
		return err
	}
	return l.registry.DecrementAttendeeCount(context.WithoutCancel(ctx), r.EventID)
}

// CancelAllForEvent cancels every active reservation of an event and returns
// the ones it canceled. It keeps going past individual failures and reports
// the first one.
func (l *ReservationLedger) CancelAllForEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	active, err := l.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		canceled []model.Reservation
		g        errgroup.Group
	)
	g.SetLimit(cascadeParallelism)
	for _, r := range active {
		g.Go(func() error {
			if err := l.release(ctx, &r); err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					// Canceled by its owner in the meantime.
					return nil
				}
				return fmt.Errorf("cancel reservation %s: %w", r.ID, err)
			}
			r.Status = model.ReservationCanceled
			mu.Lock()
			canceled = append(canceled, r)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	return canceled, err
}

// HasActiveReservation reports whether the user holds an active reservation.
func (l *ReservationLedger) HasActiveReservation(ctx context.Context, userID, eventID string) (bool, error) {
	err := l.opts.store(ctx, "get reservation", func(ctx context.Context) error {
		_, err := l.reservations.GetActiveReservation(ctx, userID, eventID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListActiveByEvent returns an event's active reservations, most recent first.
func (l *ReservationLedger) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := l.opts.store(ctx, "list reservations by event", func(ctx context.Context) (err error) {
		out, err = l.reservations.ListActiveByEvent(ctx, eventID)
		return err
	})
	return out, err
}

// ListActiveByUser returns a user's active reservations, most recent first.
func (l *ReservationLedger) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := l.opts.store(ctx, "list reservations by user", func(ctx context.Context) (err error) {
		out, err = l.reservations.ListActiveByUser(ctx, userID)
		return err
	})
	return out, err
}
