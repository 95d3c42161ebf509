package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

const eventColumns = `id, host_id, title, description, category_id, mood_tag_id, capacity,
	attendee_count, location, scheduled_at, status, version, created_at, updated_at`

func scanEvent(row pgx.Row) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.HostID, &e.Title, &e.Description, &e.CategoryID, &e.MoodTagID,
		&e.Capacity, &e.AttendeeCount, &e.Location, &e.ScheduledAt, &e.Status, &e.Version,
		&e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func statusStrings(statuses []model.EventStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.HostID, e.Title, e.Description, e.CategoryID, e.MoodTagID, e.Capacity,
		e.AttendeeCount, e.Location, e.ScheduledAt, string(e.Status), e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent returns a single event or repository.ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("get event", err)
	}
	return &e, nil
}

// ListEvents returns events ordered by creation time descending.
func (s *Store) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE ($1 = '' OR host_id = $1)
		   AND ($2 = '' OR category_id = $2)
		 ORDER BY created_at DESC, id DESC`,
		filter.HostID, filter.CategoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateEvent applies patch when the version matches and the new capacity
// still covers the attendees. Unset patch fields keep their column value.
func (s *Store) UpdateEvent(ctx context.Context, id string, expectedVersion int64, patch model.EventPatch) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET description = COALESCE($3, description),
		     location    = COALESCE($4, location),
		     capacity    = COALESCE($5, capacity),
		     version     = version + 1,
		     updated_at  = $6
		 WHERE id = $1
		   AND version = $2
		   AND ($5::INTEGER IS NULL OR attendee_count <= $5::INTEGER)`,
		id, expectedVersion, patch.Description, patch.Location, patch.Capacity, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// TransitionStatus moves the event to `to` if its status is one of `from`.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET status = $3, version = version + 1, updated_at = $4
		 WHERE id = $1 AND status = ANY($2)`,
		id, statusStrings(from), string(to), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("transition event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// IncrementAttendees adds one attendee in a single guarded UPDATE.
//
// Two concurrent callers that both saw a free spot cannot both pass: the
// second UPDATE waits on the first's row lock and then re-evaluates the WHERE
// clause against the committed count, so it matches zero rows once the event
// is full.
func (s *Store) IncrementAttendees(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET attendee_count = attendee_count + 1, updated_at = $3
		 WHERE id = $1 AND attendee_count < capacity AND status = ANY($2)`,
		id, statusStrings(model.ReservableStatuses), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("increment attendee_count: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementAttendees removes one attendee, clamping at zero.
func (s *Store) DecrementAttendees(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events
		 SET attendee_count = GREATEST(attendee_count - 1, 0), updated_at = $2
		 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("decrement attendee_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event with no attendees. Its canceled reservations
// go with it through ON DELETE CASCADE.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM events WHERE id = $1 AND attendee_count = 0`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}
