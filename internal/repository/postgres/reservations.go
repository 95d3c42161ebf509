package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

const reservationColumns = `id, user_id, event_id, status, created_at, updated_at`

func scanReservation(row pgx.Row) (model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(&r.ID, &r.UserID, &r.EventID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// CreateReservation inserts a reservation. The partial unique index on active
// (user_id, event_id) rejects a second active reservation for the pair.
func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.EventID, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetActiveReservation returns the pair's active reservation.
func (s *Store) GetActiveReservation(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	r, err := scanReservation(s.db.QueryRow(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE user_id = $1 AND event_id = $2 AND status = 'active'`,
		userID, eventID,
	))
	if err != nil {
		return nil, notFound("get reservation", err)
	}
	return &r, nil
}

// CancelReservation flips an active reservation to canceled.
func (s *Store) CancelReservation(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE reservations
		 SET status = 'canceled', updated_at = $2
		 WHERE id = $1 AND status = 'active'`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// ListActiveByEvent returns an event's active reservations, newest first.
func (s *Store) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	return s.listActive(ctx, "event_id", eventID)
}

// ListActiveByUser returns a user's active reservations, newest first.
func (s *Store) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.listActive(ctx, "user_id", userID)
}

// listActive filters on column, which is always one of the two literals above.
func (s *Store) listActive(ctx context.Context, column, value string) ([]model.Reservation, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE `+column+` = $1 AND status = 'active'
		 ORDER BY created_at DESC, id DESC`,
		value,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
