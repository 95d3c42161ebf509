package postgres

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// ─── Upvotes ──────────────────────────────────────────────────────────────────

// CreateUpvote inserts an upvote; UNIQUE (user_id, event_id) rejects a second.
func (s *Store) CreateUpvote(ctx context.Context, u *model.Upvote) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO upvotes (id, user_id, event_id, count, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.UserID, u.EventID, u.Count, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert upvote: %w", err)
	}
	return nil
}

// GetUpvote returns the pair's upvote.
func (s *Store) GetUpvote(ctx context.Context, userID, eventID string) (*model.Upvote, error) {
	var u model.Upvote
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, event_id, count, created_at
		 FROM upvotes WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	).Scan(&u.ID, &u.UserID, &u.EventID, &u.Count, &u.CreatedAt)
	if err != nil {
		return nil, notFound("get upvote", err)
	}
	return &u, nil
}

// DeleteUpvote removes the pair's upvote.
func (s *Store) DeleteUpvote(ctx context.Context, userID, eventID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM upvotes WHERE user_id = $1 AND event_id = $2`, userID, eventID)
	if err != nil {
		return fmt.Errorf("delete upvote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SumUpvotes totals the counts of an event's upvotes.
func (s *Store) SumUpvotes(ctx context.Context, eventID string) (int, error) {
	var total int
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM upvotes WHERE event_id = $1`, eventID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum upvotes: %w", err)
	}
	return total, nil
}

// ─── Streaks ──────────────────────────────────────────────────────────────────

// GetStreak returns a user's streak.
func (s *Store) GetStreak(ctx context.Context, userID string) (*model.Streak, error) {
	var st model.Streak
	err := s.db.QueryRow(ctx,
		`SELECT user_id, last_attendance, streak_count, active, version, created_at, updated_at
		 FROM streaks WHERE user_id = $1`,
		userID,
	).Scan(&st.UserID, &st.LastAttendance, &st.StreakCount, &st.Active, &st.Version, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, notFound("get streak", err)
	}
	return &st, nil
}

// CreateStreak inserts a user's first streak record.
func (s *Store) CreateStreak(ctx context.Context, st *model.Streak) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO streaks (user_id, last_attendance, streak_count, active, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.UserID, st.LastAttendance, st.StreakCount, st.Active, st.Version, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert streak: %w", err)
	}
	return nil
}

// UpdateStreak overwrites the record when its version still matches.
func (s *Store) UpdateStreak(ctx context.Context, st *model.Streak, expectedVersion int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE streaks
		 SET last_attendance = $2, streak_count = $3, active = $4, version = $5, updated_at = $6
		 WHERE user_id = $1 AND version = $7`,
		st.UserID, st.LastAttendance, st.StreakCount, st.Active, st.Version, st.UpdatedAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// ─── Notifications ────────────────────────────────────────────────────────────

// CreateNotification inserts a notification.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO notifications (id, user_id, message, read, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.UserID, n.Message, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, message, read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
