// Package postgres implements the store contracts on PostgreSQL using pgx
// directly (no ORM). Every conditional write is one UPDATE whose WHERE clause
// carries the guard, so the row lock taken by the statement is the only
// serialisation point.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements every repository interface over one pool.
type Store struct {
	db *pgxpool.Pool
}

// New constructs a Store. The caller owns the pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Stores exposes the Store through the repository bundle. Close shuts the
// pool.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Events:        s,
		Reservations:  s,
		Upvotes:       s,
		Streaks:       s,
		Notifications: s,
		Close: func(context.Context) error {
			s.db.Close()
			return nil
		},
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound maps pgx.ErrNoRows to repository.ErrNotFound.
func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

var (
	_ repository.EventStore        = (*Store)(nil)
	_ repository.ReservationStore  = (*Store)(nil)
	_ repository.UpvoteStore       = (*Store)(nil)
	_ repository.StreakStore       = (*Store)(nil)
	_ repository.NotificationStore = (*Store)(nil)
)
