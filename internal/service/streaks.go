package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// StreakTracker owns per-user attendance streaks.
type StreakTracker struct {
	streaks repository.StreakStore
	opts    Options
}

// NewStreakTracker constructs a StreakTracker.
func NewStreakTracker(streaks repository.StreakStore, opts Options) *StreakTracker {
	return &StreakTracker{streaks: streaks, opts: opts.withDefaults()}
}

// DayGap returns the number of calendar days from `from` to `to` in loc.
// Times of day are ignored: 23:59 to 00:01 the next day is a gap of one.
func DayGap(from, to time.Time, loc *time.Location) int {
	return int(civilDay(to, loc).Sub(civilDay(from, loc)).Hours() / 24)
}

// civilDay maps t to midnight UTC of its calendar date in loc, so that day
// arithmetic is never skewed by DST shifts.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nextAttendance applies one attendance to a streak. Only a gap of exactly one
// calendar day extends it; same-day, multi-day and backwards gaps restart at 1.
func nextAttendance(cur model.Streak, date time.Time, loc *time.Location) model.Streak {
	if cur.LastAttendance != nil && DayGap(*cur.LastAttendance, date, loc) == 1 {
		cur.StreakCount++
	} else {
		cur.StreakCount = 1
	}
	d := date
	cur.LastAttendance = &d
	cur.Active = true
	return cur
}

// RecordAttendance applies an attendance on date to the user's streak.
func (t *StreakTracker) RecordAttendance(ctx context.Context, userID string, date time.Time) (*model.Streak, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, apperr.New(apperr.KindValidation, "attendance date is required")
	}
	date = date.UTC()
	return t.mutate(ctx, userID,
		func(now time.Time) model.Streak {
			return model.Streak{
				UserID:         userID,
				LastAttendance: &date,
				StreakCount:    1,
				Active:         true,
				CreatedAt:      now,
			}
		},
		func(cur model.Streak) model.Streak {
			return nextAttendance(cur, date, t.opts.Location)
		},
	)
}

// RecordMiss resets the user's streak to zero and marks it inactive. The last
// attendance date is kept.
func (t *StreakTracker) RecordMiss(ctx context.Context, userID string) (*model.Streak, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	return t.mutate(ctx, userID,
		func(now time.Time) model.Streak {
			return model.Streak{UserID: userID, StreakCount: 0, Active: false, CreatedAt: now}
		},
		func(cur model.Streak) model.Streak {
			cur.StreakCount = 0
			cur.Active = false
			return cur
		},
	)
}

// Get returns the user's streak. A user with no record gets a not-found
// error, which is distinct from a zero streak.
func (t *StreakTracker) Get(ctx context.Context, userID string) (*model.Streak, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	var streak *model.Streak
	err := t.opts.store(ctx, "get streak", func(ctx context.Context) (err error) {
		streak, err = t.streaks.GetStreak(ctx, userID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Newf(apperr.KindNotFound, "streak for user %s not found", userID)
	}
	if err != nil {
		return nil, err
	}
	return streak, nil
}

// mutate creates or compare-and-swaps a streak record, retrying a bounded
// number of times when a concurrent writer wins.
func (t *StreakTracker) mutate(
	ctx context.Context,
	userID string,
	create func(now time.Time) model.Streak,
	update func(cur model.Streak) model.Streak,
) (*model.Streak, error) {
	for attempt := 0; attempt < t.opts.MaxRetries; attempt++ {
		var cur *model.Streak
		err := t.opts.store(ctx, "get streak", func(ctx context.Context) (err error) {
			cur, err = t.streaks.GetStreak(ctx, userID)
			return err
		})
		now := t.opts.Now()

		if errors.Is(err, repository.ErrNotFound) {
			fresh := create(now)
			fresh.Version = 1
			fresh.UpdatedAt = now
			err = t.opts.store(ctx, "create streak", func(ctx context.Context) error {
				return t.streaks.CreateStreak(ctx, &fresh)
			})
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return &fresh, nil
		}
		if err != nil {
			return nil, err
		}

		next := update(*cur)
		next.Version = cur.Version + 1
		next.UpdatedAt = now
		err = t.opts.store(ctx, "update streak", func(ctx context.Context) error {
			return t.streaks.UpdateStreak(ctx, &next, cur.Version)
		})
		if errors.Is(err, repository.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &next, nil
	}
	return nil, apperr.Wrap(apperr.KindConflict, "update streak: too many concurrent changes", apperr.ErrConflict)
}
