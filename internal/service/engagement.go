package service

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// EngagementCounter owns upvote records. The total for an event is always the
// sum over its records; there is no separate counter to drift.
type EngagementCounter struct {
	upvotes repository.UpvoteStore
	opts    Options
}

// NewEngagementCounter constructs an EngagementCounter.
func NewEngagementCounter(upvotes repository.UpvoteStore, opts Options) *EngagementCounter {
	return &EngagementCounter{upvotes: upvotes, opts: opts.withDefaults()}
}

// Upvote records a user's vote. The store's unique (user, event) key rejects
// a second one.
func (c *EngagementCounter) Upvote(ctx context.Context, userID, eventID string) (*model.Upvote, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	if err := requireID("event id", eventID); err != nil {
		return nil, err
	}
	upvote := &model.Upvote{
		ID:        c.opts.NewID(),
		UserID:    userID,
		EventID:   eventID,
		Count:     1,
		CreatedAt: c.opts.Now(),
	}
	err := c.opts.store(ctx, "create upvote", func(ctx context.Context) error {
		return c.upvotes.CreateUpvote(ctx, upvote)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.ErrAlreadyUpvoted
	}
	if err != nil {
		return nil, err
	}
	return upvote, nil
}

// RemoveUpvote deletes a user's vote.
func (c *EngagementCounter) RemoveUpvote(ctx context.Context, userID, eventID string) error {
	err := c.opts.store(ctx, "delete upvote", func(ctx context.Context) error {
		return c.upvotes.DeleteUpvote(ctx, userID, eventID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Newf(apperr.KindNotFound, "no upvote for event %s", eventID)
	}
	return err
}

// HasUpvoted reports whether the user has upvoted the event.
func (c *EngagementCounter) HasUpvoted(ctx context.Context, userID, eventID string) (bool, error) {
	err := c.opts.store(ctx, "get upvote", func(ctx context.Context) error {
		_, err := c.upvotes.GetUpvote(ctx, userID, eventID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Count returns the sum of upvote counts for an event.
func (c *EngagementCounter) Count(ctx context.Context, eventID string) (int, error) {
	var total int
	err := c.opts.store(ctx, "sum upvotes", func(ctx context.Context) (err error) {
		total, err = c.upvotes.SumUpvotes(ctx, eventID)
		return err
	})
	return total, err
}
