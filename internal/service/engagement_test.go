package service

import (
	"context"
	"testing"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
)

func TestUpvoteRemoveUpvoteCountsOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 3)

	if _, err := f.ledger.Upvote(ctx, "a", e.ID); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if err := f.ledger.RemoveUpvote(ctx, "a", e.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := f.ledger.Upvote(ctx, "a", e.ID); err != nil {
		t.Fatalf("upvote again: %v", err)
	}
	if _, err := f.ledger.Upvote(ctx, "b", e.ID); err != nil {
		t.Fatalf("upvote b: %v", err)
	}

	got, err := f.ledger.UpvoteCount(ctx, "a", e.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	ok, err := f.ledger.Upvotes.HasUpvoted(ctx, "a", e.ID)
	if err != nil || !ok {
		t.Fatalf("has upvoted = %v, %v", ok, err)
	}
}

func TestDuplicateUpvoteRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	e := f.createEvent(t, "host", 3)
	if _, err := f.ledger.Upvote(ctx, "a", e.ID); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	_, err := f.ledger.Upvote(ctx, "a", e.ID)
	wantKind(t, err, apperr.ErrAlreadyUpvoted)

	got, _ := f.ledger.UpvoteCount(ctx, "a", e.ID)
	if got.Count != 1 {
		t.Fatalf("count = %d, want 1", got.Count)
	}
	if msgs := f.notifier.forUser("a"); len(msgs) != 1 {
		t.Fatalf("notifications = %v", msgs)
	}
}

func TestRemoveMissingUpvote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	e := f.createEvent(t, "host", 3)
	wantKind(t, f.ledger.RemoveUpvote(context.Background(), "a", e.ID), apperr.ErrNotFound)

	ok, err := f.ledger.Upvotes.HasUpvoted(context.Background(), "a", e.ID)
	if err != nil || ok {
		t.Fatalf("has upvoted = %v, %v", ok, err)
	}
}

func TestUpvoteMissingEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ledger.Upvote(ctx, "a", "missing")
	wantKind(t, err, apperr.ErrNotFound)
	_, err = f.ledger.UpvoteCount(ctx, "a", "missing")
	wantKind(t, err, apperr.ErrNotFound)
}
