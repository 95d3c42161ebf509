// Package mongostore implements the store contracts on MongoDB. Conditional
// writes are single UpdateOne calls whose filter carries the guard, so the
// document-level atomicity of the server is the serialisation point.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// Store implements every repository interface over one database.
type Store struct {
	db            *mongo.Database
	events        *mongo.Collection
	reservations  *mongo.Collection
	upvotes       *mongo.Collection
	streaks       *mongo.Collection
	notifications *mongo.Collection
}

// New constructs a Store. Call EnsureIndexes before serving traffic: the
// uniqueness guarantees live in the indexes.
func New(db *mongo.Database) *Store {
	return &Store{
		db:            db,
		events:        db.Collection("events"),
		reservations:  db.Collection("reservations"),
		upvotes:       db.Collection("upvotes"),
		streaks:       db.Collection("streaks"),
		notifications: db.Collection("notifications"),
	}
}

// EnsureIndexes creates the indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("events_host_created"),
		},
		{
			Keys:    bson.D{{Key: "category_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("events_category_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}

	_, err = s.reservations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("reservations_active_pair").
				SetPartialFilterExpression(bson.M{"status": string(model.ReservationActive)}),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("reservations_event_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("reservations indexes: %w", err)
	}

	_, err = s.upvotes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("upvotes_pair_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("upvotes indexes: %w", err)
	}

	_, err = s.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("notifications_user_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("notifications indexes: %w", err)
	}
	return nil
}

// Stores exposes the Store through the repository bundle. Close disconnects
// the client.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Events:        s,
		Reservations:  s,
		Upvotes:       s,
		Streaks:       s,
		Notifications: s,
		Close: func(ctx context.Context) error {
			return s.db.Client().Disconnect(ctx)
		},
	}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
}

func insertErr(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

func findErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor, op string) ([]T, error) {
	defer cur.Close(ctx)
	var out []T
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s cursor: %w", op, err)
	}
	return out, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	if _, err := s.events.InsertOne(ctx, e); err != nil {
		return insertErr("insert event", err)
	}
	return nil
}

// GetEvent returns a single event or repository.ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	if err := s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, findErr("get event", err)
	}
	return &e, nil
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	q := bson.M{}
	if filter.HostID != "" {
		q["host_id"] = filter.HostID
	}
	if filter.CategoryID != "" {
		q["category_id"] = filter.CategoryID
	}
	cur, err := s.events.Find(ctx, q, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return decodeAll[model.Event](ctx, cur, "event")
}

// UpdateEvent applies patch under a version and capacity guard.
func (s *Store) UpdateEvent(ctx context.Context, id string, expectedVersion int64, patch model.EventPatch) error {
	filter := bson.M{"_id": id, "version": expectedVersion}
	set := bson.M{"updated_at": now()}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Capacity != nil {
		set["capacity"] = *patch.Capacity
		filter["attendee_count"] = bson.M{"$lte": *patch.Capacity}
	}
	res, err := s.events.UpdateOne(ctx, filter, bson.M{
		"$set": set,
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// TransitionStatus moves the event to `to` if its status is one of `from`.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error {
	res, err := s.events.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{
			"$set": bson.M{"status": to, "updated_at": now()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("transition event: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// IncrementAttendees adds one attendee while reservable and below capacity.
// The $expr comparison is evaluated against the document as it is being
// updated, so concurrent increments can never overshoot capacity.
func (s *Store) IncrementAttendees(ctx context.Context, id string) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": model.ReservableStatuses},
		"$expr":  bson.M{"$lt": bson.A{"$attendee_count", "$capacity"}},
	}
	update := bson.M{
		"$inc": bson.M{"attendee_count": 1},
		"$set": bson.M{"updated_at": now()},
	}
	res, err := s.events.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("increment attendee_count: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// DecrementAttendees removes one attendee, clamping at zero.
func (s *Store) DecrementAttendees(ctx context.Context, id string) error {
	res, err := s.events.UpdateOne(ctx,
		bson.M{"_id": id, "attendee_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"attendee_count": -1},
			"$set": bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("decrement attendee_count: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := s.events.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("decrement attendee_count: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event with no attendees, then its reservations.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.events.DeleteOne(ctx, bson.M{"_id": id, "attendee_count": 0})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrConditionFailed
	}
	if _, err := s.reservations.DeleteMany(ctx, bson.M{"event_id": id}); err != nil {
		return fmt.Errorf("delete event reservations: %w", err)
	}
	return nil
}

// ─── Reservations ─────────────────────────────────────────────────────────────

// CreateReservation inserts a reservation. The partial unique index rejects a
// second active reservation for the pair.
func (s *Store) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if _, err := s.reservations.InsertOne(ctx, r); err != nil {
		return insertErr("insert reservation", err)
	}
	return nil
}

// GetActiveReservation returns the pair's active reservation.
func (s *Store) GetActiveReservation(ctx context.Context, userID, eventID string) (*model.Reservation, error) {
	var r model.Reservation
	err := s.reservations.FindOne(ctx, bson.M{
		"user_id":  userID,
		"event_id": eventID,
		"status":   model.ReservationActive,
	}).Decode(&r)
	if err != nil {
		return nil, findErr("get reservation", err)
	}
	return &r, nil
}

// CancelReservation flips an active reservation to canceled.
func (s *Store) CancelReservation(ctx context.Context, id string) error {
	res, err := s.reservations.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.ReservationActive},
		bson.M{"$set": bson.M{"status": model.ReservationCanceled, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// ListActiveByEvent returns an event's active reservations, newest first.
func (s *Store) ListActiveByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	return s.listActive(ctx, bson.M{"event_id": eventID, "status": model.ReservationActive})
}

// ListActiveByUser returns a user's active reservations, newest first.
func (s *Store) ListActiveByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.listActive(ctx, bson.M{"user_id": userID, "status": model.ReservationActive})
}

func (s *Store) listActive(ctx context.Context, filter bson.M) ([]model.Reservation, error) {
	cur, err := s.reservations.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return decodeAll[model.Reservation](ctx, cur, "reservation")
}

// ─── Upvotes ──────────────────────────────────────────────────────────────────

// CreateUpvote inserts an upvote; the unique pair index rejects a second.
func (s *Store) CreateUpvote(ctx context.Context, u *model.Upvote) error {
	if _, err := s.upvotes.InsertOne(ctx, u); err != nil {
		return insertErr("insert upvote", err)
	}
	return nil
}

// GetUpvote returns the pair's upvote.
func (s *Store) GetUpvote(ctx context.Context, userID, eventID string) (*model.Upvote, error) {
	var u model.Upvote
	if err := s.upvotes.FindOne(ctx, bson.M{"user_id": userID, "event_id": eventID}).Decode(&u); err != nil {
		return nil, findErr("get upvote", err)
	}
	return &u, nil
}

// DeleteUpvote removes the pair's upvote.
func (s *Store) DeleteUpvote(ctx context.Context, userID, eventID string) error {
	res, err := s.upvotes.DeleteOne(ctx, bson.M{"user_id": userID, "event_id": eventID})
	if err != nil {
		return fmt.Errorf("delete upvote: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SumUpvotes totals the counts of an event's upvotes.
func (s *Store) SumUpvotes(ctx context.Context, eventID string) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"event_id": eventID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$count"}}}},
	}
	cur, err := s.upvotes.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum upvotes: %w", err)
	}
	rows, err := decodeAll[struct {
		Total int `bson:"total"`
	}](ctx, cur, "upvote sum")
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

// ─── Streaks ──────────────────────────────────────────────────────────────────

// GetStreak returns a user's streak.
func (s *Store) GetStreak(ctx context.Context, userID string) (*model.Streak, error) {
	var st model.Streak
	if err := s.streaks.FindOne(ctx, bson.M{"_id": userID}).Decode(&st); err != nil {
		return nil, findErr("get streak", err)
	}
	return &st, nil
}

// CreateStreak inserts a user's first streak record.
func (s *Store) CreateStreak(ctx context.Context, st *model.Streak) error {
	if _, err := s.streaks.InsertOne(ctx, st); err != nil {
		return insertErr("insert streak", err)
	}
	return nil
}

// UpdateStreak replaces the record when its version still matches.
func (s *Store) UpdateStreak(ctx context.Context, st *model.Streak, expectedVersion int64) error {
	res, err := s.streaks.ReplaceOne(ctx, bson.M{"_id": st.UserID, "version": expectedVersion}, st)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConditionFailed
	}
	return nil
}

// ─── Notifications ────────────────────────────────────────────────────────────

// CreateNotification inserts a notification.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	if _, err := s.notifications.InsertOne(ctx, n); err != nil {
		return insertErr("insert notification", err)
	}
	return nil
}

// ListNotifications returns a user's notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	cur, err := s.notifications.Find(ctx, bson.M{"user_id": userID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return decodeAll[model.Notification](ctx, cur, "notification")
}

// MarkNotificationRead marks one of the user's notifications read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.notifications.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteNotification removes one of the user's notifications.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	res, err := s.notifications.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var (
	_ repository.EventStore        = (*Store)(nil)
	_ repository.ReservationStore  = (*Store)(nil)
	_ repository.UpvoteStore       = (*Store)(nil)
	_ repository.StreakStore       = (*Store)(nil)
	_ repository.NotificationStore = (*Store)(nil)
)
