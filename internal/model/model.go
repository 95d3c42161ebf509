// Package model defines the core domain types for the engagement ledger.
package model

import "time"

// EventStatus is a state in the event lifecycle.
type EventStatus string

const (
	StatusUpcoming  EventStatus = "upcoming"
	StatusOngoing   EventStatus = "ongoing"
	StatusCompleted EventStatus = "completed"
	StatusCanceled  EventStatus = "canceled"
)

// Reservable reports whether new reservations may be taken in this state.
func (s EventStatus) Reservable() bool {
	return s == StatusUpcoming || s == StatusOngoing
}

// Terminal reports whether no transition leaves this state.
func (s EventStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// ReservableStatuses lists the states that accept reservations.
var ReservableStatuses = []EventStatus{StatusUpcoming, StatusOngoing}

// Event is a capacity-limited event published by a host.
type Event struct {
	ID            string      `json:"id" bson:"_id"`
	HostID        string      `json:"host_id" bson:"host_id"`
	Title         string      `json:"title" bson:"title"`
	Description   string      `json:"description" bson:"description"`
	CategoryID    string      `json:"category_id" bson:"category_id"`
	MoodTagID     string      `json:"mood_tag_id" bson:"mood_tag_id"`
	Capacity      int         `json:"capacity" bson:"capacity"`
	AttendeeCount int         `json:"attendee_count" bson:"attendee_count"`
	Location      string      `json:"location" bson:"location"`
	ScheduledAt   time.Time   `json:"scheduled_at" bson:"scheduled_at"`
	Status        EventStatus `json:"status" bson:"status"`
	Version       int64       `json:"version" bson:"version"`
	CreatedAt     time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" bson:"updated_at"`
}

// Remaining returns the number of available spots, never below zero.
func (e *Event) Remaining() int {
	return max(e.Capacity-e.AttendeeCount, 0)
}

// CapacitySnapshot is the read used by the reservation ledger.
type CapacitySnapshot struct {
	EventID       string      `json:"event_id"`
	Capacity      int         `json:"capacity"`
	AttendeeCount int         `json:"attendee_count"`
	Remaining     int         `json:"remaining"`
	Status        EventStatus `json:"status"`
}

// EventPatch carries the host-editable fields of an event. Nil means unchanged.
type EventPatch struct {
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Description == nil && p.Location == nil && p.Capacity == nil
}

// ReservationStatus is the state of a reservation.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationCanceled ReservationStatus = "canceled"
)

// Reservation is a user's claim on one spot of an event.
type Reservation struct {
	ID        string            `json:"id" bson:"_id"`
	UserID    string            `json:"user_id" bson:"user_id"`
	EventID   string            `json:"event_id" bson:"event_id"`
	Status    ReservationStatus `json:"status" bson:"status"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

// Upvote is one user's vote for an event.
type Upvote struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	EventID   string    `json:"event_id" bson:"event_id"`
	Count     int       `json:"count" bson:"count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Streak tracks consecutive attendance days for one user.
type Streak struct {
	UserID         string     `json:"user_id" bson:"_id"`
	LastAttendance *time.Time `json:"last_attendance" bson:"last_attendance"`
	StreakCount    int        `json:"streak_count" bson:"streak_count"`
	Active         bool       `json:"active" bson:"active"`
	Version        int64      `json:"-" bson:"version"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

// Notification is a message delivered to a user's inbox.
type Notification struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Message   string    `json:"message" bson:"message"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  string    `json:"category_id"`
	MoodTagID   string    `json:"mood_tag_id"`
	Capacity    int       `json:"capacity"`
	Location    string    `json:"location"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// AttendanceRequest is the payload a host sends to mark one attendee.
type AttendanceRequest struct {
	UserID   string `json:"user_id"`
	Attended bool   `json:"attended"`
}

// StatusRequest asks for an externally triggered lifecycle transition.
type StatusRequest struct {
	Status EventStatus `json:"status"`
}

// UpvoteCount is the aggregate upvote read for an event.
type UpvoteCount struct {
	EventID string `json:"event_id"`
	Count   int    `json:"count"`
	Upvoted bool   `json:"upvoted"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// ReservationResult summarises the outcome of a single reservation attempt.
// Used by the concurrent stress harness.
type ReservationResult struct {
	UserID  string
	Success bool
	Error   error
}
