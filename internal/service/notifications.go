package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
)

// Notifier sends a best-effort message to a user. Implementations never
// report failure back to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

// NotificationSink delivers one message synchronously.
type NotificationSink interface {
	Deliver(ctx context.Context, userID, message string) error
}

// NotificationService is the store-backed sink and the user's inbox.
type NotificationService struct {
	notifications repository.NotificationStore
	opts          Options
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(notifications repository.NotificationStore, opts Options) *NotificationService {
	return &NotificationService{notifications: notifications, opts: opts.withDefaults()}
}

// Deliver stores an unread notification for the user.
func (s *NotificationService) Deliver(ctx context.Context, userID, message string) error {
	n := &model.Notification{
		ID:        s.opts.NewID(),
		UserID:    userID,
		Message:   message,
		Read:      false,
		CreatedAt: s.opts.Now(),
	}
	return s.opts.store(ctx, "create notification", func(ctx context.Context) error {
		return s.notifications.CreateNotification(ctx, n)
	})
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	if err := requireID("user id", userID); err != nil {
		return nil, err
	}
	var out []model.Notification
	err := s.opts.store(ctx, "list notifications", func(ctx context.Context) (err error) {
		out, err = s.notifications.ListNotifications(ctx, userID)
		return err
	})
	return out, err
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := s.opts.store(ctx, "mark notification read", func(ctx context.Context) error {
		return s.notifications.MarkNotificationRead(ctx, userID, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Newf(apperr.KindNotFound, "notification %s does not exist", id)
	}
	return err
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	err := s.opts.store(ctx, "delete notification", func(ctx context.Context) error {
		return s.notifications.DeleteNotification(ctx, userID, id)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.Newf(apperr.KindNotFound, "notification %s does not exist", id)
	}
	return err
}

// Dispatcher delivers notifications in the background. Failures are logged
// and dropped.
type Dispatcher struct {
	sink    NotificationSink
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher that gives each delivery timeout.
func NewDispatcher(sink NotificationSink, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &Dispatcher{sink: sink, timeout: timeout}
}

// Notify queues a delivery and returns immediately. The delivery outlives the
// request context but not its own timeout.
func (d *Dispatcher) Notify(ctx context.Context, userID, message string) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.sink.Deliver(ctx, userID, message); err != nil {
			log.Printf("notify user %s (%q) failed: %v", userID, message, err)
		}
	}()
}

// Wait blocks until every queued delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
