// Package service implements the engagement ledger: the event registry, the
// reservation ledger, the upvote counter, the streak tracker, and the Ledger
// facade that sequences them when one user action touches several owners.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
)

const (
	defaultStoreTimeout = 5 * time.Second
	defaultMaxRetries   = 3
	maxCapacity         = 100_000
)

var tracer = otel.Tracer("github.com/Shivanand-hulikatti/event-engagement-ledger/internal/service")

// Options tunes the ledger components. Zero values fall back to defaults.
type Options struct {
	// StoreTimeout bounds every individual store call.
	StoreTimeout time.Duration
	// MaxRetries bounds optimistic compare-and-set retries.
	MaxRetries int
	// Location defines calendar days for streaks. Defaults to UTC.
	Location *time.Location
	// Now is the clock. Defaults to time.Now in UTC.
	Now func() time.Time
	// NewID generates record ids. Defaults to random UUIDs.
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.New().String() }
	}
	return o
}

// store runs one store call under the configured timeout and classifies a
// deadline expiry as a retryable failure.
func (o Options) store(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.StoreTimeout)
	defer cancel()
	return apperr.FromStore(op, fn(ctx))
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Newf(apperr.KindValidation, "%s is required", field)
	}
	return nil
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := apperr.KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("ledger.error_kind", string(kind)))
		}
	}
	span.End()
}
