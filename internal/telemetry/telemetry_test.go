package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "ledger-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupInstallsProvider(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Setup(ctx, "http://127.0.0.1:4318", "ledger-test")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := otel.Tracer("telemetry-test").Start(ctx, "probe")
	if !span.SpanContext().IsValid() {
		t.Fatal("span from installed provider has no valid context")
	}
	span.End()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	// Nothing listens on the endpoint; a failed flush is fine.
	_ = shutdown(ctx)
}
