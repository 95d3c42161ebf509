package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/database"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/storetest"
)

// openTestStore connects to TEST_POSTGRES_DSN and skips when it is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	pool, err := database.NewPool(ctx, database.Config{URL: dsn, ConnectRetries: 1})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Migrate is idempotent.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate again: %v", err)
	}
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, openTestStore(t).Stores())
}

func TestUniqueViolationDetection(t *testing.T) {
	if isUniqueViolation(nil) {
		t.Fatal("nil reported as unique violation")
	}
	if isUniqueViolation(context.Canceled) {
		t.Fatal("context error reported as unique violation")
	}
}
