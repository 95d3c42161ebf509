package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/database"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/storetest"
)

func TestStoreConformance(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := database.OpenMongo(ctx, uri)
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	db := client.Database(fmt.Sprintf("ledger_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	s := New(db)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	stores := s.Stores()
	// Disconnect happens in cleanup after the drop.
	stores.Close = nil
	storetest.Run(t, stores)
}
