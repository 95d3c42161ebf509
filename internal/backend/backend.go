// Package backend opens the store backend named by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/database"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/memory"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/mongostore"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository/postgres"
)

// Open connects to the configured backend, prepares its schema or indexes
// and returns the store bundle. The caller must call Stores.Close.
func Open(ctx context.Context, cfg config.Config) (repository.Stores, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return memory.New().Stores(), nil

	case config.BackendPostgres:
		pool, err := database.NewPool(ctx, cfg.DB)
		if err != nil {
			return repository.Stores{}, err
		}
		s := postgres.New(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return repository.Stores{}, err
		}
		return s.Stores(), nil

	case config.BackendMongo:
		client, err := database.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return repository.Stores{}, err
		}
		s := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return repository.Stores{}, err
		}
		return s.Stores(), nil

	default:
		return repository.Stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
