package store

import (
	"context"
	"fmt"

	"jobsync/internal/config"
	"jobsync/internal/db"
)

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, unavailable("postgres", err)
		}
		s, err := NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.BackendDynamo:
		return NewDynamo(ctx, DynamoConfig{
			Table:    cfg.DynamoTable,
			Region:   cfg.AWSRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
	default:
		return nil, fmt.Errorf("unsupported store backend: %q", cfg.Backend)
	}
}
