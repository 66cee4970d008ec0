package postgres

import (
	"context"

	"retaildc/internal/storage"
)

// newRepository is swapped by tests to avoid a real pool.
var newRepository = NewRepository

// init makes the backend reachable through storage.New(ctx, storage.Config{Kind: "postgres"}).
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, BatchSize: cfg.BatchSizeOrDefault()})
		if err != nil {
			return nil, err
		}
		return storage.WithClose(r, closeFn), nil
	})
}
