package mongo

import (
	"context"

	"retaildc/internal/storage"
)

// newRepository is a test hook.
var newRepository = NewRepository

// The storage DSN is the mongodb:// URI; Database overrides the one it names.
func init() {
	storage.Register("mongo", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			URI:       cfg.DSN,
			Database:  cfg.Database,
			BatchSize: cfg.BatchSizeOrDefault(),
		})
		if err != nil {
			return nil, err
		}
		return storage.WithClose(r, closeFn), nil
	})
}
