// Package storage defines the warehouse contract the load stage writes
// through, a registry of backend factories, and backend-agnostic helpers.
//
// Backends register themselves from init():
//
//	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) { ... })
//
// and callers obtain one with storage.New without importing the backend.
// Importing retaildc/internal/storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"retaildc/internal/schema"
)

// Repository is a warehouse the load stage writes to.
type Repository interface {
	Replacer
	Close()
}

// Replacer is the write half of Repository. Backend constructors return one
// together with the cleanup that releases its connections.
type Replacer interface {
	// ReplaceTable makes table contain exactly rows, created from cols. The
	// swap is all-or-nothing: on error the previous contents of table, if
	// any, are left untouched. It returns the number of rows written.
	ReplaceTable(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error)
}

// WithClose returns a Repository that writes through r and runs closeFn on the
// first Close. A nil closeFn is allowed.
func WithClose(r Replacer, closeFn func()) Repository {
	return &closing{Replacer: r, closeFn: closeFn}
}

type closing struct {
	Replacer
	once    sync.Once
	closeFn func()
}

func (c *closing) Close() {
	c.once.Do(func() {
		if c.closeFn != nil {
			c.closeFn()
		}
	})
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name: postgres, sqlite, mssql, mysql
	// or mongo.
	Kind string
	DSN  string

	// Database names the target database where the DSN does not carry one
	// (mongo).
	Database string

	// BatchSize bounds rows per bulk-copy call. Zero means DefaultBatchSize.
	BatchSize int
}

// DefaultBatchSize is used when Config.BatchSize is zero.
const DefaultBatchSize = 5000

// BatchSizeOrDefault returns c.BatchSize or DefaultBatchSize.
func (c Config) BatchSizeOrDefault() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return DefaultBatchSize
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
