// This file implements the load entry point and a generic batched copy loop
// that backends use inside their replace transaction.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of rows
// reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// CopyBatches slices rows into batches of batchSize and calls copyFn for each.
// It returns the total number of rows reported by copyFn and the first error
// encountered; no further batches are attempted after an error.
func CopyBatches(
	ctx context.Context,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Printf("loader: copy failed after=%d total=%d err=%v", n, total, err)
			return total, err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Printf(
			"loader: batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			batches, rps, n, total, now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
	}
	return total, nil
}

// Load checks b against its entity schema and replaces table with its rows.
// An empty table name means b.Entity.Table. A batch that fails the check is
// an etlerr.ErrSchema error and nothing is written.
func Load(ctx context.Context, repo Replacer, b schema.Batch, table string) (int64, error) {
	if table == "" {
		table = b.Entity.Table
	}
	op := "load " + table
	if err := b.Check(); err != nil {
		return 0, etlerr.Schema(op, err)
	}
	n, err := repo.ReplaceTable(ctx, table, b.Entity.Columns, b.Values())
	if err != nil {
		return n, fmt.Errorf("%s: %w", op, err)
	}
	log.Printf("loader: table=%s rows=%d", table, n)
	return n, nil
}
