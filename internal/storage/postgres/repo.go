// Package postgres implements a Postgres repository using pgx v5. A table
// replace runs DROP, CREATE and a batched COPY inside one transaction;
// Postgres DDL is transactional, so readers see either the old table or the
// new one.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"retaildc/internal/ddl"
	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	BatchSize int    // rows per COPY call
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, etlerr.Connectivity("postgres: ping", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// MapType maps a canonical column type onto a Postgres type.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "BIGINT"
	case schema.TypeDecimal:
		return "NUMERIC"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// pgValue converts a canonical value into one pgx encodes in binary COPY.
func pgValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return pgtype.Numeric{Int: x.Coefficient(), Exp: x.Exponent(), Valid: true}
	case schema.MalformedDate:
		return nil
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// identifier splits a dotted table name for pgx.
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(
	ctx context.Context,
	table string,
	cols []schema.Column,
	rows [][]any,
) (int64, error) {
	create, err := ddl.BuildCreateTableSQL(ddl.FromColumns(table, cols, MapType), ddl.QuoteANSI)
	if err != nil {
		return 0, fmt.Errorf("postgres: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, etlerr.Connectivity("postgres: begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ddl.QuoteFQN(table, ddl.QuoteANSI)); err != nil {
		return 0, fmt.Errorf("postgres: drop %s: %w", table, err)
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("postgres: create %s: %w", table, err)
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		vr := make([]any, len(row))
		for j, v := range row {
			vr[j] = pgValue(v)
		}
		values[i] = vr
	}

	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = storage.DefaultBatchSize
	}
	n, err := storage.CopyBatches(ctx, storage.ColumnNames(cols), values, batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return tx.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
		})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy into %s: %s (%s): %w", table, pgErr.Detail, pgErr.SQLState(), err)
		}
		return 0, fmt.Errorf("postgres: copy into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}
