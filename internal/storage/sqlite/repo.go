// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. A table replace runs DROP, CREATE and the batched INSERTs in
// one transaction; SQLite DDL is transactional, so a failed load rolls back
// to the previous table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"retaildc/internal/ddl"
	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, etlerr.Connectivity("sqlite: ping", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(
	ctx context.Context,
	table string,
	cols []schema.Column,
	rows [][]any,
) (int64, error) {
	if len(cols) == 0 {
		return 0, fmt.Errorf("sqlite: replace %s: columns must not be empty", table)
	}
	create, err := ddl.BuildCreateTableSQL(ddl.FromColumns(table, cols, MapType), ddl.QuoteANSI)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}

	names := storage.ColumnNames(cols)
	quoted := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ddl.QuoteANSI(n)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(table, ddl.QuoteANSI),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, etlerr.Connectivity("sqlite: begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+ddl.QuoteFQN(table, ddl.QuoteANSI)); err != nil {
		return 0, fmt.Errorf("sqlite: drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("sqlite: create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = storage.DefaultBatchSize
	}
	inserted, err := storage.CopyBatches(ctx, names, storage.SQLRows(rows), batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			var n int64
			for _, row := range rows {
				if len(row) != len(columns) {
					return n, fmt.Errorf("row length %d != columns length %d", len(row), len(columns))
				}
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return n, err
				}
				n++
			}
			return n, nil
		})
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert into %s: %w", table, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return inserted, nil
}
