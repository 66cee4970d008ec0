// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. A table replace drops, recreates and bulk-loads
// the table inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"retaildc/internal/ddl"
	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, etlerr.Connectivity("mssql: ping", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// MapType maps a canonical column type onto a SQL Server column type.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "BIGINT"
	case schema.TypeDecimal:
		return "DECIMAL(38, 10)"
	case schema.TypeDate:
		return "DATE"
	default:
		return "NVARCHAR(MAX)"
	}
}

// replaceStatements returns the DROP and CREATE statements for table.
func replaceStatements(table string, cols []schema.Column) (drop, create string, err error) {
	create, err = ddl.BuildCreateTableSQL(ddl.FromColumns(table, cols, MapType), ddl.QuoteBracket)
	if err != nil {
		return "", "", err
	}
	return "DROP TABLE IF EXISTS " + msFQN(table), create, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error) {
	drop, create, err := replaceStatements(table, cols)
	if err != nil {
		return 0, fmt.Errorf("mssql: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, etlerr.Connectivity("mssql: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return 0, fmt.Errorf("mssql: drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("mssql: create %s: %w", table, err)
	}

	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = storage.DefaultBatchSize
	}
	n, err := storage.CopyBatches(ctx, storage.ColumnNames(cols), storage.SQLRows(rows), batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			return copyIn(ctx, tx, msFQN(table), columns, rows)
		})
	if err != nil {
		return 0, fmt.Errorf("mssql: bulk copy into %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// copyIn bulk-copies one batch within tx.
func copyIn(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx) // flush
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	return res.RowsAffected()
}

// msFQN quotes a possibly schema-qualified name like "dbo.dim_users" to
// "[dbo].[dim_users]".
func msFQN(name string) string { return ddl.QuoteFQN(name, ddl.QuoteBracket) }
