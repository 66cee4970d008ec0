// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and go-sql-driver/mysql.
//
// MySQL commits implicitly around DDL, so a table replace cannot run in one
// transaction. Instead rows are loaded into a staging table and swapped in
// with a single RENAME TABLE, which MySQL performs atomically. A failure
// before the swap drops the staging table and leaves the target untouched.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"retaildc/internal/ddl"
	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// maxPlaceholders is MySQL's prepared statement parameter limit.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens and pings a MySQL connection pool.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, etlerr.Connectivity("mysql: ping", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// MapType maps a canonical column type onto a MySQL column type.
func MapType(t schema.Type) string {
	switch t {
	case schema.TypeInt:
		return "BIGINT"
	case schema.TypeDecimal:
		return "DECIMAL(38, 10)"
	case schema.TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

func quote(name string) string { return ddl.QuoteFQN(name, ddl.QuoteBacktick) }

// oldName is where the previous table is parked during the swap.
func oldName(table string) string { return table + "__old" }

// insertSQL renders a multi-row INSERT for n rows.
func insertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ddl.QuoteBacktick(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	tuples := make([]string, n)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", quote(table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
}

// swapStatements renames the staging table over table. When table exists it
// is parked and dropped after the swap.
func swapStatements(table string, exists bool) []string {
	staging := storage.StagingName(table)
	if !exists {
		return []string{fmt.Sprintf("RENAME TABLE %s TO %s", quote(staging), quote(table))}
	}
	return []string{
		fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s", quote(table), quote(oldName(table)), quote(staging), quote(table)),
		"DROP TABLE IF EXISTS " + quote(oldName(table)),
	}
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error) {
	staging := storage.StagingName(table)
	create, err := ddl.BuildCreateTableSQL(ddl.FromColumns(staging, cols, MapType), ddl.QuoteBacktick)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + quote(staging),
		"DROP TABLE IF EXISTS " + quote(oldName(table)),
		create,
	} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("mysql: prepare staging for %s: %w", table, err)
		}
	}

	n, err := r.fill(ctx, staging, cols, rows)
	if err != nil {
		_, _ = r.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+quote(staging))
		return 0, fmt.Errorf("mysql: load %s: %w", staging, err)
	}

	exists, err := r.tableExists(ctx, table)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}
	for _, stmt := range swapStatements(table, exists) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("mysql: swap %s: %w", table, err)
		}
	}
	return n, nil
}

func (r *Repository) fill(ctx context.Context, staging string, cols []schema.Column, rows [][]any) (int64, error) {
	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = storage.DefaultBatchSize
	}
	batch = min(batch, maxPlaceholders/len(cols))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, etlerr.Connectivity("mysql: begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := storage.CopyBatches(ctx, storage.ColumnNames(cols), storage.SQLRows(rows), batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			args := make([]any, 0, len(rows)*len(columns))
			for _, row := range rows {
				args = append(args, row...)
			}
			res, err := tx.ExecContext(ctx, insertSQL(staging, columns, len(rows)), args...)
			if err != nil {
				return 0, err
			}
			return res.RowsAffected()
		})
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (r *Repository) tableExists(ctx context.Context, table string) (bool, error) {
	schemaExpr, name := "DATABASE()", table
	args := []any{}
	if i := strings.LastIndex(table, "."); i >= 0 {
		schemaExpr, name = "?", table[i+1:]
		args = append(args, table[:i])
	}
	args = append(args, name)

	var n int
	q := "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = " + schemaExpr + " AND table_name = ?"
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}
