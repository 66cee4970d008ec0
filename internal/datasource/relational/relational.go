// Package relational extracts whole tables from a SQL database through
// database/sql. Postgres (lib/pq), MySQL and SQLite sources are supported.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"retaildc/internal/datasource"
	"retaildc/internal/ddl"
	"retaildc/internal/etlerr"
	"retaildc/internal/retry"
	"retaildc/pkg/records"
)

// Dialect holds the per-database details the adapter needs.
type Dialect struct {
	Driver     string
	ListTables string
	Quote      func(ident string) string
}

var dialects = map[string]Dialect{
	"postgres": {
		Driver: "postgres",
		ListTables: `SELECT table_name FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema') AND table_type = 'BASE TABLE'
ORDER BY table_name`,
		Quote: ddl.QuoteANSI,
	},
	"mysql": {
		Driver:     "mysql",
		ListTables: `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`,
		Quote:      ddl.QuoteBacktick,
	},
	"sqlite": {
		Driver:     "sqlite",
		ListTables: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
		Quote:      ddl.QuoteANSI,
	},
}

// Source reads tables from one database.
type Source struct {
	dialect Dialect
	dsn     string
	policy  retry.Policy

	// open is sql.Open; tests replace it.
	open func(driver, dsn string) (*sql.DB, error)
}

// New returns a Source for dialect ("postgres", "mysql" or "sqlite").
func New(dialect, dsn string, policy retry.Policy) (*Source, error) {
	d, ok := dialects[dialect]
	if !ok {
		return nil, fmt.Errorf("relational: unsupported dialect %q", dialect)
	}
	return &Source{dialect: d, dsn: dsn, policy: policy, open: sql.Open}, nil
}

// Extract reads the table addressed by d in full. The connection is opened
// for this call only and closed before returning.
func (s *Source) Extract(ctx context.Context, d datasource.Descriptor) (records.Batch, error) {
	if d.Kind != datasource.KindRelational {
		return records.Batch{}, fmt.Errorf("relational: descriptor kind %q is not %q", d.Kind, datasource.KindRelational)
	}
	db, err := s.connect(ctx)
	if err != nil {
		return records.Batch{}, err
	}
	defer db.Close()

	tables, err := s.ListTables(ctx, db)
	if err != nil {
		return records.Batch{}, err
	}
	table, err := resolve(tables, d)
	if err != nil {
		return records.Batch{}, err
	}
	start := time.Now()
	b, err := s.readTable(ctx, db, table)
	if err != nil {
		return records.Batch{}, err
	}
	log.Printf("relational: table=%s rows=%d cols=%d elapsed=%s", table, b.Len(), len(b.Columns), time.Since(start).Truncate(time.Millisecond))
	return b, nil
}

func (s *Source) connect(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	err := s.policy.Do(ctx, "relational: connect", func(ctx context.Context) error {
		h, err := s.open(s.dialect.Driver, s.dsn)
		if err != nil {
			// A malformed DSN will not improve on retry.
			return fmt.Errorf("relational: open: %w", err)
		}
		if err := h.PingContext(ctx); err != nil {
			_ = h.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return etlerr.Connectivity("relational: connect", err)
		}
		db = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// ListTables returns the user tables visible on db.
func (s *Source) ListTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, s.dialect.ListTables)
	if err != nil {
		return nil, fmt.Errorf("relational: list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("relational: list tables: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// resolve picks the table named by d: the exact name when set, otherwise the
// first listed table containing TableMatch.
func resolve(tables []string, d datasource.Descriptor) (string, error) {
	if d.Table != "" {
		for _, t := range tables {
			if t == d.Table {
				return t, nil
			}
		}
		return "", etlerr.Errorf(etlerr.ErrNotFound, "relational: resolve", "table %q not in %v", d.Table, tables)
	}
	needle := strings.ToLower(d.TableMatch)
	for _, t := range tables {
		if strings.Contains(strings.ToLower(t), needle) {
			return t, nil
		}
	}
	return "", etlerr.Errorf(etlerr.ErrNotFound, "relational: resolve", "no table matching %q in %v", d.TableMatch, tables)
}

func (s *Source) readTable(ctx context.Context, db *sql.DB, table string) (records.Batch, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+s.dialect.Quote(table))
	if err != nil {
		return records.Batch{}, fmt.Errorf("relational: read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return records.Batch{}, fmt.Errorf("relational: read %s: %w", table, err)
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var recs []records.Record
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return records.Batch{}, fmt.Errorf("relational: scan %s: %w", table, err)
		}
		rec := make(records.Record, len(cols))
		for i, c := range cols {
			switch v := vals[i].(type) {
			case []byte:
				rec[c] = string(v)
			default:
				rec[c] = v
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return records.Batch{}, fmt.Errorf("relational: read %s: %w", table, err)
	}
	return records.NewBatch(recs, cols), nil
}
