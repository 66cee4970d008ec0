package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retaildc/internal/schema"
)

/*
Package-level test helpers (TB-aware)
*/

func newRepo(tb testing.TB, batch int) *Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "warehouse.db")
	r, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn, BatchSize: batch})
	if err != nil {
		tb.Fatalf("NewRepository: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func countRows(tb testing.TB, r *Repository, table string) int {
	tb.Helper()
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

var productCols = []schema.Column{
	{Name: "product_code", Type: schema.TypeString, Required: true},
	{Name: "product_price", Type: schema.TypeDecimal},
	{Name: "weight", Type: schema.TypeDecimal},
	{Name: "date_added", Type: schema.TypeDate},
	{Name: "stock", Type: schema.TypeInt},
}

func productRows() [][]any {
	day := time.Date(2018, 2, 12, 0, 0, 0, 0, time.UTC)
	return [][]any{
		{"A1", decimal.RequireFromString("1.50"), decimal.RequireFromString("0.3"), day, int64(4)},
		{"B2", nil, nil, schema.MalformedDate{Raw: "2018-13-99"}, nil},
		{"C3", decimal.RequireFromString("39.99"), decimal.RequireFromString("1.2"), day, int64(0)},
	}
}

/*
Unit tests
*/

// TestReplaceTable_CreatesAndFills verifies the table is created from the
// columns, rows land in order and malformed dates are stored as NULL.
func TestReplaceTable_CreatesAndFills(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 2)
	ctx := context.Background()

	n, err := r.ReplaceTable(ctx, "dim_products", productCols, productRows())
	if err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if n != 3 || countRows(t, r, "dim_products") != 3 {
		t.Fatalf("inserted=%d rows=%d, want 3", n, countRows(t, r, "dim_products"))
	}

	var (
		price   string
		dateNil any
	)
	if err := r.db.QueryRow(`SELECT product_price FROM dim_products WHERE product_code = 'A1'`).Scan(&price); err != nil {
		t.Fatalf("select price: %v", err)
	}
	if price != "1.5" {
		t.Errorf("price = %q, want exact decimal text 1.5", price)
	}
	if err := r.db.QueryRow(`SELECT date_added FROM dim_products WHERE product_code = 'B2'`).Scan(&dateNil); err != nil {
		t.Fatalf("select date: %v", err)
	}
	if dateNil != nil {
		t.Errorf("malformed date stored as %v, want NULL", dateNil)
	}
}

// TestReplaceTable_IsIdempotent verifies a second load of the same batch
// leaves the same contents rather than appending.
func TestReplaceTable_IsIdempotent(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 0)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := r.ReplaceTable(ctx, "dim_products", productCols, productRows()); err != nil {
			t.Fatalf("ReplaceTable #%d: %v", i, err)
		}
	}
	if got := countRows(t, r, "dim_products"); got != 3 {
		t.Fatalf("rows after two loads = %d, want 3", got)
	}

	if _, err := r.ReplaceTable(ctx, "dim_products", productCols, productRows()[:1]); err != nil {
		t.Fatalf("ReplaceTable smaller batch: %v", err)
	}
	if got := countRows(t, r, "dim_products"); got != 1 {
		t.Fatalf("rows after replace = %d, want 1", got)
	}
}

// TestReplaceTable_FailureKeepsPreviousContents injects a write failure
// (NULL in a NOT NULL column) in the last batch and checks the prior table
// survives untouched.
func TestReplaceTable_FailureKeepsPreviousContents(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 1)
	ctx := context.Background()

	if _, err := r.ReplaceTable(ctx, "dim_products", productCols, productRows()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	bad := append(productRows()[:2], []any{nil, nil, nil, nil, nil})
	if _, err := r.ReplaceTable(ctx, "dim_products", productCols, bad); err == nil {
		t.Fatal("ReplaceTable with NULL product_code succeeded, want error")
	}
	if got := countRows(t, r, "dim_products"); got != 3 {
		t.Fatalf("rows after failed replace = %d, want previous 3", got)
	}
}

// TestReplaceTable_FailureOnFreshTableLeavesNoTable checks a failed first
// load does not leave a half-created table behind.
func TestReplaceTable_FailureOnFreshTableLeavesNoTable(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 0)
	ctx := context.Background()

	if _, err := r.ReplaceTable(ctx, "dim_products", productCols, [][]any{{nil, nil, nil, nil, nil}}); err == nil {
		t.Fatal("expected error")
	}
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='dim_products'`).Scan(&n)
	if err != nil || n != 0 {
		t.Fatalf("table exists after failed first load: n=%d err=%v", n, err)
	}
}

func TestReplaceTable_EmptyBatchCreatesEmptyTable(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 0)
	if _, err := r.ReplaceTable(context.Background(), "dim_products", productCols, nil); err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}
	if got := countRows(t, r, "dim_products"); got != 0 {
		t.Fatalf("rows = %d, want 0", got)
	}
}

func TestReplaceTable_CanceledContext(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.ReplaceTable(ctx, "dim_products", productCols, productRows())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestMapType(t *testing.T) {
	t.Parallel()

	cases := map[schema.Type]string{
		schema.TypeInt:      "INTEGER",
		schema.TypeDate:     "DATE",
		schema.TypeDecimal:  "TEXT",
		schema.TypeString:   "TEXT",
		schema.TypeCategory: "TEXT",
	}
	for in, want := range cases {
		if got := MapType(in); got != want {
			t.Errorf("MapType(%s) = %s, want %s", in, got, want)
		}
	}
}
