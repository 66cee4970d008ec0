package ddl

import (
	"strings"
	"testing"

	"retaildc/internal/schema"
)

// TestBuildCreateTableSQL verifies the rendered statements and the errors for
// invalid definitions.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		q           Quoter
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "public.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "", SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing SQLType",
		},
		{
			name:    "unquoted nullable and not null columns",
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT"}, {Name: "x", SQLType: "TEXT", Nullable: true}}},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  x TEXT\n);",
		},
		{
			name: "ansi quoting of dotted name and primary key",
			def: TableDef{FQN: " public.dim_users ", Columns: []ColumnDef{
				{Name: "user_uuid", SQLType: "TEXT", PrimaryKey: true},
				{Name: "country_code", SQLType: "TEXT", Nullable: true},
			}},
			q:       QuoteANSI,
			wantSQL: "CREATE TABLE \"public\".\"dim_users\" (\n  \"user_uuid\" TEXT NOT NULL,\n  \"country_code\" TEXT,\n  PRIMARY KEY (\"user_uuid\")\n);",
		},
		{
			name:    "bracket quoting escapes closing bracket",
			def:     TableDef{FQN: "dbo.t", Columns: []ColumnDef{{Name: "a]b", SQLType: "INT", Nullable: true}}},
			q:       QuoteBracket,
			wantSQL: "CREATE TABLE [dbo].[t] (\n  [a]]b] INT\n);",
		},
		{
			name:    "backtick quoting",
			def:     TableDef{FQN: "orders_table", Columns: []ColumnDef{{Name: "index", SQLType: "BIGINT", Nullable: true}}},
			q:       QuoteBacktick,
			wantSQL: "CREATE TABLE `orders_table` (\n  `index` BIGINT\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotSQL, err := BuildCreateTableSQL(tt.def, tt.q)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("BuildCreateTableSQL() error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildCreateTableSQL() unexpected error = %v", err)
			}
			if gotSQL != tt.wantSQL {
				t.Fatalf("BuildCreateTableSQL() =\n%s\nwant:\n%s", gotSQL, tt.wantSQL)
			}
		})
	}
}

// TestFromColumns verifies required columns become NOT NULL and types go
// through the mapper.
func TestFromColumns(t *testing.T) {
	t.Parallel()

	cols := []schema.Column{
		{Name: "product_code", Type: schema.TypeString, Required: true},
		{Name: "product_price", Type: schema.TypeDecimal},
	}
	td := FromColumns("dim_products", cols, func(t schema.Type) string { return strings.ToUpper(string(t)) })

	want := []ColumnDef{
		{Name: "product_code", SQLType: "STRING"},
		{Name: "product_price", SQLType: "DECIMAL", Nullable: true},
	}
	if td.FQN != "dim_products" || len(td.Columns) != len(want) {
		t.Fatalf("FromColumns() = %+v", td)
	}
	for i := range want {
		if td.Columns[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, td.Columns[i], want[i])
		}
	}
}

var benchmarkSink string

// BenchmarkBuildCreateTableSQL_LargeSchema simulates a wide denormalized table.
func BenchmarkBuildCreateTableSQL_LargeSchema(b *testing.B) {
	cols := make([]ColumnDef, 0, 64)
	for i := 0; i < 64; i++ {
		cols = append(cols, ColumnDef{Name: "col_" + string(rune('a'+i%26)) + strings.Repeat("x", i/26), SQLType: "TEXT", Nullable: true})
	}
	def := TableDef{FQN: "large_table", Columns: cols}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sql, err := BuildCreateTableSQL(def, QuoteANSI)
		if err != nil {
			b.Fatalf("BuildCreateTableSQL() error = %v", err)
		}
		benchmarkSink = sql
	}
}
