package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"retaildc/internal/schema"
)

// SQLValue converts a canonical value into one database/sql drivers accept:
// decimals become their exact string form, malformed dates become NULL and
// dates are normalized to UTC.
func SQLValue(v any) any {
	switch x := v.(type) {
	case decimal.Decimal:
		return x.String()
	case schema.MalformedDate:
		return nil
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// SQLRows applies SQLValue to every value, returning new rows.
func SQLRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		nr := make([]any, len(r))
		for j, v := range r {
			nr[j] = SQLValue(v)
		}
		out[i] = nr
	}
	return out
}

// ColumnNames returns the column names in order.
func ColumnNames(cols []schema.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// StagingName is the scratch table or collection a backend without
// transactional DDL fills before swapping it in.
func StagingName(table string) string { return table + "__staging" }
