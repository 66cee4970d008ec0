package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MalformedDate marks a date value that was present in the source but could
// not be parsed. It is distinct from nil, which means the value was missing.
// Warehouses store it as NULL.
type MalformedDate struct {
	Raw string
}

func (m MalformedDate) String() string { return fmt.Sprintf("malformed date %q", m.Raw) }

// Row holds one canonical row aligned to Entity.Columns.
type Row []any

// Batch is a cleaned, typed batch ready for load.
type Batch struct {
	Entity Entity
	Rows   []Row
}

// Len returns the number of rows.
func (b Batch) Len() int { return len(b.Rows) }

// Values returns the rows as [][]any, the shape storage backends consume.
func (b Batch) Values() [][]any {
	out := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r
	}
	return out
}

// Check verifies every value against its column type without coercing.
// The returned error names the first offending row and column.
func (b Batch) Check() error {
	cols := b.Entity.Columns
	for i, row := range b.Rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d: %d values for %d columns", i, len(row), len(cols))
		}
		for j, c := range cols {
			if err := checkValue(c, row[j]); err != nil {
				return fmt.Errorf("row %d column %q: %w", i, c.Name, err)
			}
		}
	}
	return nil
}

func checkValue(c Column, v any) error {
	if v == nil {
		if c.Required {
			return fmt.Errorf("null in required column")
		}
		return nil
	}
	switch c.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("want string, got %T", v)
		}
	case TypeCategory:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want category string, got %T", v)
		}
		if len(c.Enum) > 0 && !contains(c.Enum, s) {
			return fmt.Errorf("value %q not in enum %v", s, c.Enum)
		}
	case TypeInt:
		if _, ok := v.(int64); !ok {
			return fmt.Errorf("want int64, got %T", v)
		}
	case TypeDecimal:
		if _, ok := v.(decimal.Decimal); !ok {
			return fmt.Errorf("want decimal, got %T", v)
		}
	case TypeDate:
		switch v.(type) {
		case time.Time:
		case MalformedDate:
			if c.Required {
				return fmt.Errorf("malformed date in required column")
			}
		default:
			return fmt.Errorf("want date, got %T", v)
		}
	default:
		return fmt.Errorf("unknown column type %q", c.Type)
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
