package builtin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"retaildc/internal/schema"
	"retaildc/internal/validator"
	"retaildc/pkg/records"
)

// Coerce converts field values to their canonical Go types:
//
//	string, category -> string
//	int              -> int64
//	decimal          -> decimal.Decimal
//	date             -> time.Time (UTC)
//
// A failed conversion in an optional column sets the field to nil, or to
// schema.MalformedDate for date columns. A failed conversion in a required
// column drops the record. Measurement columns are left to the Weight
// transformer.
type Coerce struct {
	Columns []schema.Column
	Dates   validator.Date
	Reject  func(RejectedRow)

	// OnNullFill is called when an optional field is set to nil.
	OnNullFill func(field string, raw any)
	// OnMalformedDate is called when an optional date is kept as
	// schema.MalformedDate.
	OnMalformedDate func(field string, raw any)
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Columns) == 0 {
		return in
	}
	out := in[:0]
	for _, r := range in {
		if c.coerceRecord(r) {
			out = append(out, r)
		}
	}
	return out
}

func (c Coerce) coerceRecord(r records.Record) bool {
	for _, col := range c.Columns {
		if col.Measurement {
			continue
		}
		v, ok := r[col.Name]
		if !ok || v == nil {
			continue
		}
		nv, err := c.coerce(col, v)
		if err == nil {
			r[col.Name] = nv
			continue
		}
		switch {
		case col.Required:
			reject(c.Reject, RejectedRow{
				Raw:    r,
				Field:  col.Name,
				Reason: fmt.Sprintf("field %q: %v", col.Name, err),
				Stage:  StageCoerce,
			})
			return false
		case col.Type == schema.TypeDate:
			r[col.Name] = schema.MalformedDate{Raw: fmt.Sprint(v)}
			if c.OnMalformedDate != nil {
				c.OnMalformedDate(col.Name, v)
			}
		default:
			r[col.Name] = nil
			if c.OnNullFill != nil {
				c.OnNullFill(col.Name, v)
			}
		}
	}
	return true
}

func (c Coerce) coerce(col schema.Column, v any) (any, error) {
	switch col.Type {
	case schema.TypeString:
		return toText(v)
	case schema.TypeCategory:
		s, err := toText(v)
		if err != nil {
			return nil, err
		}
		if len(col.Enum) > 0 && !inEnum(col.Enum, s) {
			return nil, fmt.Errorf("%q not in %v", s, col.Enum)
		}
		return s, nil
	case schema.TypeInt:
		return toInt(v)
	case schema.TypeDecimal:
		d, ok := validator.ParseDecimal(v, "")
		if !ok {
			return nil, fmt.Errorf("%v is not a decimal", v)
		}
		return d, nil
	case schema.TypeDate:
		t, ok := c.Dates.Check(v)
		if !ok {
			return nil, fmt.Errorf("%v is not a date", v)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unknown type %q", col.Type)
}

func toText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case json.Number:
		return t.String(), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case time.Time:
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("cannot convert %T to text", v)
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	}
	d, ok := validator.ParseDecimal(v, "")
	if !ok || !d.IsInteger() {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return d.IntPart(), nil
}

func inEnum(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}
