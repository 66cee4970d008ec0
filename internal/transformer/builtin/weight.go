package builtin

import (
	"fmt"

	"github.com/shopspring/decimal"

	"retaildc/internal/units"
	"retaildc/pkg/records"
)

// Weight normalizes free-text measurement fields to kilograms. When a field
// is present but nil or unparseable the record is dropped; a corrupted
// weight is never zeroed. Records without the field are left alone.
type Weight struct {
	Fields []string
	Reject func(RejectedRow)
}

func (w Weight) Apply(in []records.Record) []records.Record {
	if len(w.Fields) == 0 {
		return in
	}
	out := in[:0]
next:
	for _, r := range in {
		for _, f := range w.Fields {
			v, ok := r[f]
			if !ok {
				continue
			}
			kg, err := toKilograms(v)
			if err != nil {
				reject(w.Reject, RejectedRow{
					Raw:    r,
					Field:  f,
					Rule:   "weight",
					Reason: err.Error(),
					Stage:  StageNormalize,
				})
				continue next
			}
			r[f] = kg
		}
		out = append(out, r)
	}
	return out
}

func toKilograms(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("weight missing")
	case decimal.Decimal:
		return t, nil
	case string:
		return units.NormalizeWeight(t)
	default:
		return units.NormalizeWeight(fmt.Sprint(t))
	}
}
