package builtin

import (
	"fmt"

	"retaildc/pkg/records"
)

// Require removes any record missing a value for one of Fields. Absent, nil
// and empty-string values all count as missing.
type Require struct {
	Fields []string
	Reject func(RejectedRow)
}

// Apply returns a filtered slice containing only records that
// have all required fields present and non-empty.
func (r Require) Apply(in []records.Record) []records.Record {
	out := in[:0]
	for _, rec := range in {
		missing := ""
		for _, f := range r.Fields {
			v, exists := rec[f]
			if !exists || v == nil || v == "" {
				missing = f
				break
			}
		}
		if missing != "" {
			reject(r.Reject, RejectedRow{
				Raw:    rec,
				Field:  missing,
				Reason: fmt.Sprintf("required field %q missing", missing),
				Stage:  StageRequire,
			})
			continue
		}
		out = append(out, rec)
	}
	return out
}
