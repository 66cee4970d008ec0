package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"

	"retaildc/pkg/records"
)

// DeDup drops every record whose key was already seen earlier in the batch,
// so the first occurrence of each key wins and input order is preserved.
//
// Keys: a record's key is the concatenation of its key fields rendered as
// strings, hashed with xxh3. Absent and nil values both render as "\x00", so
// a null participates in the key tuple like any other value. Run DeDup after
// Coerce so equal values have equal renderings.
type DeDup struct {
	// Keys are the field names that form the business key,
	// e.g. ["product_id","name"].
	Keys []string

	// Reject receives every dropped duplicate.
	Reject func(RejectedRow)
}

// Apply returns the first record for each key, in input order.
func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}

	seen := make(map[xxh3.Uint128]struct{}, len(in))
	out := make([]records.Record, 0, len(in))
	var b strings.Builder
	for _, r := range in {
		key := d.keyOf(&b, r)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			out = append(out, r)
			continue
		}
		if d.Reject != nil {
			d.Reject(RejectedRow{
				Raw:    r,
				Field:  strings.Join(d.Keys, ","),
				Reason: fmt.Sprintf("duplicate key %v", d.keyValues(r)),
				Stage:  StageDedup,
			})
		}
	}
	return out
}

func (d DeDup) keyOf(b *strings.Builder, r records.Record) xxh3.Uint128 {
	b.Reset()
	for i, k := range d.Keys {
		if i > 0 {
			b.WriteByte('\x1f') // unlikely separator
		}
		switch t := r[k].(type) {
		case nil:
			b.WriteByte('\x00')
		case string:
			b.WriteString(t)
		case decimal.Decimal:
			b.WriteString(t.String())
		case time.Time:
			b.WriteString(t.UTC().Format(time.RFC3339Nano))
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return xxh3.HashString128(b.String())
}

func (d DeDup) keyValues(r records.Record) []any {
	out := make([]any, len(d.Keys))
	for i, k := range d.Keys {
		out[i] = r[k]
	}
	return out
}
