package builtin

import (
	"encoding/json"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"retaildc/pkg/records"
)

// DefaultNullTokens are string values treated as null at the boundary.
var DefaultNullTokens = []string{"", "NULL", "null", "N/A", "NaN", "nan"}

// Normalize is the boundary transformer. It maps source headers onto
// canonical column names, drops unknown columns, trims and NFC-normalizes
// strings, turns null tokens into nil and applies per-column value fixups.
//
// Columns absent from a source record stay absent.
type Normalize struct {
	// HeaderMap maps source header -> canonical column. A nil map keeps every
	// key as-is.
	HeaderMap map[string]string

	// NullTokens overrides DefaultNullTokens when non-nil.
	NullTokens []string

	// Fixups maps column -> raw value -> replacement.
	Fixups map[string]map[string]string
}

func (n Normalize) Apply(in []records.Record) []records.Record {
	tokens := n.NullTokens
	if tokens == nil {
		tokens = DefaultNullTokens
	}
	nulls := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		nulls[t] = struct{}{}
	}

	for i, r := range in {
		out := make(records.Record, len(r))
		// Canonical names win over aliases when both are present.
		for k, v := range r {
			col, ok := n.column(k)
			if !ok || col != k {
				continue
			}
			out[col] = n.value(col, v, nulls)
		}
		for k, v := range r {
			col, ok := n.column(k)
			if !ok || col == k {
				continue
			}
			if _, taken := out[col]; taken {
				continue
			}
			out[col] = n.value(col, v, nulls)
		}
		in[i] = out
	}
	return in
}

func (n Normalize) column(k string) (string, bool) {
	if n.HeaderMap == nil {
		return k, true
	}
	col, ok := n.HeaderMap[k]
	return col, ok
}

func (n Normalize) value(col string, v any, nulls map[string]struct{}) any {
	switch t := v.(type) {
	case []byte:
		v = string(t)
	case float64:
		if math.IsNaN(t) {
			return nil
		}
	case json.Number:
		v = t.String()
		if _, isNull := nulls[t.String()]; isNull {
			return nil
		}
		return v
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = norm.NFC.String(strings.TrimSpace(s))
	if _, isNull := nulls[s]; isNull {
		return nil
	}
	if fx, ok := n.Fixups[col]; ok {
		if repl, ok := fx[s]; ok {
			return repl
		}
	}
	return s
}
