// Package transformer defines the record-batch transformation contract used by
// the cleaning stage.
package transformer

import "retaildc/pkg/records"

// Transformer maps a batch of records to a new batch. Implementations may
// filter, rewrite values in place, or both. Order of surviving records must be
// preserved.
type Transformer interface {
	Apply([]records.Record) []records.Record
}

// Chain is an ordered list of transformers.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
