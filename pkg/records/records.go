// Package records defines the untyped row shape shared by extraction adapters,
// parsers and transformers.
package records

// Record is a single untyped row keyed by column name.
type Record map[string]any

// Batch is the output of one extraction call.
//
// Columns lists every column seen across Records in first-seen order. Records
// may omit columns; consumers must treat an absent key as "column not
// present" rather than null.
type Batch struct {
	Columns []string
	Records []Record

	// Failed counts source items the adapter could not fetch and skipped.
	Failed int
}

// Len returns the number of records in the batch.
func (b Batch) Len() int { return len(b.Records) }

// NewBatch builds a Batch from recs, deriving Columns from the union of
// record keys. Keys within a record are visited in sorted order so the
// result is deterministic for map-backed records.
func NewBatch(recs []Record, hint []string) Batch {
	seen := make(map[string]struct{}, len(hint))
	cols := make([]string, 0, len(hint))
	for _, c := range hint {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cols = append(cols, c)
	}
	for _, r := range recs {
		for _, k := range sortedKeys(r) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return Batch{Columns: cols, Records: recs}
}
