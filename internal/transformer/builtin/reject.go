// Package builtin contains the reusable transformers the cleaning stage is
// assembled from.
package builtin

import "retaildc/pkg/records"

// RejectedRow describes a record dropped by a transformer.
type RejectedRow struct {
	Raw    records.Record
	Field  string
	Rule   string
	Reason string
	Stage  string
}

// Stage names reported in RejectedRow.Stage.
const (
	StageRequire   = "require"
	StageValidate  = "validate"
	StageCoerce    = "coerce"
	StageNormalize = "normalize"
	StageDedup     = "dedup"
)

func reject(sink func(RejectedRow), row RejectedRow) {
	if sink != nil {
		sink(row)
	}
}
