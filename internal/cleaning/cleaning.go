// Package cleaning turns an extracted raw batch into a typed canonical batch
// for one entity.
//
// The steps run in a fixed order:
//
//  1. drop rows with a null required column
//  2. apply the entity's field validators
//  3. coerce types (optional failures null-fill, required failures drop)
//  4. normalize measurement columns to kilograms
//  5. deduplicate on the entity's dedup key, keeping the first occurrence
//  6. project onto the schema with contiguous row indexing
//
// A boundary pass runs before step 1: header aliases are resolved, unknown
// columns dropped, strings trimmed and null tokens turned into nil.
package cleaning

import (
	"log"

	"retaildc/internal/schema"
	"retaildc/internal/transformer"
	"retaildc/internal/transformer/builtin"
	"retaildc/internal/validator"
	"retaildc/pkg/records"
)

// exampleLimit bounds Report.Examples.
const exampleLimit = 5

// Options configures a Cleaner.
type Options struct {
	// Validators resolves validator names bound to schema columns and carries
	// the date layout allowlist used for date coercion.
	Validators validator.Set

	// NullTokens overrides builtin.DefaultNullTokens when non-nil.
	NullTokens []string
}

// Cleaner runs the cleaning steps. The zero value uses default validators.
type Cleaner struct {
	opts Options
}

// New returns a Cleaner.
func New(opts Options) *Cleaner { return &Cleaner{opts: opts} }

// Clean cleans raw against e. It never fails: rows that cannot be repaired
// are dropped and counted in the Report. raw is not modified.
func (c *Cleaner) Clean(e schema.Entity, raw records.Batch) (schema.Batch, Report) {
	rep := Report{
		Entity:     e.Name,
		RowsIn:     len(raw.Records),
		Rejections: map[string]int{},
	}
	onReject := func(rr builtin.RejectedRow) {
		switch rr.Stage {
		case builtin.StageRequire:
			rep.DroppedRequired++
		case builtin.StageValidate:
			rep.DroppedValidation++
			rep.Rejections[rr.Rule]++
		case builtin.StageCoerce:
			rep.DroppedCoercion++
		case builtin.StageNormalize:
			rep.DroppedNormalization++
		case builtin.StageDedup:
			rep.DroppedDuplicate++
		}
		if len(rep.Examples) < exampleLimit {
			rep.Examples = append(rep.Examples, rr.Stage+": "+rr.Reason)
		}
	}

	chain := c.chain(e, onReject, &rep)
	recs := append([]records.Record(nil), raw.Records...)
	recs = chain.Apply(recs)

	out := schema.Batch{Entity: e, Rows: make([]schema.Row, 0, len(recs))}
	cols := e.ColumnNames()
	for _, r := range recs {
		row := make(schema.Row, len(cols))
		for i, col := range cols {
			row[i] = r[col]
		}
		out.Rows = append(out.Rows, row)
	}
	rep.RowsOut = len(out.Rows)
	return out, rep
}

func (c *Cleaner) chain(e schema.Entity, onReject func(builtin.RejectedRow), rep *Report) transformer.Chain {
	fixups := map[string]map[string]string{}
	var rules []builtin.Rule
	var measures []string
	for _, col := range e.Columns {
		if len(col.Fixups) > 0 {
			fixups[col.Name] = col.Fixups
		}
		if col.Measurement {
			measures = append(measures, col.Name)
		}
		if col.Validator == "" {
			continue
		}
		v, err := c.opts.Validators.Lookup(col.Validator)
		if err != nil {
			log.Printf("clean: entity=%s column=%s: %v; skipping", e.Name, col.Name, err)
			continue
		}
		rules = append(rules, builtin.Rule{Field: col.Name, Validator: v})
	}

	return transformer.Chain{
		builtin.Normalize{HeaderMap: e.HeaderMap(), NullTokens: c.opts.NullTokens, Fixups: fixups},
		builtin.Require{Fields: e.Required(), Reject: onReject},
		builtin.Validate{Rules: rules, Reject: onReject},
		builtin.Coerce{
			Columns:         e.Columns,
			Dates:           c.opts.Validators.Date,
			Reject:          onReject,
			OnNullFill:      func(string, any) { rep.NullFilled++ },
			OnMalformedDate: func(string, any) { rep.MalformedDates++ },
		},
		builtin.Weight{Fields: measures, Reject: onReject},
		builtin.DeDup{Keys: e.DedupKey, Reject: onReject},
	}
}
