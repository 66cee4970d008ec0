package builtin

import (
	"fmt"

	"retaildc/internal/validator"
	"retaildc/pkg/records"
)

// Rule binds a validator to a field.
type Rule struct {
	Field     string
	Validator validator.Validator
}

// Validate applies field validators in rule order. A record whose field is
// present and fails its validator is dropped and reported; the kept value
// returned by a passing validator replaces the original. Rules whose field is
// absent from a record are skipped for that record.
type Validate struct {
	Rules  []Rule
	Reject func(RejectedRow)
}

func (v Validate) Apply(in []records.Record) []records.Record {
	if len(v.Rules) == 0 {
		return in
	}
	out := in[:0]
	for _, rec := range in {
		if ok := v.validateRecord(rec); ok {
			out = append(out, rec)
		}
	}
	return out
}

func (v Validate) validateRecord(rec records.Record) bool {
	for _, rule := range v.Rules {
		val, exists := rec[rule.Field]
		if !exists {
			continue
		}
		kept, ok := rule.Validator.Check(val)
		if !ok {
			reject(v.Reject, RejectedRow{
				Raw:    rec,
				Field:  rule.Field,
				Rule:   rule.Validator.Name(),
				Reason: fmt.Sprintf("field %q: %v rejected by %s", rule.Field, val, rule.Validator.Name()),
				Stage:  StageValidate,
			})
			return false
		}
		rec[rule.Field] = kept
	}
	return true
}
