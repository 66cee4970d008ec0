package builtin

import (
	"testing"

	"github.com/shopspring/decimal"

	"retaildc/internal/validator"
	"retaildc/pkg/records"
)

/*
TestRequireApply drops records with absent, nil or empty required fields and
reports the first missing field.
*/
func TestRequireApply(t *testing.T) {
	var rejected []RejectedRow
	r := Require{Fields: []string{"a", "b"}, Reject: func(rr RejectedRow) { rejected = append(rejected, rr) }}
	in := []records.Record{
		{"a": 1, "b": 0},
		{"a": 1},
		{"a": nil, "b": 2},
		{"a": "", "b": 2},
		{"a": false, "b": "x"},
	}
	out := r.Apply(in)
	if len(out) != 2 {
		t.Fatalf("len(out)=%d; want 2", len(out))
	}
	if len(rejected) != 3 {
		t.Fatalf("rejected=%d; want 3", len(rejected))
	}
	if rejected[0].Field != "b" || rejected[1].Field != "a" || rejected[0].Stage != StageRequire {
		t.Fatalf("unexpected rejects: %+v", rejected)
	}
}

/*
TestValidateApply verifies that failing validators drop the record, passing
validators replace the value with its normalized form, and absent fields are
skipped.
*/
func TestValidateApply(t *testing.T) {
	var rules []string
	v := Validate{
		Rules: []Rule{
			{Field: "card_number", Validator: validator.CardNumber{}},
			{Field: "price", Validator: validator.Price{}},
		},
		Reject: func(r RejectedRow) { rules = append(rules, r.Rule) },
	}
	in := []records.Record{
		{"card_number": "4971 8586 3766 4481", "price": "£10"},
		{"card_number": "497185863766448", "price": "£10"},
		{"card_number": "4971858637664481", "price": "-5"},
		{"other": "no bound fields"},
	}
	out := v.Apply(in)
	if len(out) != 2 {
		t.Fatalf("len(out)=%d; want 2", len(out))
	}
	if out[0]["card_number"] != "4971858637664481" {
		t.Fatalf("card not normalized: %#v", out[0]["card_number"])
	}
	if d, ok := out[0]["price"].(decimal.Decimal); !ok || !d.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("price=%#v", out[0]["price"])
	}
	if len(rules) != 2 || rules[0] != "card_number" || rules[1] != "price" {
		t.Fatalf("rules=%v", rules)
	}
}

// A null store name is kept; blank names are still rejected.
func TestValidateApply_NullStoreName(t *testing.T) {
	v := Validate{Rules: []Rule{{Field: "store_name", Validator: validator.StoreName{}}}}
	out := v.Apply([]records.Record{
		{"store_code": "WEB-1", "store_name": nil},
		{"store_code": "BR-1", "store_name": "   "},
		{"store_code": "BR-2", "store_name": " Bristol "},
	})
	if len(out) != 2 || out[0]["store_code"] != "WEB-1" || out[0]["store_name"] != nil {
		t.Fatalf("out=%#v", out)
	}
	if out[1]["store_name"] != "Bristol" {
		t.Fatalf("store_name=%#v", out[1]["store_name"])
	}
}

/*
TestWeightApply verifies kilogram normalization and that nil or unparseable
weights drop the record while absent weights are left alone.
*/
func TestWeightApply(t *testing.T) {
	var reasons []string
	w := Weight{Fields: []string{"weight"}, Reject: func(r RejectedRow) { reasons = append(reasons, r.Reason) }}
	in := []records.Record{
		{"id": 1, "weight": "3 x 100g"},
		{"id": 2, "weight": nil},
		{"id": 3, "weight": "heavy"},
		{"id": 4},
	}
	out := w.Apply(in)
	if len(out) != 2 || out[0]["id"] != 1 || out[1]["id"] != 4 {
		t.Fatalf("out=%#v", out)
	}
	if d := out[0]["weight"].(decimal.Decimal); !d.Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("weight=%s; want 0.3", d)
	}
	if _, ok := out[1]["weight"]; ok {
		t.Fatalf("absent weight was materialized")
	}
	if len(reasons) != 2 {
		t.Fatalf("reasons=%v", reasons)
	}
}
