// Package validator holds the per-field predicates the cleaning stage applies
// before type coercion. A validator never panics and never returns an error:
// it reports rejection through its boolean result and the owning record is
// dropped by the caller.
package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validator checks one field value. It returns the value to keep, which may
// be normalized (separators stripped, whitespace trimmed, parsed number), and
// whether the value is acceptable.
type Validator interface {
	Name() string
	Check(v any) (any, bool)
}

// DefaultCardLengths is used when CardNumber.Lengths is empty.
var DefaultCardLengths = []int{16}

// CardNumber accepts digit strings whose length, after separators are
// stripped, is in Lengths.
type CardNumber struct {
	Lengths []int
}

func (CardNumber) Name() string { return "card_number" }

func (c CardNumber) Check(v any) (any, bool) {
	s, ok := asString(v)
	if !ok {
		return v, false
	}
	digits := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return -1
		}
		return r
	}, s)
	if digits == "" {
		return v, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return v, false
		}
	}
	lengths := c.Lengths
	if len(lengths) == 0 {
		lengths = DefaultCardLengths
	}
	for _, n := range lengths {
		if len(digits) == n {
			return digits, true
		}
	}
	return v, false
}

// StoreName accepts any value that is non-empty after trimming. A nil value
// is a missing name and is left for the required-field rules to judge.
type StoreName struct{}

func (StoreName) Name() string { return "store_name" }

func (StoreName) Check(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	s, ok := asString(v)
	if !ok {
		return v, false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// Price accepts non-negative numbers. Currency symbols and thousands
// separators are stripped from string input. The kept value is a
// decimal.Decimal.
type Price struct{}

func (Price) Name() string { return "price" }

func (Price) Check(v any) (any, bool) {
	d, ok := ParseDecimal(v, "£$€")
	if !ok || d.IsNegative() {
		return v, false
	}
	return d, true
}

// DefaultDateLayouts is the allowlist used when Date.Layouts is empty.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006 January 02",
	"January 2006 02",
	"2006 Jan 02",
	"Jan 2006 02",
}

// Date accepts values parseable by one of Layouts.
type Date struct {
	Layouts []string
}

func (Date) Name() string { return "date" }

func (d Date) Check(v any) (any, bool) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), true
	}
	s, ok := asString(v)
	if !ok {
		return v, false
	}
	t, ok := d.Parse(s)
	if !ok {
		return v, false
	}
	return t, true
}

// Parse tries each layout in order and returns the first match in UTC.
func (d Date) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	layouts := d.Layouts
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Set resolves validator names bound in entity schemas.
type Set struct {
	Card CardNumber
	Date Date
}

// Lookup returns the validator registered under name.
func (s Set) Lookup(name string) (Validator, error) {
	switch name {
	case "card_number":
		return s.Card, nil
	case "store_name":
		return StoreName{}, nil
	case "price":
		return Price{}, nil
	case "date":
		return s.Date, nil
	}
	return nil, fmt.Errorf("validator: unknown validator %q", name)
}

// ParseDecimal converts numeric-looking input to a decimal. strip lists
// extra runes removed from string input besides thousands commas.
func ParseDecimal(v any, strip string) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	case float32:
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case int32:
		return decimal.NewFromInt32(t), true
	case []byte:
		return ParseDecimal(string(t), strip)
	case string:
		s := strings.Map(func(r rune) rune {
			if r == ',' || strings.ContainsRune(strip, r) {
				return -1
			}
			return r
		}, strings.TrimSpace(t))
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64, int:
		return fmt.Sprint(t), true
	}
	return "", false
}
