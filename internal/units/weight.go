// Package units converts free-text measurements into canonical units.
//
// Weights are normalized to kilograms. Volumes (ml, l) are converted with a
// density of 1 kg/l, i.e. they are treated as water. This is an approximation
// and is kept on purpose: true density varies by product and is not known to
// the pipeline.
package units

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"retaildc/internal/etlerr"
)

// ParseError reports an unparseable weight string. It matches
// etlerr.ErrParse under errors.Is.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("units: cannot parse weight %q: %s", e.Input, e.Reason)
}

// Is lets errors.Is(err, etlerr.ErrParse) succeed.
func (e *ParseError) Is(target error) bool { return target == etlerr.ErrParse }

var (
	kgPerGram = decimal.New(1, -3)
	kgPerOz   = decimal.RequireFromString("0.0283495")

	// "12 x 100g", "3X 0.5l", "2 × 85g"
	multiPackRe = regexp.MustCompile(`^(\d+)\s*[x×]\s*(.+)$`)

	// "200g", "1.5 l", "-3kg", "5.kg", "1,000g"
	measureRe = regexp.MustCompile(`^([-+]?(?:\d[\d,]*\.?\d*|\.\d+))\s*([a-z]*)$`)
)

// factors maps a lowercase unit to its kilogram multiplier.
var factors = map[string]decimal.Decimal{
	"g":  kgPerGram,
	"kg": decimal.NewFromInt(1),
	"ml": kgPerGram,
	"l":  decimal.NewFromInt(1),
	"oz": kgPerOz,
}

// NormalizeWeight parses raw and returns the weight in kilograms.
//
// Accepted forms are "<magnitude><unit>" and "<N> x <magnitude><unit>" with
// optional whitespace, units case-insensitive. Stray trailing dots such as
// "77g ." are ignored.
func NormalizeWeight(raw string) (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.TrimRight(s, ". "))
	if s == "" {
		return decimal.Zero, &ParseError{Input: raw, Reason: "empty"}
	}

	packs := decimal.NewFromInt(1)
	if m := multiPackRe.FindStringSubmatch(s); m != nil {
		n, err := decimal.NewFromString(m[1])
		if err != nil || n.IsZero() {
			return decimal.Zero, &ParseError{Input: raw, Reason: "invalid pack count"}
		}
		packs = n
		s = strings.TrimSpace(m[2])
	}

	mag, unit, err := splitMeasure(s)
	if err != nil {
		return decimal.Zero, &ParseError{Input: raw, Reason: err.Error()}
	}
	return mag.Mul(packs).Mul(factors[unit]), nil
}

func splitMeasure(s string) (decimal.Decimal, string, error) {
	m := measureRe.FindStringSubmatch(s)
	if m == nil {
		if _, ok := factors[s]; ok {
			return decimal.Zero, "", errors.New("missing magnitude")
		}
		return decimal.Zero, "", errors.New("no numeric+unit pattern")
	}
	if m[2] == "" {
		return decimal.Zero, "", errors.New("missing unit")
	}
	if _, ok := factors[m[2]]; !ok {
		return decimal.Zero, "", fmt.Errorf("unknown unit %q", m[2])
	}
	num := strings.TrimSuffix(strings.ReplaceAll(m[1], ",", ""), ".")
	mag, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("bad magnitude %q", m[1])
	}
	if mag.IsNegative() {
		return decimal.Zero, "", errors.New("negative magnitude")
	}
	return mag, m[2], nil
}
