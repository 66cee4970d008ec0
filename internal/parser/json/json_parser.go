// Package json turns JSON payloads into raw batches.
//
// Three layouts are accepted:
//
//   - a top-level array of objects: [{"a":1}, {"a":2}]
//   - newline-delimited objects:    {"a":1}\n{"a":2}
//   - column-oriented tables as written by pandas' DataFrame.to_json:
//     {"a": {"0": 1, "1": 2}, "b": {"0": "x", "1": "y"}}
//
// Numbers are kept as json.Number so callers decide how to map them.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"retaildc/internal/config"
	"retaildc/pkg/records"
)

// Options configures the JSON parser.
type Options struct {
	// AllowArrays accepts a top-level array of objects. Defaults to true via
	// FromConfigOptions.
	AllowArrays bool

	// Columnar enables detection of the pandas column-oriented layout.
	Columnar bool
}

// DefaultOptions accepts every supported layout.
var DefaultOptions = Options{AllowArrays: true, Columnar: true}

// FromConfigOptions reads allow_arrays and columnar, both defaulting to true.
func FromConfigOptions(o config.Options) Options {
	return Options{
		AllowArrays: o.Bool("allow_arrays", true),
		Columnar:    o.Bool("columnar", true),
	}
}

// Parser implements parser.Parser for JSON.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse decodes r. Non-object array elements and non-object NDJSON values
// are skipped and counted in Batch.Failed.
func (p *Parser) Parse(r io.Reader) (records.Batch, error) {
	recs, skipped, err := DecodeAll(r, p.opt)
	if err != nil {
		return records.Batch{}, err
	}
	b := records.NewBatch(recs, nil)
	b.Failed = skipped
	return b, nil
}

// Decoder reads a stream of JSON objects one at a time.
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder constructs a Decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return &Decoder{dec: d}
}

// Next returns the next top-level object. Non-object values yield a nil
// record with ok=false so the caller can count them. io.EOF ends the stream.
func (d *Decoder) Next() (rec records.Record, ok bool, err error) {
	var raw any
	if err := d.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, false, io.EOF
		}
		return nil, false, fmt.Errorf("json: decode: %w", err)
	}
	m, isObj := raw.(map[string]any)
	if !isObj {
		return nil, false, nil
	}
	return records.Record(m), true, nil
}

// DecodeAll reads every record from r and returns the records plus the
// number of skipped non-object values.
func DecodeAll(r io.Reader, opt Options) ([]records.Record, int, error) {
	d := NewDecoder(r)

	first, err := d.root()
	if err == io.EOF {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var out []records.Record
	skipped := 0

	switch v := first.(type) {
	case []any:
		if !opt.AllowArrays {
			return nil, 0, fmt.Errorf("json: top-level array encountered but allow_arrays=false")
		}
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				skipped++
				continue
			}
			out = append(out, records.Record(obj))
		}
		return out, skipped, nil

	case map[string]any:
		if opt.Columnar {
			if rows, ok := columnar(v); ok {
				if _, _, err := d.Next(); err != io.EOF {
					return nil, 0, fmt.Errorf("json: trailing data after column-oriented table")
				}
				return rows, 0, nil
			}
		}
		out = append(out, records.Record(v))

	default:
		skipped++
	}

	// NDJSON: keep reading objects.
	for {
		rec, ok, err := d.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	if len(out) == 0 && skipped > 0 {
		return nil, 0, fmt.Errorf("json: no objects in payload")
	}
	return out, skipped, nil
}

func (d *Decoder) root() (any, error) {
	var root any
	if err := d.dec.Decode(&root); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("json: decode root: %w", err)
	}
	return root, nil
}

// columnar converts {"col": {"0": v, ...}, ...} into rows ordered by numeric
// index. It reports false unless every value is an object keyed by
// non-negative integers.
func columnar(m map[string]any) ([]records.Record, bool) {
	if len(m) == 0 {
		return nil, false
	}
	rows := map[int]records.Record{}
	for col, v := range m {
		cells, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		for k, cell := range cells {
			idx, err := strconv.Atoi(k)
			if err != nil || idx < 0 {
				return nil, false
			}
			r, ok := rows[idx]
			if !ok {
				r = records.Record{}
				rows[idx] = r
			}
			r[col] = cell
		}
	}
	idxs := make([]int, 0, len(rows))
	for i := range rows {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	out := make([]records.Record, len(idxs))
	for i, idx := range idxs {
		out[i] = rows[idx]
	}
	return out, true
}
