// Package csv parses header-first CSV payloads into raw batches.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"

	"retaildc/internal/config"
	"retaildc/pkg/records"
)

// Options configures the CSV parser. Zero values are usable.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// HeaderMap renames source headers before they become record keys.
	HeaderMap map[string]string
}

// FromConfigOptions reads comma, trim_space and header_map.
func FromConfigOptions(o config.Options) Options {
	opt := Options{
		Comma:     o.Rune("comma", ','),
		TrimSpace: o.Bool("trim_space", false),
	}
	if m := o.StringMap("header_map"); len(m) > 0 {
		opt.HeaderMap = m
	}
	return opt
}

// Parser parses CSV input according to Options.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// skipLogLimit bounds per-row skip logging.
const skipLogLimit = 20

// Parse reads the header row and every body row. Rows whose width differs
// from the header are skipped and counted in Batch.Failed. A missing or
// unreadable header is an error.
func (p *Parser) Parse(r io.Reader) (records.Batch, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err == io.EOF {
		return records.Batch{}, fmt.Errorf("csv: empty input")
	}
	if err != nil {
		return records.Batch{}, fmt.Errorf("csv: read header: %w", err)
	}
	headers := p.headers(h)

	var out []records.Record
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < skipLogLimit {
				log.Printf("csv: skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != len(headers) {
			if skipped < skipLogLimit {
				log.Printf("csv: skipping row %d: expected %d fields, got %d", line, len(headers), len(row))
			}
			skipped++
			continue
		}
		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[headers[i]] = val
		}
		out = append(out, rec)
	}

	b := records.NewBatch(out, headers)
	b.Failed = skipped
	return b, nil
}

// headers strips the BOM, applies HeaderMap and names blank headers after
// their position (pandas writes the index column with an empty header).
func (p *Parser) headers(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := p.opt.HeaderMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		res[i] = c
	}
	return res
}
