// Package document extracts tables from a paginated document, such as a PDF
// of card details, and concatenates them into one raw batch.
package document

import (
	"context"
	"fmt"
	"log"
	"strings"

	"retaildc/internal/datasource"
	"retaildc/pkg/records"
)

// Fragment is one table found on one page: rows of cell text, header first.
type Fragment struct {
	Page int
	Rows [][]string
}

// FragmentExtractor returns every table fragment of the document at uri,
// ordered by page and then by position on the page.
type FragmentExtractor interface {
	Fragments(ctx context.Context, uri string) ([]Fragment, error)
}

// Source is the document-table adapter.
type Source struct {
	fx FragmentExtractor
}

// New returns a Source reading through fx.
func New(fx FragmentExtractor) *Source { return &Source{fx: fx} }

// Extract concatenates all fragments in order. Each fragment's first
// non-blank row is its header; blank rows are skipped; rows narrower than the
// header leave trailing columns absent and extra cells are dropped.
func (s *Source) Extract(ctx context.Context, d datasource.Descriptor) (records.Batch, error) {
	if d.Kind != datasource.KindDocument {
		return records.Batch{}, fmt.Errorf("document: descriptor kind %q is not %q", d.Kind, datasource.KindDocument)
	}
	frags, err := s.fx.Fragments(ctx, d.URI)
	if err != nil {
		return records.Batch{}, err
	}

	var (
		recs  []records.Record
		order []string
		blank int
	)
	for _, f := range frags {
		var header []string
		for _, row := range f.Rows {
			if isBlank(row) {
				blank++
				continue
			}
			if header == nil {
				header = headerOf(row)
				order = append(order, header...)
				continue
			}
			rec := make(records.Record, len(header))
			for i, h := range header {
				if i >= len(row) {
					break
				}
				rec[h] = row[i]
			}
			recs = append(recs, rec)
		}
	}
	log.Printf("document: uri=%s fragments=%d rows=%d blank=%d", d.URI, len(frags), len(recs), blank)
	return records.NewBatch(recs, order), nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func headerOf(row []string) []string {
	h := make([]string, len(row))
	for i, c := range row {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		h[i] = c
	}
	return h
}
