package httpds

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"retaildc/internal/datasource"
	"retaildc/internal/etlerr"
	"retaildc/pkg/records"
)

// DefaultCountField is the count response field read when the descriptor
// does not name one.
const DefaultCountField = "number_stores"

// DefaultMaxItems bounds the count an API may report when no cap is set.
const DefaultMaxItems = 100_000

// getter is the part of *Client the API adapter needs.
type getter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// API extracts a paginated resource: one count request, then one request per
// item index. Item failures are skipped and tallied in Batch.Failed; a count
// failure fails the whole extraction.
type API struct {
	client   getter
	workers  int
	maxItems int
}

// NewAPI returns an API adapter issuing at most workers concurrent item
// requests (minimum 1) and accepting counts up to DefaultMaxItems.
func NewAPI(c *Client, workers int) *API {
	return newAPI(c, workers)
}

func newAPI(g getter, workers int) *API {
	if workers < 1 {
		workers = 1
	}
	return &API{client: g, workers: workers, maxItems: DefaultMaxItems}
}

// WithMaxItems sets the largest count the adapter accepts. A count above it
// fails the extraction before any item is requested. n < 1 keeps the default.
func (a *API) WithMaxItems(n int) *API {
	if n > 0 {
		a.maxItems = n
	}
	return a
}

// Extract implements datasource.Extractor.
func (a *API) Extract(ctx context.Context, d datasource.Descriptor) (records.Batch, error) {
	if d.Kind != datasource.KindAPI {
		return records.Batch{}, fmt.Errorf("httpds: descriptor kind %q is not %q", d.Kind, datasource.KindAPI)
	}
	n, err := a.count(ctx, d)
	if err != nil {
		return records.Batch{}, err
	}

	results := make([]records.Record, n)
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			url := itemURL(d.ItemURL, i)
			var rec map[string]any
			if err := a.client.GetJSON(gctx, url, &rec); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Printf("api: item=%d skipped: %v", i, err)
				return nil
			}
			if rec == nil {
				failed.Add(1)
				log.Printf("api: item=%d skipped: empty body", i)
				return nil
			}
			results[i] = records.Record(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records.Batch{}, fmt.Errorf("httpds: extract %s: %w", d.ItemURL, err)
	}

	// Index order, independent of completion order.
	recs := make([]records.Record, 0, n)
	for _, r := range results {
		if r != nil {
			recs = append(recs, r)
		}
	}
	b := records.NewBatch(recs, nil)
	b.Failed = int(failed.Load())
	if b.Failed > 0 {
		log.Printf("api: fetched=%d failed=%d total=%d", len(recs), b.Failed, n)
	}
	return b, nil
}

func (a *API) count(ctx context.Context, d datasource.Descriptor) (int, error) {
	field := d.CountField
	if field == "" {
		field = DefaultCountField
	}
	var body map[string]any
	if err := a.client.GetJSON(ctx, d.CountURL, &body); err != nil {
		return 0, fmt.Errorf("httpds: count: %w", err)
	}
	raw, ok := body[field]
	if !ok {
		return 0, etlerr.Errorf(etlerr.ErrFormat, "httpds: count", "field %q missing from response", field)
	}
	var n int64
	var err error
	switch v := raw.(type) {
	case json.Number:
		n, err = v.Int64()
	case float64:
		if v > float64(a.maxItems) {
			n = int64(a.maxItems) + 1
		} else {
			n = int64(v)
		}
	case string:
		n, err = strconv.ParseInt(v, 10, 64)
	default:
		err = fmt.Errorf("unexpected type %T", raw)
	}
	if err != nil || n < 0 {
		return 0, etlerr.Errorf(etlerr.ErrFormat, "httpds: count", "field %q: invalid count %v", field, raw)
	}
	if n > int64(a.maxItems) {
		return 0, etlerr.Errorf(etlerr.ErrFormat, "httpds: count", "field %q: count %v exceeds limit %d", field, raw, a.maxItems)
	}
	return int(n), nil
}

func itemURL(tmpl string, i int) string {
	idx := strconv.Itoa(i)
	if strings.Contains(tmpl, "{index}") {
		return strings.ReplaceAll(tmpl, "{index}", idx)
	}
	return strings.TrimRight(tmpl, "/") + "/" + idx
}
