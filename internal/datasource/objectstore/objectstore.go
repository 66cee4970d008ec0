// Package objectstore extracts CSV and JSON blobs addressed as
// s3://bucket/key, bucket/key, https://host/key or file:///path.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"path"
	"strings"

	"retaildc/internal/datasource"
	"retaildc/internal/etlerr"
	"retaildc/internal/parser"
	pcsv "retaildc/internal/parser/csv"
	pjson "retaildc/internal/parser/json"
	"retaildc/pkg/records"
)

// Scheme values of an Address.
const (
	SchemeS3    = "s3"
	SchemeHTTPS = "https"
	SchemeFile  = "file"
)

// Address is a parsed object location. For file addresses Key is the
// filesystem path and Bucket is empty.
type Address struct {
	Scheme string
	Bucket string
	Key    string
	Raw    string
}

// ParseAddress accepts s3://bucket/key, bare bucket/key (S3),
// http(s)://host/key and file:///path.
func ParseAddress(raw string) (Address, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "file://"):
		p := strings.TrimPrefix(s, "file://")
		if p == "" {
			return Address{}, fmt.Errorf("objectstore: empty path in %q", raw)
		}
		return Address{Scheme: SchemeFile, Key: p, Raw: raw}, nil
	case strings.HasPrefix(s, "https://"), strings.HasPrefix(s, "http://"):
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return Address{}, fmt.Errorf("objectstore: bad url %q", raw)
		}
		return Address{Scheme: SchemeHTTPS, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/"), Raw: raw}, nil
	}
	s = strings.TrimPrefix(s, "s3://")
	bucket, key, ok := strings.Cut(s, "/")
	if !ok || bucket == "" || key == "" {
		return Address{}, fmt.Errorf("objectstore: address %q is not bucket/key", raw)
	}
	return Address{Scheme: SchemeS3, Bucket: bucket, Key: key, Raw: raw}, nil
}

func (a Address) String() string {
	switch a.Scheme {
	case SchemeFile:
		return "file://" + a.Key
	case SchemeHTTPS:
		return a.Raw
	}
	return "s3://" + a.Bucket + "/" + a.Key
}

// Fetcher downloads one object. A missing object must be reported as
// etlerr.ErrNotFound.
type Fetcher interface {
	Fetch(ctx context.Context, a Address) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, a Address) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, a Address) ([]byte, error) { return f(ctx, a) }

// Store is the object-store adapter. Fetchers are keyed by scheme; a scheme
// without a fetcher fails extraction.
type Store struct {
	fetchers map[string]Fetcher
	parsers  map[string]parser.Parser
}

// New returns a Store using the default CSV and JSON parsers.
func New(fetchers map[string]Fetcher) *Store {
	return &Store{
		fetchers: fetchers,
		parsers: map[string]parser.Parser{
			".csv":  pcsv.NewParser(pcsv.Options{}),
			".json": pjson.NewParser(pjson.DefaultOptions),
		},
	}
}

// WithParser registers p for files ending in ext (".csv", ".json", ...).
func (s *Store) WithParser(ext string, p parser.Parser) *Store {
	s.parsers[strings.ToLower(ext)] = p
	return s
}

// Extract implements datasource.Extractor.
func (s *Store) Extract(ctx context.Context, d datasource.Descriptor) (records.Batch, error) {
	if d.Kind != datasource.KindObjectStore {
		return records.Batch{}, fmt.Errorf("objectstore: descriptor kind %q is not %q", d.Kind, datasource.KindObjectStore)
	}
	a, err := ParseAddress(d.Address)
	if err != nil {
		return records.Batch{}, err
	}
	op := "objectstore: " + a.String()

	ext := strings.ToLower(path.Ext(a.Key))
	p, ok := s.parsers[ext]
	if !ok {
		return records.Batch{}, etlerr.Errorf(etlerr.ErrFormat, op, "unsupported extension %q", ext)
	}
	f, ok := s.fetchers[a.Scheme]
	if !ok || f == nil {
		return records.Batch{}, fmt.Errorf("%s: no fetcher for scheme %q", op, a.Scheme)
	}

	body, err := f.Fetch(ctx, a)
	if err != nil {
		return records.Batch{}, err
	}
	b, err := p.Parse(bytes.NewReader(body))
	if err != nil {
		return records.Batch{}, etlerr.Format(op, err)
	}
	log.Printf("objectstore: object=%s bytes=%d rows=%d skipped=%d", a, len(body), b.Len(), b.Failed)
	return b, nil
}
