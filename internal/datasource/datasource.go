// Package datasource defines the extraction contract shared by the four
// source adapters. Adapters only read; none of them touches the warehouse.
package datasource

import (
	"context"
	"fmt"

	"retaildc/pkg/records"
)

// Kind selects an adapter.
type Kind string

const (
	KindRelational  Kind = "relational"
	KindAPI         Kind = "api"
	KindDocument    Kind = "document"
	KindObjectStore Kind = "objectstore"
)

// Descriptor addresses one source object. Only the fields of its Kind are
// read.
type Descriptor struct {
	Kind Kind `json:"kind"`

	// Relational. Table is an exact name; when empty the first listed table
	// whose name contains TableMatch (case-insensitive) is used.
	Table      string `json:"table,omitempty"`
	TableMatch string `json:"table_match,omitempty"`

	// API. ItemURL may contain an {index} placeholder; otherwise the index
	// is appended as a final path segment. CountField names the integer field
	// in the count response.
	CountURL   string `json:"count_url,omitempty"`
	ItemURL    string `json:"item_url,omitempty"`
	CountField string `json:"count_field,omitempty"`

	// Document.
	URI string `json:"uri,omitempty"`

	// Object store: s3://bucket/key, bucket/key or file:///path.
	Address string `json:"address,omitempty"`
}

// String renders the address part of d for logs.
func (d Descriptor) String() string {
	switch d.Kind {
	case KindRelational:
		if d.Table != "" {
			return "relational:" + d.Table
		}
		return "relational:~" + d.TableMatch
	case KindAPI:
		return "api:" + d.ItemURL
	case KindDocument:
		return "document:" + d.URI
	case KindObjectStore:
		return "objectstore:" + d.Address
	}
	return fmt.Sprintf("%s:?", d.Kind)
}

// Validate checks that the fields required by d.Kind are set.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindRelational:
		if d.Table == "" && d.TableMatch == "" {
			return fmt.Errorf("datasource: relational source needs table or table_match")
		}
	case KindAPI:
		if d.CountURL == "" || d.ItemURL == "" {
			return fmt.Errorf("datasource: api source needs count_url and item_url")
		}
	case KindDocument:
		if d.URI == "" {
			return fmt.Errorf("datasource: document source needs uri")
		}
	case KindObjectStore:
		if d.Address == "" {
			return fmt.Errorf("datasource: objectstore source needs address")
		}
	default:
		return fmt.Errorf("datasource: unknown kind %q", d.Kind)
	}
	return nil
}

// Extractor produces a raw batch for one descriptor.
type Extractor interface {
	Extract(ctx context.Context, d Descriptor) (records.Batch, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, d Descriptor) (records.Batch, error)

func (f ExtractorFunc) Extract(ctx context.Context, d Descriptor) (records.Batch, error) {
	return f(ctx, d)
}

// Set maps each kind to its adapter.
type Set map[Kind]Extractor

// Extract dispatches d to the adapter registered for d.Kind.
func (s Set) Extract(ctx context.Context, d Descriptor) (records.Batch, error) {
	x, ok := s[d.Kind]
	if !ok || x == nil {
		return records.Batch{}, fmt.Errorf("datasource: no adapter for kind %q", d.Kind)
	}
	return x.Extract(ctx, d)
}
