// Package schema describes the canonical shape of every entity the pipeline
// loads: its target table, typed columns and dedup key.
package schema

import (
	"fmt"
	"strings"
)

// Type is the logical type of a canonical column.
type Type string

const (
	TypeString   Type = "string"
	TypeInt      Type = "int"
	TypeDecimal  Type = "decimal"
	TypeDate     Type = "date"
	TypeCategory Type = "category"
)

// Column describes one canonical column.
type Column struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Required bool     `json:"required,omitempty"`
	Enum     []string `json:"enum,omitempty"`

	// Aliases are source header names that map onto this column.
	Aliases []string `json:"aliases,omitempty"`

	// Validator names a record validator bound to this column
	// ("card_number", "store_name", "price", "date").
	Validator string `json:"validator,omitempty"`

	// Measurement marks a free-text weight column normalized to kilograms.
	Measurement bool `json:"measurement,omitempty"`

	// Fixups rewrite known-bad source values before validation,
	// e.g. "eeEurope" -> "Europe".
	Fixups map[string]string `json:"fixups,omitempty"`
}

// Entity is the contract a cleaned batch must satisfy.
type Entity struct {
	Name     string   `json:"name"`
	Table    string   `json:"table"`
	Columns  []Column `json:"columns"`
	DedupKey []string `json:"dedup_key"`
}

// ColumnNames returns the column names in declaration order.
func (e Entity) ColumnNames() []string {
	out := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the column with the given name.
func (e Entity) Column(name string) (Column, bool) {
	for _, c := range e.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Required returns the names of required columns.
func (e Entity) Required() []string {
	var out []string
	for _, c := range e.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// HeaderMap maps every accepted source header (canonical names and aliases)
// to its canonical column name.
func (e Entity) HeaderMap() map[string]string {
	m := make(map[string]string, len(e.Columns))
	for _, c := range e.Columns {
		m[c.Name] = c.Name
		for _, a := range c.Aliases {
			m[a] = c.Name
		}
	}
	return m
}

// Validate checks that the entity definition itself is coherent.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("schema: entity name must not be empty")
	}
	if strings.TrimSpace(e.Table) == "" {
		return fmt.Errorf("schema: entity %s: table must not be empty", e.Name)
	}
	seen := make(map[string]struct{}, len(e.Columns))
	for _, c := range e.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("schema: entity %s: duplicate column %q", e.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		switch c.Type {
		case TypeString, TypeInt, TypeDecimal, TypeDate, TypeCategory:
		default:
			return fmt.Errorf("schema: entity %s: column %q has unknown type %q", e.Name, c.Name, c.Type)
		}
		if c.Measurement && c.Type != TypeDecimal {
			return fmt.Errorf("schema: entity %s: measurement column %q must be decimal", e.Name, c.Name)
		}
	}
	for _, k := range e.DedupKey {
		if _, ok := seen[k]; !ok {
			return fmt.Errorf("schema: entity %s: dedup key %q is not a column", e.Name, k)
		}
	}
	return nil
}
