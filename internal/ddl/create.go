// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// Backends supply two things: a TypeMapper for canonical column types and an
// identifier quoting function (ANSI double quotes, MySQL backticks or SQL
// Server brackets).
package ddl

import (
	"fmt"
	"strings"
)

// Quoter quotes a single identifier.
type Quoter func(string) string

// QuoteANSI quotes with double quotes, doubling embedded quotes.
func QuoteANSI(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteBacktick quotes for MySQL.
func QuoteBacktick(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteBracket quotes for SQL Server.
func QuoteBracket(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

// QuoteFQN quotes each dotted part of fqn separately: a.b -> "a"."b".
func QuoteFQN(fqn string, q Quoter) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = q(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL]
//
//   - Columns with PrimaryKey == true are collected into a trailing
//     PRIMARY KEY (...) clause.
//
// A nil quoter emits identifiers verbatim.
func BuildCreateTableSQL(t TableDef, q Quoter) (string, error) {
	if q == nil {
		q = func(s string) string { return s }
	}
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(q(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, q(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		QuoteFQN(fqn, q),
		strings.Join(cols, ",\n  "),
	), nil
}
