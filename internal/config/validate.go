package config

// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded Pipeline and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.

import (
	"fmt"
	"slices"
	"strings"

	"retaildc/internal/datasource"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "entities[1].source.address"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline. Callers decide whether warnings are fatal.
//
// Example:
//
//	p, err := config.Load("pipeline.json")
//	if err != nil { ... }
//	for _, iss := range config.ValidatePipeline(p) {
//	    fmt.Println(iss)
//	}
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateEntities(p.Entities)...)
	issues = append(issues, validateSources(p.Sources, usedKinds(p.Entities))...)
	issues = append(issues, validateCleaning(p.Cleaning)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func usedKinds(es []Entity) map[datasource.Kind]bool {
	used := map[datasource.Kind]bool{}
	for _, e := range es {
		used[e.Source.Kind] = true
	}
	return used
}

// validateEntities checks entity names, duplicates and source descriptors.
func validateEntities(es []Entity) []Issue {
	var issues []Issue

	if len(es) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "entities",
			Message:  "no entities configured; nothing to run",
		})
		return issues
	}

	seen := map[string]int{}
	for i, e := range es {
		path := fmt.Sprintf("entities[%d]", i)
		if _, err := schema.Lookup(e.Name); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".name",
				Message:  fmt.Sprintf("unknown entity %q; known: %s", e.Name, strings.Join(schema.Names(), ", ")),
			})
		}
		if j, dup := seen[e.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path + ".name",
				Message:  fmt.Sprintf("entity %q also configured at entities[%d]; the later run replaces the earlier load", e.Name, j),
			})
		}
		seen[e.Name] = i
		if err := e.Source.Validate(); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path + ".source",
				Message:  err.Error(),
			})
		}
	}
	return issues
}

// validateSources checks the settings of every adapter kind in use.
func validateSources(s Sources, used map[datasource.Kind]bool) []Issue {
	var issues []Issue

	if used[datasource.KindRelational] {
		r := s.Relational
		known := map[string]struct{}{"postgres": {}, "mysql": {}, "sqlite": {}}
		if _, ok := known[r.Dialect]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sources.relational.dialect",
				Message:  fmt.Sprintf("unsupported dialect %q; use postgres, mysql or sqlite", r.Dialect),
			})
		}
		if r.DSN == "" {
			issues = append(issues, validateCredentialSource("sources.relational.credentials", r.Credentials)...)
		}
	}

	if used[datasource.KindAPI] {
		a := s.API
		if a.Key == "" && a.KeyEnv == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sources.api.key",
				Message:  "no api key or key_env configured; requests are sent unauthenticated",
			})
		}
		if a.Workers < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sources.api.workers",
				Message:  "workers must not be negative",
			})
		}
		if a.TimeoutSeconds < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sources.api.timeout_seconds",
				Message:  "timeout_seconds must not be negative",
			})
		}
		if a.MaxItems < 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "sources.api.max_items",
				Message:  "max_items must not be negative",
			})
		}
	}

	for ext := range s.ObjectStore.Parsers {
		if ext != ".csv" && ext != ".json" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "sources.object_store.parsers." + ext,
				Message:  fmt.Sprintf("no parser for extension %q; options are ignored", ext),
			})
		}
	}

	return issues
}

func validateCredentialSource(path string, c CredentialSource) []Issue {
	switch c.Kind {
	case "":
		return []Issue{{
			Severity: SeverityError,
			Path:     path,
			Message:  "neither a dsn nor a credentials source is configured",
		}}
	case "yaml":
		if strings.TrimSpace(c.Path) == "" {
			return []Issue{{Severity: SeverityError, Path: path + ".path", Message: "yaml credentials require a path"}}
		}
	case "ssm":
		if strings.TrimSpace(c.Prefix) == "" {
			return []Issue{{Severity: SeverityError, Path: path + ".prefix", Message: "ssm credentials require a parameter prefix"}}
		}
	case "env":
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown credentials kind %q; use yaml, env or ssm", c.Kind),
		}}
	}
	return nil
}

func validateCleaning(c Cleaning) []Issue {
	var issues []Issue
	for i, n := range c.CardLengths {
		if n <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("cleaning.card_lengths[%d]", i),
				Message:  fmt.Sprintf("card length %d must be positive", n),
			})
		}
	}
	return issues
}

// validateStorage validates the warehouse settings.
func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	// Backends register themselves on import, so only kinds linked into this
	// binary are known.
	kinds := storage.ListKinds()
	if !slices.Contains(kinds, s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message: fmt.Sprintf("unknown storage kind %q; registered backends: %s",
				s.Kind, strings.Join(kinds, ", ")),
		})
	}
	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, validateCredentialSource("storage.credentials", s.Credentials)...)
	}
	if s.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.batch_size",
			Message:  "batch_size must not be negative",
		})
	}

	return issues
}

// validateRuntime validates retry settings.
func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.Retry.Attempts < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.retry.attempts",
			Message:  "attempts must not be negative",
		})
	}
	if r.Retry.InitialMillis < 0 || r.Retry.MaxMillis < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.retry",
			Message:  "backoff durations must not be negative",
		})
	}
	if r.Retry.MaxMillis > 0 && r.Retry.InitialMillis > r.Retry.MaxMillis {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.retry.initial_ms",
			Message:  fmt.Sprintf("initial_ms=%d exceeds max_ms=%d; every wait is clamped to max_ms", r.Retry.InitialMillis, r.Retry.MaxMillis),
		})
	}

	return issues
}
