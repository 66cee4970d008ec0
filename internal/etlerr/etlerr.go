// Package etlerr defines the error taxonomy shared by the extraction, cleaning
// and load stages.
//
// Every pipeline error carries a kind sentinel so callers can branch with
// errors.Is without string matching:
//
//	if errors.Is(err, etlerr.ErrNotFound) { ... }
//
// Connectivity errors are the only retryable kind.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrConnectivity = errors.New("connectivity error")
	ErrNotFound     = errors.New("not found")
	ErrFormat       = errors.New("format error")
	ErrParse        = errors.New("parse error")
	ErrSchema       = errors.New("schema error")
	ErrValidation   = errors.New("validation rejection")
)

// Error is a kind-tagged error. Op names the operation that failed, e.g.
// "relational: connect" or "objectstore: fetch s3://b/k".
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds a kind-tagged error.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Connectivity tags err as a transient connectivity failure.
func Connectivity(op string, err error) error { return New(ErrConnectivity, op, err) }

// NotFound tags err as a missing source object or table.
func NotFound(op string, err error) error { return New(ErrNotFound, op, err) }

// Format tags err as unparseable source content.
func Format(op string, err error) error { return New(ErrFormat, op, err) }

// Schema tags err as a mismatch between a batch and its target schema.
func Schema(op string, err error) error { return New(ErrSchema, op, err) }

// Errorf is a convenience for New(kind, op, fmt.Errorf(format, a...)).
func Errorf(kind error, op, format string, a ...any) error {
	return New(kind, op, fmt.Errorf(format, a...))
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// KindOf returns the first kind sentinel found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{ErrConnectivity, ErrNotFound, ErrFormat, ErrParse, ErrSchema, ErrValidation} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
