// Package parser defines the contract for decoding object-store payloads
// into raw batches.
package parser

import (
	"io"

	"retaildc/pkg/records"
)

// Parser decodes one payload. Rows that cannot be decoded individually are
// skipped and counted in Batch.Failed; an error means the payload as a whole
// is unusable.
type Parser interface {
	Parse(r io.Reader) (records.Batch, error)
}
