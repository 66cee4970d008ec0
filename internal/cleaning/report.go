package cleaning

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Report summarizes one Clean call. It exists for logs, metrics and tests;
// the pipeline never branches on it.
type Report struct {
	Entity string
	RowsIn int

	DroppedRequired      int
	DroppedValidation    int
	DroppedCoercion      int
	DroppedNormalization int
	DroppedDuplicate     int

	// Rejections counts validation drops per validator name.
	Rejections map[string]int

	MalformedDates int
	NullFilled     int
	RowsOut        int

	// Examples holds the first few rejection reasons.
	Examples []string
}

// Dropped is the total number of rows removed by any stage.
func (r Report) Dropped() int {
	return r.DroppedRequired + r.DroppedValidation + r.DroppedCoercion + r.DroppedNormalization + r.DroppedDuplicate
}

func (r Report) String() string {
	return fmt.Sprintf(
		"entity=%s rows_in=%d required_dropped=%d validate_dropped=%d coerce_dropped=%d normalize_dropped=%d duplicate_dropped=%d malformed_dates=%d null_filled=%d rows_out=%d",
		r.Entity, r.RowsIn, r.DroppedRequired, r.DroppedValidation, r.DroppedCoercion,
		r.DroppedNormalization, r.DroppedDuplicate, r.MalformedDates, r.NullFilled, r.RowsOut,
	)
}

// Log prints the summary line followed by per-validator counts and examples.
func (r Report) Log() {
	log.Printf("clean: %s", r)
	if len(r.Rejections) > 0 {
		names := make([]string, 0, len(r.Rejections))
		for n := range r.Rejections {
			names = append(names, n)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s=%d", n, r.Rejections[n])
		}
		log.Printf("clean: entity=%s rejections %s", r.Entity, strings.Join(parts, " "))
	}
	if len(r.Examples) > 0 {
		log.Printf("clean: entity=%s rejects: %d (showing first %d)", r.Entity, r.Dropped(), len(r.Examples))
		for i, s := range r.Examples {
			log.Printf("  #%03d: %s", i+1, s)
		}
	}
}
