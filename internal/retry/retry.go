// Package retry runs an operation under a bounded exponential backoff.
//
// Only errors classified as retryable by etlerr.IsRetryable are retried;
// not-found, format and schema errors return on the first attempt.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"

	"retaildc/internal/etlerr"
)

// Policy configures Do. Zero values take these defaults:
//   - Attempts: 3
//   - Initial:  200ms
//   - Max:      5s
type Policy struct {
	// Attempts is the total number of tries including the first.
	Attempts int

	// Initial is the wait before the first retry. Each later wait doubles,
	// clamped to Max.
	Initial time.Duration
	Max     time.Duration

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is the policy used by the relational and HTTP adapters.
var Default = Policy{Attempts: 3, Initial: 200 * time.Millisecond, Max: 5 * time.Second}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = Default.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = Default.Initial
	}
	if p.Max <= 0 {
		p.Max = Default.Max
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted or ctx is done. The last error is returned wrapped with op.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	var err error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return cerr
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !etlerr.IsRetryable(err) {
			return err
		}
		if attempt+1 >= p.Attempts {
			break
		}
		wait := Backoff(p.Initial, attempt, p.Max)
		log.Printf("retry: op=%s attempt=%d/%d wait=%s err=%v", op, attempt+1, p.Attempts, wait, err)
		if serr := p.Sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, p.Attempts, err)
}

// Backoff returns the wait before retry number attempt (0-based):
// initial * 2^attempt, clamped to max.
func Backoff(initial time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt <= 0 {
		if initial > max {
			return max
		}
		return initial
	}
	if attempt > 30 {
		return max
	}
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
