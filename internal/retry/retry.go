// Package retry provides the bounded wait primitives shared by every
// polling site in the workflow: dialog and grid appearance, viewer window
// discovery, date-picker verification and clipboard reads.
package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned once a bounded wait has used all of its attempts.
var ErrExhausted = errors.New("attempts exhausted")

// Poll calls check every interval until it reports true. It gives up after
// attempts calls and returns an ErrExhausted-wrapped error. The first call
// happens immediately; the interval only separates subsequent calls.
func Poll(attempts int, interval time.Duration, check func() bool) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		if check() {
			return nil
		}
	}
	return fmt.Errorf("%w: condition not met after %d polls at %s", ErrExhausted, attempts, interval)
}

// Do runs op up to attempts times, sleeping backoff between tries, and stops
// at the first nil error. The attempt number passed to op is 1-based so call
// sites can log "retrying (2/3)" style progress. On exhaustion the last error
// is wrapped together with ErrExhausted.
func Do(attempts int, backoff time.Duration, op func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			time.Sleep(backoff)
		}
		if last = op(i); last == nil {
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}
