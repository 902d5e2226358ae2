package errs

import (
	"fmt"
	"time"
)

// RateLimitError is ErrRateLimited with the time until the block lifts.
type RateLimitError struct {
	RetryAfter time.Duration
}

// RateLimited wraps ErrRateLimited with a retry hint.
func RateLimited(wait time.Duration) error { return &RateLimitError{RetryAfter: wait} }

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
