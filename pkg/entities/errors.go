package entities

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateCode is returned by a store Add when the code is already
// registered. The existing entry is never replaced.
var ErrDuplicateCode = errors.New("movie code already registered")

// ErrPostUnreachable is reported by the post renderer when the referenced
// channel message can no longer be delivered (deleted or moved).
var ErrPostUnreachable = errors.New("channel post unreachable")

// RateLimitError is returned by a history source when the upstream asks to
// slow down. The scan retries the fetch after RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
