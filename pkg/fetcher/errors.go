package fetcher

import (
	"errors"
	"fmt"
)

// ErrMaxPagesExceeded is returned when a stream follows more next links than
// the configured page cap allows.
var ErrMaxPagesExceeded = errors.New("maximum page count exceeded")

// FetchError reports a failed upstream page GET. It aborts the in-flight
// stream; already-flushed output stands.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: upstream returned status %d", e.URL, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}
