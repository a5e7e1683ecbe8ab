package auth

import "fmt"

// AuthError reports a failed credential acquisition against a token or
// assertion endpoint. It aborts the in-flight stream; other requests are
// unaffected.
type AuthError struct {
	Strategy   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("auth %s error (status %d): %s", e.Strategy, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("auth %s error: %s: %v", e.Strategy, e.Message, e.Err)
	}
	return fmt.Sprintf("auth %s error: %s", e.Strategy, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthError) Unwrap() error {
	return e.Err
}
