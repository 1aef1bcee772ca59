package provider

import (
	"fmt"
)

// ErrProviderUnavailable covers network failures, timeouts and 5xx answers.
// Callers retry on their next scheduled run.
type ErrProviderUnavailable struct {
	Op  string
	Err error
}

func (e ErrProviderUnavailable) Error() string {
	if e.Err == nil {
		return "provider unavailable: " + e.Op
	}
	return fmt.Sprintf("provider unavailable: %s: %v", e.Op, e.Err)
}

func (e ErrProviderUnavailable) Unwrap() error {
	return e.Err
}

// Is matches any ErrProviderUnavailable
func (e ErrProviderUnavailable) Is(target error) bool {
	_, ok := target.(ErrProviderUnavailable)
	return ok
}

// ErrUnexpectedStatus is a 4xx answer the client cannot recover from
type ErrUnexpectedStatus struct {
	Op         string
	StatusCode int
	Body       string
}

func (e ErrUnexpectedStatus) Error() string {
	return fmt.Sprintf("provider %s returned status %d: %s", e.Op, e.StatusCode, e.Body)
}
