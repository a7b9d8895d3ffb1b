package fetch

import "fmt"

// FetchError is returned by Fetcher.Fetch once every attempt has failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response other than a rate-limit exhaustion.
type StatusError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GET %s returned %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("GET %s returned %d", e.URL, e.StatusCode)
}

// Unwrap returns the underlying client error, if any.
func (e StatusError) Unwrap() error { return e.Err }
