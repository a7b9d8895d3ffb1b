package mirror

import (
	"errors"
	"fmt"
)

// NotFoundError is returned by Locator.Locate when the target directory is
// neither directly under the start point nor inside one of its containers.
type NotFoundError struct {
	Target string
	Start  string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s directory not found from %s", e.Target, e.Start)
}

// SaveError is returned by Service.Run when a snapshot store rejects the result.
type SaveError struct {
	Store string
	Err   error
}

// Error implements the error interface.
func (e SaveError) Error() string {
	return fmt.Sprintf("save to %s: %v", e.Store, e.Err)
}

// Unwrap returns the store's error.
func (e SaveError) Unwrap() error { return e.Err }

// ErrRunNotFound is returned when a run ID is unknown to the runner.
var ErrRunNotFound = errors.New("run not found")
