package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a registry name is not loaded.
var ErrNotFound = errors.New("registry: not found")

// NotFoundError returns when a registry document is not loaded.
type NotFoundError struct {
	Name string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: %q not found", e.Name)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}
