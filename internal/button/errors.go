package button

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyID        = errors.New("button: id is empty")
	ErrIDTooLong      = errors.New("button: id longer than 100 characters")
	ErrNoAction       = errors.New("button: non-link button needs a click handler")
	ErrLinkWithAction = errors.New("button: link buttons cannot have a click handler")
	ErrClosed         = errors.New("button: registry is shut down")
)

// ExistsError is returned when an id is registered while still active.
type ExistsError struct{ ID string }

func (e *ExistsError) Error() string { return fmt.Sprintf("button %q already registered", e.ID) }

// ActionNotFoundError is returned for clicks on unknown or expired buttons.
type ActionNotFoundError struct{ ID string }

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("no action for button %q", e.ID)
}

// ActionFailedError wraps an error returned (or a panic raised) by a click handler.
type ActionFailedError struct {
	ID  string
	Err error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("button %q action failed: %v", e.ID, e.Err)
}

func (e *ActionFailedError) Unwrap() error { return e.Err }
