package command

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPrefix    = errors.New("command: prefix must not be empty")
	ErrInvalidCommand = errors.New("command: invalid descriptor")
	ErrNoTaskSink     = errors.New("command: group declares tasks but no scheduler is attached")
)

// NotFoundError means no alias or structured name matched the trigger.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("command not found: %s", e.Name) }

// FailedError wraps an error returned (or a panic raised) by a handler.
type FailedError struct {
	Command string
	Group   string
	Err     error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("command %s (%s) failed: %v", e.Command, e.Group, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// DuplicateError is returned by Register when a name or alias is taken.
type DuplicateError struct {
	What  string // "alias" or "structured command"
	Name  string
	Group string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s %q in group %s", e.What, e.Name, e.Group)
}
