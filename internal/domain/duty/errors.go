package duty

import (
	"errors"
	"fmt"
)

var (
	// ErrDutyAlreadyExists is non-fatal: the group is already wired up.
	ErrDutyAlreadyExists = errors.New("scheduled duty already exists for group")
	ErrDutyNotFound      = errors.New("scheduled duty not found")
	ErrInvalidAmount     = errors.New("deposit amount must be positive")

	// Typed errors reported by a Network implementation.
	ErrTaskExists   = errors.New("automation network: task already exists")
	ErrTaskNotFound = errors.New("automation network: task not found")

	// ErrNotInMirror is returned by a Repository when no row matches.
	ErrNotInMirror = errors.New("scheduled duty not in local mirror")
)

// RegistrationError wraps a failed create or cancel call.
type RegistrationError struct {
	Op    string
	Group string
	Err   error
}

func (e *RegistrationError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("registration error: %s %s: %v", e.Op, e.Group, e.Err)
	}
	return fmt.Sprintf("registration error: %s: %v", e.Op, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// QueryError wraps a failed read against the automation network.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query error: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
