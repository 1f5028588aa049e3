package medication

import (
	"errors"
	"fmt"
)

// ErrInvalid marks input the manager rejects before touching the store.
var ErrInvalid = errors.New("invalid medication input")

// NotFoundError is returned when a patient or medication id does not resolve.
type NotFoundError struct {
	Kind string // "patient" or "medication"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func patientNotFound(id string) error {
	return &NotFoundError{Kind: "patient", ID: id}
}

func medicationNotFound(id string) error {
	return &NotFoundError{Kind: "medication", ID: id}
}

// TransitionError is returned when a status change is not permitted.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change medication status from %s to %s", e.From, e.To)
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
