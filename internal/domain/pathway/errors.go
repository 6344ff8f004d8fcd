package pathway

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindBooking    Kind = "booking"
	KindCommit     Kind = "commit"
	KindEnrichment Kind = "enrichment"
	KindConflict   Kind = "conflict"
)

// ErrLocked is the cause of a conflict error when another transition for the
// same patient is in flight.
var ErrLocked = errors.New("another pathway transition is in progress for this patient")

// Error is a failed transition step. Use errors.As to recover it.
type Error struct {
	Kind Kind
	Step Step
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", e.Kind, e.Step, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, step Step, err error) *Error {
	return &Error{Kind: kind, Step: step, err: err}
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, StepValidating, fmt.Errorf(format, args...))
}

// HTTPStatus maps an error kind to the status the handler responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindBooking:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
