package status

import (
	"errors"
	"fmt"
)

// Error kinds. Every business error below unwraps to exactly one of them.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("forbidden")
	ErrTransientStore     = errors.New("transient store error")
)

// Error is a specific business failure tied to a kind.
type Error struct {
	kind error
	msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Kind returns the taxonomy kind of the error.
func (e *Error) Kind() error { return e.kind }

var (
	ErrNoActiveFare          = newError(ErrNotFound, "fare: no active fare for route")
	ErrFareNotFound          = newError(ErrNotFound, "fare: fare not found")
	ErrOperatorNotRegistered = newError(ErrNotFound, "operator: user has no operator profile")
	ErrTicketNotFound        = newError(ErrNotFound, "ticket: ticket not found")
	ErrTripNotFound          = newError(ErrNotFound, "trip: trip not found")
	ErrVehicleNotFound       = newError(ErrNotFound, "vehicle: vehicle not found")

	ErrTripNotClaimable   = newError(ErrPreconditionFailed, "trip: trip is not claimable")
	ErrAlreadyClaimed     = newError(ErrPreconditionFailed, "trip: trip already claimed by another operator")
	ErrInvalidTransition  = newError(ErrPreconditionFailed, "trip: invalid status transition")
	ErrAlreadyCancelled   = newError(ErrPreconditionFailed, "ticket: ticket already cancelled")
	ErrTripAlreadyStarted = newError(ErrPreconditionFailed, "ticket: trip already started")
	ErrTicketNotBoardable = newError(ErrPreconditionFailed, "ticket: ticket is not boardable")

	ErrInvalidOrExpiredToken = newError(ErrInvalidToken, "boarding token: invalid or expired")

	ErrNotTripOperator  = newError(ErrForbidden, "trip: caller is not the operator of this trip")
	ErrTripAccessDenied = newError(ErrForbidden, "trip: access denied")
	ErrNotAnOperator    = newError(ErrForbidden, "operator: caller has no operator profile")

	ErrDuplicateFolio        = newError(ErrConflict, "ticket: folio already exists")
	ErrDuplicateRoute        = newError(ErrConflict, "fare: route already has a fare")
	ErrDuplicateLicense      = newError(ErrConflict, "operator: license number already registered")
	ErrDuplicateOperatorUser = newError(ErrConflict, "operator: user already linked to an operator")
	ErrDuplicatePlate        = newError(ErrConflict, "vehicle: plate already registered")
)

// Validation returns an ErrValidation error with a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Transient marks an infrastructure error as safe to retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransientStore, err)
}

// IsBusiness reports whether err carries one of the business kinds, as
// opposed to an infrastructure failure whose outcome is unknown.
func IsBusiness(err error) bool {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrPreconditionFailed, ErrInvalidToken, ErrForbidden} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
