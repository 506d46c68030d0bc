package services

import "errors"

// Domain error kinds. Handlers map these to HTTP statuses and flash
// messages; services only wrap them with fmt.Errorf("%w").
var (
	ErrNotFound     = errors.New("record not found")
	ErrForbidden    = errors.New("operation not permitted for this role")
	ErrPrecondition = errors.New("operation not allowed in the current state")
	ErrDuplicate    = errors.New("operation already processed")
	ErrStaleForm    = errors.New("record changed since the form was loaded")
	ErrValidation   = errors.New("invalid input")
	ErrLocked       = errors.New("case is locked")
)
