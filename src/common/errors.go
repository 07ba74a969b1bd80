package common

import (
	"errors"
	"fmt"
)

// ValidationError is returned when an inbound message fails a check. DoS is the
// misbehaviour score to charge the sending peer; 0 means the failure could be
// honest and the peer is not penalised.
type ValidationError struct {
	Reason string
	DoS    int
}

// NewValidationError ...
func NewValidationError(dos int, format string, args ...interface{}) ValidationError {
	return ValidationError{
		Reason: fmt.Sprintf(format, args...),
		DoS:    dos,
	}
}

// Error ...
func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid: %s", e.Reason)
}

// TransientError wraps a collaborator failure that should be retried on the
// next tick. It never mutates state and never penalises a peer.
type TransientError struct {
	Op  string
	Err error
}

// NewTransientError ...
func NewTransientError(op string, err error) TransientError {
	return TransientError{Op: op, Err: err}
}

// Error ...
func (e TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

// Unwrap ...
func (e TransientError) Unwrap() error {
	return e.Err
}

// CollateralError is returned when a collateral output is spent or not deep
// enough. The message that carried it may be resubmitted later.
type CollateralError struct {
	Reason string
	DoS    int
}

// NewCollateralError ...
func NewCollateralError(dos int, format string, args ...interface{}) CollateralError {
	return CollateralError{
		Reason: fmt.Sprintf(format, args...),
		DoS:    dos,
	}
}

// Error ...
func (e CollateralError) Error() string {
	return fmt.Sprintf("collateral: %s", e.Reason)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// IsTransient reports whether err is, or wraps, a TransientError.
func IsTransient(err error) bool {
	var v TransientError
	return errors.As(err, &v)
}

// IsCollateral reports whether err is, or wraps, a CollateralError.
func IsCollateral(err error) bool {
	var v CollateralError
	return errors.As(err, &v)
}

// DoS returns the misbehaviour score carried by err, or 0.
func DoS(err error) int {
	var v ValidationError
	if errors.As(err, &v) {
		return v.DoS
	}
	var c CollateralError
	if errors.As(err, &c) {
		return c.DoS
	}
	return 0
}
