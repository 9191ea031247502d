package services

import (
	"errors"
	"fmt"
)

// Conflict errors: the request is well-formed but the order is not in a
// state that permits it. Idempotent callers may treat some of these as
// "already in the desired state".
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrPaymentInProgress = errors.New("a payment for this order is already in progress")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrNotAuthorized     = errors.New("insufficient permissions")
	ErrOverrideRequired  = errors.New("leaving a terminal status requires an explicit override")
)

// ValidationError is a synchronous rejection with field-level detail and
// no persisted side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransitionError reports an order-status transition the state machine
// does not allow.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// TransportError wraps a failure to reach the payment provider. The
// order is left untouched; retrying is the caller's decision.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("payment provider unreachable during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
