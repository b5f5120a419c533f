package checkout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

var (
	// ErrPaymentInFlight is returned while a payment attempt is unresolved.
	ErrPaymentInFlight = errors.New("payment already in progress")
	// ErrTerminal is returned for mutations of a confirmed or cancelled checkout.
	ErrTerminal = errors.New("checkout already finished")
	// ErrIllegalTransition is returned when an operation does not apply to
	// the current state.
	ErrIllegalTransition = errors.New("illegal checkout transition")
	// ErrCartChanged is the cause of a payment failure when the cart was
	// modified after the total was frozen.
	ErrCartChanged = errors.New("cart changed during payment")
	// ErrInvariantViolation signals a state the guards should have made
	// impossible.
	ErrInvariantViolation = errors.New("checkout invariant violated")
)

func illegal(from, to State) error {
	return errors.Wrapf(ErrIllegalTransition, "%s -> %s", from, to)
}

// ValidationError carries field-level messages for user input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %s", k, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// PaymentFailure reports a declined or reverted payment. The checkout is back
// in StateSelectingPayment and can be retried.
type PaymentFailure struct {
	Reason string
	Err    error
}

func (e *PaymentFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment failed: %s: %v", e.Reason, e.Err)
	}
	return "payment failed: " + e.Reason
}

func (e *PaymentFailure) Unwrap() error {
	return e.Err
}
