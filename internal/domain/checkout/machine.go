package checkout

import (
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

// ReasonInterrupted is reported when an unresolved attempt is found on restore.
const ReasonInterrupted = "payment interrupted"

// Attempt is the frozen price snapshot a payment is made against.
type Attempt struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	Lines       []cart.Line         `json:"lines"`
	Fingerprint string              `json:"fingerprint"`
	Total       order.Total         `json:"total"`
	Method      order.PaymentMethod `json:"method"`
	Shipping    order.ShippingInfo  `json:"shipping"`
	StartedAt   time.Time           `json:"started_at"`
}

// Machine is the checkout state of one session. It is not safe for
// concurrent use.
type Machine struct {
	state       State
	shipping    *order.ShippingInfo
	method      order.PaymentMethod
	attempt     *Attempt
	orderID     string
	lastFailure string
}

func NewMachine() *Machine {
	return &Machine{state: StateCollectingShipping}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) Method() order.PaymentMethod { return m.method }

// OrderID is set once the checkout is confirmed.
func (m *Machine) OrderID() string { return m.orderID }

// LastFailure is the reason of the most recent failed payment, cleared when
// a new attempt starts.
func (m *Machine) LastFailure() string { return m.lastFailure }

func (m *Machine) Shipping() (order.ShippingInfo, bool) {
	if m.shipping == nil {
		return order.ShippingInfo{}, false
	}
	return *m.shipping, true
}

// Attempt returns the in-flight attempt, if any.
func (m *Machine) Attempt() (Attempt, bool) {
	if m.attempt == nil {
		return Attempt{}, false
	}
	return *m.attempt, true
}

// SubmitShipping stores validated shipping info and moves to payment
// selection. While selecting payment it replaces the stored info in place.
// On validation failure the state is unchanged.
func (m *Machine) SubmitShipping(info order.ShippingInfo, c *cart.Ledger) error {
	switch m.state {
	case StateCollectingShipping, StateSelectingPayment:
	case StateAwaitingPayment:
		return ErrPaymentInFlight
	default:
		return ErrTerminal
	}

	info, err := ValidateShipping(info)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) && (c == nil || c.IsEmpty()) {
			vErr.Fields["cart"] = "is empty"
		}
		return err
	}
	if c == nil || c.IsEmpty() {
		return fieldError("cart", "is empty")
	}

	m.shipping = &info
	m.state = StateSelectingPayment
	return nil
}

// SelectPayment records the payment method. COD while disabled by policy is
// a configuration error and leaves the previous selection in place.
func (m *Machine) SelectPayment(method order.PaymentMethod, p order.Policy) error {
	switch m.state {
	case StateSelectingPayment:
	case StateAwaitingPayment:
		return ErrPaymentInFlight
	case StateConfirmed, StateCancelled:
		return ErrTerminal
	default:
		return illegal(m.state, StateSelectingPayment)
	}
	if !slices.Contains(order.Methods, method) {
		return fieldError("payment_method", "is invalid")
	}
	if err := p.Allows(method); err != nil {
		return err
	}
	m.method = method
	return nil
}

// Cancel abandons the checkout. The cart is left untouched. An in-flight
// payment cannot be cancelled and runs to completion.
func (m *Machine) Cancel() error {
	switch m.state {
	case StateAwaitingPayment:
		return ErrPaymentInFlight
	case StateConfirmed, StateCancelled:
		return ErrTerminal
	}
	if !CanTransition(m.state, StateCancelled) {
		return illegal(m.state, StateCancelled)
	}
	m.state = StateCancelled
	m.attempt = nil
	return nil
}

// Reset starts over from shipping capture.
func (m *Machine) Reset() error {
	if m.state == StateAwaitingPayment {
		return ErrPaymentInFlight
	}
	*m = Machine{state: StateCollectingShipping}
	return nil
}

func (m *Machine) begin(a *Attempt) error {
	if !CanTransition(m.state, StateAwaitingPayment) {
		return illegal(m.state, StateAwaitingPayment)
	}
	m.attempt = a
	m.lastFailure = ""
	m.state = StateAwaitingPayment
	return nil
}

func (m *Machine) fail(reason string) {
	m.attempt = nil
	m.lastFailure = reason
	m.state = StateSelectingPayment
}

func (m *Machine) confirm(orderID string) {
	m.attempt = nil
	m.orderID = orderID
	m.state = StateConfirmed
}

// Snapshot is the persisted form of a machine.
type Snapshot struct {
	State       State               `json:"state"`
	Shipping    *order.ShippingInfo `json:"shipping,omitempty"`
	Method      order.PaymentMethod `json:"method,omitempty"`
	Attempt     *Attempt            `json:"attempt,omitempty"`
	OrderID     string              `json:"order_id,omitempty"`
	LastFailure string              `json:"last_failure,omitempty"`
}

func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:       m.state,
		Method:      m.method,
		OrderID:     m.orderID,
		LastFailure: m.lastFailure,
	}
	if m.shipping != nil {
		info := *m.shipping
		s.Shipping = &info
	}
	if m.attempt != nil {
		a := *m.attempt
		s.Attempt = &a
	}
	return s
}

// RestoreMachine rebuilds a machine from a snapshot. An attempt that was in
// flight when the snapshot was written can no longer be resolved, so the
// machine reverts to payment selection with ReasonInterrupted.
func RestoreMachine(s Snapshot) (*Machine, error) {
	if s.State == "" {
		return NewMachine(), nil
	}
	if !s.State.Valid() {
		return nil, errors.Errorf("unknown checkout state %q", s.State)
	}
	m := &Machine{
		state:       s.State,
		method:      s.Method,
		orderID:     s.OrderID,
		lastFailure: s.LastFailure,
	}
	if s.Shipping != nil {
		info := *s.Shipping
		m.shipping = &info
	}
	if m.state == StateAwaitingPayment {
		m.fail(ReasonInterrupted)
	}
	if m.state == StateSelectingPayment && m.shipping == nil {
		return nil, errors.Wrap(ErrInvariantViolation, "payment selection without shipping info")
	}
	return m, nil
}
