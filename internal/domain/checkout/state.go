// Package checkout sequences shipping capture, payment selection and payment
// execution into a confirmed order. An order is only ever created from the
// price snapshot frozen when payment starts.
package checkout

// State of a checkout.
type State string

const (
	StateCollectingShipping State = "collecting_shipping"
	StateSelectingPayment   State = "selecting_payment"
	StateAwaitingPayment    State = "awaiting_payment"
	StateConfirmed          State = "confirmed"
	StateCancelled          State = "cancelled"
)

var validNext = map[State]map[State]bool{
	StateCollectingShipping: {StateSelectingPayment: true, StateCancelled: true},
	StateSelectingPayment:   {StateAwaitingPayment: true, StateCancelled: true},
	StateAwaitingPayment:    {StateConfirmed: true, StateSelectingPayment: true},
	StateConfirmed:          {},
	StateCancelled:          {},
}

// CanTransition reports whether from -> to is an edge of the checkout graph.
func CanTransition(from, to State) bool {
	return validNext[from][to]
}

func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateCancelled
}

func (s State) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s State) String() string {
	return string(s)
}
