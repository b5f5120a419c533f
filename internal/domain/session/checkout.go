package session

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
)

// CheckoutView is a read-only rendering of a session's checkout.
type CheckoutView struct {
	State    checkout.State
	Shipping *order.ShippingInfo
	Method   order.PaymentMethod
	// Total is frozen while a payment is in flight and a live preview
	// otherwise.
	Total       order.Total
	ItemCount   int
	OrderID     string
	LastFailure string
}

func (s *Service) checkoutView(sess *Session) (CheckoutView, error) {
	m := sess.checkout
	v := CheckoutView{
		State:       m.State(),
		Method:      m.Method(),
		ItemCount:   sess.cart.TotalItemCount(),
		OrderID:     m.OrderID(),
		LastFailure: m.LastFailure(),
	}
	if info, ok := m.Shipping(); ok {
		v.Shipping = &info
	}
	if a, ok := m.Attempt(); ok {
		v.Total = a.Total
		return v, nil
	}
	total, err := order.ComputeTotal(sess.cart.TotalPrice(), m.Method(), s.payments.Policy())
	if err != nil {
		return CheckoutView{}, err
	}
	v.Total = total
	return v, nil
}

func (s *Service) Checkout(ctx context.Context, sessionID string) (CheckoutView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CheckoutView{}, err
	}
	defer sess.mu.Unlock()
	return s.checkoutView(sess)
}

// mutateCheckout applies fn to the locked session's machine and persists it
// when fn succeeds.
func (s *Service) mutateCheckout(ctx context.Context, sessionID string, fn func(*Session) error) (CheckoutView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CheckoutView{}, err
	}
	defer sess.mu.Unlock()

	if err := fn(sess); err != nil {
		return CheckoutView{}, err
	}
	s.saveCheckout(ctx, sess)
	return s.checkoutView(sess)
}

func (s *Service) SubmitShipping(ctx context.Context, sessionID string, info order.ShippingInfo) (CheckoutView, error) {
	return s.mutateCheckout(ctx, sessionID, func(sess *Session) error {
		return sess.checkout.SubmitShipping(info, sess.cart)
	})
}

// SelectPayment parses and records the payment method.
func (s *Service) SelectPayment(ctx context.Context, sessionID, method string) (CheckoutView, error) {
	m, err := order.ParsePaymentMethod(method)
	if err != nil {
		return CheckoutView{}, &checkout.ValidationError{Fields: map[string]string{"payment_method": "is invalid"}}
	}
	return s.mutateCheckout(ctx, sessionID, func(sess *Session) error {
		return sess.checkout.SelectPayment(m, s.payments.Policy())
	})
}

func (s *Service) CancelCheckout(ctx context.Context, sessionID string) (CheckoutView, error) {
	return s.mutateCheckout(ctx, sessionID, func(sess *Session) error {
		return sess.checkout.Cancel()
	})
}

// RestartCheckout begins a new checkout, typically after a confirmed or
// cancelled one.
func (s *Service) RestartCheckout(ctx context.Context, sessionID string) (CheckoutView, error) {
	return s.mutateCheckout(ctx, sessionID, func(sess *Session) error {
		return sess.checkout.Reset()
	})
}

// Pay charges the session's frozen total. The session lock is released while
// the gateway is called; cart edits made meanwhile cause the payment to be
// voided at completion and other checkout mutations fail with
// checkout.ErrPaymentInFlight.
func (s *Service) Pay(ctx context.Context, sessionID string) (*order.Order, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.payments.Begin(sess.checkout, sess.cart, sessionID)
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	s.saveCheckout(ctx, sess)
	sess.mu.Unlock()

	res := s.payments.Execute(ctx, attempt)

	// The money may have moved; finish even if the client went away.
	ctx = context.WithoutCancel(ctx)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastSeen = s.now()

	o, err := s.payments.Complete(ctx, sess.checkout, sess.cart, attempt, res)
	s.saveCheckout(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.saveCart(ctx, sess)
	return o, nil
}

// Orders lists the orders placed by a session.
func (s *Service) Orders(ctx context.Context, sessionID string) ([]order.Order, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	orders, err := s.orders.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Order returns an order of the session. Orders of other sessions are
// reported as not found.
func (s *Service) Order(ctx context.Context, sessionID, orderID string) (*order.Order, error) {
	if sessionID == "" {
		return nil, ErrMissingSession
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SessionID != sessionID {
		return nil, order.ErrNotFound
	}
	return o, nil
}
