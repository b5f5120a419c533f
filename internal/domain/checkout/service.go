package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/checkout"

// Failure reasons shown to the customer.
const (
	ReasonDeclined     = "payment declined"
	ReasonUnavailable  = "payment provider unavailable"
	ReasonTimeout      = "payment timed out"
	ReasonCartChanged  = "cart changed during payment, review your cart and pay again"
	ReasonNotRecorded  = "order could not be recorded, the payment was reversed"
	outcomeSuccess     = "success"
	outcomeDeclined    = "declined"
	outcomeError       = "error"
	outcomeCartChanged = "cart_changed"
)

// Options configure a Service. Zero values fall back to defaults.
type Options struct {
	Policy         order.Policy
	Publisher      order.Publisher
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	// PaymentTimeout bounds a single gateway call. Zero means no bound
	// beyond the caller's context.
	PaymentTimeout time.Duration
	Now            func() time.Time
	NewID          func() string
}

// Service drives payments for checkout machines. It holds no per-session
// state; callers serialize access to a machine and its cart.
type Service struct {
	gateway   Gateway
	orders    order.Repository
	publisher order.Publisher
	policy    order.Policy
	timeout   time.Duration
	now       func() time.Time
	newID     func() string

	tracer          trace.Tracer
	attempts        metric.Int64Counter
	ordersConfirmed metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(gateway Gateway, orders order.Repository, opts Options) (*Service, error) {
	if opts.Policy == (order.Policy{}) {
		opts.Policy = order.DefaultPolicy()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	meter := opts.MeterProvider.Meter(instrumentationName)
	attempts, err := meter.Int64Counter("storefront.checkout.payment_attempts",
		metric.WithDescription("Payment attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "payment attempts counter")
	}
	confirmed, err := meter.Int64Counter("storefront.checkout.orders_confirmed",
		metric.WithDescription("Orders created from successful payments"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders confirmed counter")
	}

	return &Service{
		gateway:         gateway,
		orders:          orders,
		publisher:       opts.Publisher,
		policy:          opts.Policy,
		timeout:         opts.PaymentTimeout,
		now:             opts.Now,
		newID:           opts.NewID,
		tracer:          opts.TracerProvider.Tracer(instrumentationName),
		attempts:        attempts,
		ordersConfirmed: confirmed,
	}, nil
}

// Policy returns the order policy used to price attempts.
func (s *Service) Policy() order.Policy {
	return s.policy
}

// Begin freezes the cart and total into an Attempt and moves the machine to
// StateAwaitingPayment.
func (s *Service) Begin(m *Machine, c *cart.Ledger, sessionID string) (*Attempt, error) {
	switch m.state {
	case StateAwaitingPayment:
		return nil, ErrPaymentInFlight
	case StateConfirmed, StateCancelled:
		return nil, ErrTerminal
	case StateSelectingPayment:
	default:
		return nil, illegal(m.state, StateAwaitingPayment)
	}
	if m.method == "" {
		return nil, fieldError("payment_method", "is required")
	}
	if err := s.policy.Allows(m.method); err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, fieldError("cart", "is empty")
	}
	if m.shipping == nil {
		return nil, errors.Wrap(ErrInvariantViolation, "payment without shipping info")
	}

	total, err := order.ComputeTotal(c.TotalPrice(), m.method, s.policy)
	if err != nil {
		return nil, errors.Wrap(err, "compute total")
	}
	a := &Attempt{
		ID:          s.newID(),
		SessionID:   sessionID,
		Lines:       c.Lines(),
		Fingerprint: c.Fingerprint(),
		Total:       total,
		Method:      m.method,
		Shipping:    *m.shipping,
		StartedAt:   s.now(),
	}
	if err := m.begin(a); err != nil {
		return nil, err
	}
	return a, nil
}

// Execute makes exactly one gateway call for the attempt. Transport errors
// are reported as declines so the checkout can always be retried.
func (s *Service) Execute(ctx context.Context, a *Attempt) PaymentResult {
	ctx, span := s.tracer.Start(ctx, "checkout.AttemptPayment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("checkout.attempt_id", a.ID),
			attribute.String("checkout.payment_method", string(a.Method)),
		),
	)
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	res, err := s.gateway.AttemptPayment(ctx, PaymentRequest{
		AttemptID: a.ID,
		Method:    a.Method,
		Amount:    a.Total.GrandTotal,
		Payer:     a.Shipping,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		zctx.From(ctx).Warn("Payment gateway error",
			zap.String("attempt_id", a.ID),
			zap.Error(err),
		)
		s.countAttempt(ctx, a.Method, outcomeError)

		reason := ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return PaymentResult{Reason: reason}
	}
	if !res.Success {
		if res.Reason == "" {
			res.Reason = ReasonDeclined
		}
		span.SetAttributes(attribute.String("checkout.decline_reason", res.Reason))
		s.countAttempt(ctx, a.Method, outcomeDeclined)
		return res
	}
	span.SetAttributes(attribute.String("checkout.payment_ref", res.Reference))
	return res
}

// Complete resolves an attempt. On success the order is persisted from the
// frozen attempt and the cart is cleared; on any failure the machine returns
// to StateSelectingPayment with cart and shipping untouched and no order is
// left behind.
func (s *Service) Complete(ctx context.Context, m *Machine, c *cart.Ledger, a *Attempt, res PaymentResult) (*order.Order, error) {
	lg := zctx.From(ctx).With(zap.String("attempt_id", a.ID))

	if m.state != StateAwaitingPayment || m.attempt == nil || m.attempt.ID != a.ID {
		if res.Success {
			s.void(ctx, res.Reference)
		}
		return nil, errors.Wrapf(ErrInvariantViolation, "attempt %s is not in flight", a.ID)
	}
	if len(a.Lines) == 0 {
		if res.Success {
			s.void(ctx, res.Reference)
		}
		m.fail(ReasonNotRecorded)
		return nil, errors.Wrap(ErrInvariantViolation, "order without lines")
	}

	if !res.Success {
		m.fail(res.Reason)
		return nil, &PaymentFailure{Reason: res.Reason}
	}

	if c.Fingerprint() != a.Fingerprint {
		lg.Info("Cart changed while payment was in flight, voiding payment")
		s.void(ctx, res.Reference)
		s.countAttempt(ctx, a.Method, outcomeCartChanged)
		m.fail(ReasonCartChanged)
		return nil, &PaymentFailure{Reason: ReasonCartChanged, Err: ErrCartChanged}
	}

	o := &order.Order{
		ID:            s.newID(),
		SessionID:     a.SessionID,
		Lines:         a.Lines,
		Shipping:      a.Shipping,
		PaymentMethod: a.Method,
		PaymentRef:    res.Reference,
		Total:         a.Total,
		Status:        order.StatusConfirmed,
		CreatedAt:     s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		lg.Error("Create order failed, voiding payment", zap.Error(err))
		s.void(ctx, res.Reference)
		s.countAttempt(ctx, a.Method, outcomeError)
		m.fail(ReasonNotRecorded)
		return nil, &PaymentFailure{Reason: ReasonNotRecorded, Err: errors.Wrap(err, "create order")}
	}

	c.Clear()
	m.confirm(o.ID)
	s.countAttempt(ctx, a.Method, outcomeSuccess)
	s.ordersConfirmed.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", string(a.Method))))
	lg.Info("Order confirmed",
		zap.String("order_id", o.ID),
		zap.String("grand_total", o.Total.GrandTotal.String()),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishConfirmed(ctx, o); err != nil {
			lg.Warn("Publish order confirmation failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// Pay runs Begin, Execute and Complete back to back. The caller must hold
// exclusive access to m and c for the whole call.
func (s *Service) Pay(ctx context.Context, m *Machine, c *cart.Ledger, sessionID string) (*order.Order, error) {
	a, err := s.Begin(m, c, sessionID)
	if err != nil {
		return nil, err
	}
	res := s.Execute(ctx, a)
	return s.Complete(ctx, m, c, a, res)
}

func (s *Service) void(ctx context.Context, ref string) {
	v, ok := s.gateway.(Voider)
	if !ok || ref == "" {
		return
	}
	if err := v.Void(context.WithoutCancel(ctx), ref); err != nil {
		zctx.From(ctx).Error("Void payment failed", zap.String("payment_ref", ref), zap.Error(err))
	}
}

func (s *Service) countAttempt(ctx context.Context, method order.PaymentMethod, outcome string) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(method)),
		attribute.String("outcome", outcome),
	))
}
