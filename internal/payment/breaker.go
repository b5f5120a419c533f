package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
)

// BreakerConfig configures the circuit breaker around a gateway.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before trial requests are let through.
	OpenTimeout time.Duration
	// HalfOpenRequests is the number of trial requests allowed while half-open.
	HalfOpenRequests uint32
}

// Breaker fails fast while the wrapped gateway keeps erroring. Declines are
// normal outcomes and never count as failures.
type Breaker struct {
	next checkout.Gateway
	cb   *gobreaker.CircuitBreaker[checkout.PaymentResult]
}

var (
	_ checkout.Gateway = (*Breaker)(nil)
	_ checkout.Voider  = (*Breaker)(nil)
)

// NewBreaker wraps next. lg receives state changes.
func NewBreaker(next checkout.Gateway, cfg BreakerConfig, lg *zap.Logger) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker[checkout.PaymentResult](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up is not the provider's fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// AttemptPayment forwards to the wrapped gateway unless the circuit is open.
func (b *Breaker) AttemptPayment(ctx context.Context, req checkout.PaymentRequest) (checkout.PaymentResult, error) {
	res, err := b.cb.Execute(func() (checkout.PaymentResult, error) {
		return b.next.AttemptPayment(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		zctx.From(ctx).Debug("Payment rejected by open circuit", zap.String("attempt_id", req.AttemptID))
		return checkout.PaymentResult{}, errors.Wrap(err, "payment gateway circuit")
	}
	return res, err
}

// Void forwards to the wrapped gateway. Voids bypass the breaker since a
// reversal must be attempted even while charges are failing.
func (b *Breaker) Void(ctx context.Context, reference string) error {
	v, ok := b.next.(checkout.Voider)
	if !ok {
		return errors.New("gateway does not support voids")
	}
	return v.Void(ctx, reference)
}

// State reports the breaker state, e.g. for health checks.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
