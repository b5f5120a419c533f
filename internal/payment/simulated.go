// Package payment provides payment gateways for checkout: a simulated
// provider and a circuit breaker that wraps any gateway.
package payment

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
)

// DeclineReasons are the outcomes a simulated decline picks from.
var DeclineReasons = []string{
	"insufficient funds",
	"card expired",
	"suspected fraud",
	"issuer unavailable",
	"limit exceeded",
}

// ErrUnknownPayment is returned when voiding a reference that was never
// issued or was already voided.
var ErrUnknownPayment = errors.New("unknown payment reference")

// SimulatedConfig tunes the simulated provider.
type SimulatedConfig struct {
	// Latency is how long every charge takes.
	Latency time.Duration
	// SuccessRate is the probability in [0, 1] that a charge succeeds.
	SuccessRate float64
	// Float64 returns values in [0, 1). Defaults to math/rand/v2.
	Float64 func() float64
}

// Simulated stands in for a real payment provider. Cash on delivery is
// always accepted since no money moves at checkout.
type Simulated struct {
	latency     time.Duration
	successRate float64
	float64     func() float64

	mu      sync.Mutex
	charged map[string]checkout.PaymentRequest
}

var (
	_ checkout.Gateway = (*Simulated)(nil)
	_ checkout.Voider  = (*Simulated)(nil)
)

func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.Float64 == nil {
		cfg.Float64 = rand.Float64
	}
	return &Simulated{
		latency:     cfg.Latency,
		successRate: min(max(cfg.SuccessRate, 0), 1),
		float64:     cfg.Float64,
		charged:     make(map[string]checkout.PaymentRequest),
	}
}

// AttemptPayment waits for the configured latency, then succeeds or declines.
func (s *Simulated) AttemptPayment(ctx context.Context, req checkout.PaymentRequest) (checkout.PaymentResult, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return checkout.PaymentResult{}, errors.Wrap(ctx.Err(), "simulated charge")
		case <-timer.C:
		}
	}

	if req.Method != order.MethodCOD {
		if s.float64() >= s.successRate {
			idx := int(s.float64() * float64(len(DeclineReasons)))
			idx = min(max(idx, 0), len(DeclineReasons)-1)
			return checkout.PaymentResult{Reason: DeclineReasons[idx]}, nil
		}
	}

	ref := "TXN-" + uuid.New().String()
	s.mu.Lock()
	s.charged[ref] = req
	s.mu.Unlock()
	return checkout.PaymentResult{Success: true, Reference: ref}, nil
}

// Void reverses a successful charge.
func (s *Simulated) Void(_ context.Context, reference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charged[reference]; !ok {
		return errors.Wrapf(ErrUnknownPayment, "%q", reference)
	}
	delete(s.charged, reference)
	return nil
}

// Outstanding returns the number of charges that have not been voided.
func (s *Simulated) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.charged)
}
