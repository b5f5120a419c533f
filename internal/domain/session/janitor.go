package session

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/checkout"
)

// Evict drops sessions idle since before now-idle from memory. Their state
// survives in the snapshot store. Sessions with a payment in flight and
// sessions currently locked are skipped.
func (s *Service) Evict(now time.Time, idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		stale := now.Sub(sess.lastSeen) >= idle
		if stale && (sess.checkout == nil || sess.checkout.State() != checkout.StateAwaitingPayment) {
			sess.evicted = true
			delete(s.sessions, id)
			evicted++
		}
		sess.mu.Unlock()
	}
	return evicted
}

// StartJanitor evicts idle sessions every interval until ctx is cancelled.
func (s *Service) StartJanitor(ctx context.Context, idle, interval time.Duration) {
	if interval <= 0 {
		interval = max(idle/2, time.Second)
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Evict(s.now(), idle); n > 0 {
					zctx.From(ctx).Debug("Evicted idle sessions", zap.Int("count", n))
				}
			}
		}
	}()
}
