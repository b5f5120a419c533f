// Package session owns the per-session cart, wishlist and checkout state.
// Each session is guarded by its own mutex so every mutation of a session is
// serialized, and state is written through to a SnapshotStore after each one.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

var (
	// ErrSnapshotNotFound is returned by a SnapshotStore for unknown keys.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrMissingSession is returned when no session id was supplied.
	ErrMissingSession = errors.New("session id required")
	// ErrOutOfStock is returned when adding a product with no stock.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrUnavailable is returned when adding a product that is not active.
	ErrUnavailable = errors.New("product not available")
	// ErrLineNotFound is returned for cart line ids not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrNotInWishlist is returned when moving an entry that is not saved.
	ErrNotInWishlist = errors.New("product not in wishlist")
)

// SnapshotStore persists opaque session snapshots. Implementations give no
// guarantees beyond last write wins.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

func cartKey(id string) string     { return "cart:" + id }
func wishlistKey(id string) string { return "wishlist:" + id }
func checkoutKey(id string) string { return "checkout:" + id }

// Session is the state of one shopper.
type Session struct {
	mu       sync.Mutex
	id       string
	loaded   bool
	evicted  bool
	lastSeen time.Time

	cart     *cart.Ledger
	wishlist *wishlist.Ledger
	checkout *checkout.Machine
}

// Config tunes a Service.
type Config struct {
	// MaxQuantity caps a single cart line regardless of stock.
	MaxQuantity int
	Now         func() time.Time
}

// Service exposes cart, wishlist and checkout operations keyed by session id.
type Service struct {
	products product.Repository
	orders   order.Repository
	engine   *pricing.Engine
	payments *checkout.Service
	store    SnapshotStore
	maxQty   int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a session Service.
func NewService(
	products product.Repository,
	orders order.Repository,
	engine *pricing.Engine,
	payments *checkout.Service,
	store SnapshotStore,
	cfg Config,
) *Service {
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = cart.DefaultMaxQuantity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		products: products,
		orders:   orders,
		engine:   engine,
		payments: payments,
		store:    store,
		maxQty:   cfg.MaxQuantity,
		now:      cfg.Now,
		sessions: make(map[string]*Session),
	}
}

// acquire returns the locked session for id, loading it from the store on
// first use. The caller must unlock it.
func (s *Service) acquire(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrMissingSession
	}
	for {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		if !ok {
			sess = &Session{id: id}
			s.sessions[id] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		if sess.evicted {
			sess.mu.Unlock()
			continue
		}
		if !sess.loaded {
			if err := s.load(ctx, sess); err != nil {
				sess.mu.Unlock()
				return nil, err
			}
			sess.loaded = true
		}
		sess.lastSeen = s.now()
		return sess, nil
	}
}

func (s *Service) load(ctx context.Context, sess *Session) error {
	sess.cart = cart.New()
	sess.wishlist = wishlist.New()
	sess.checkout = checkout.NewMachine()

	var cs cart.Snapshot
	found, err := s.loadSnapshot(ctx, cartKey(sess.id), &cs)
	if err != nil {
		return err
	}
	if found {
		if err := sess.cart.Restore(cs); err != nil {
			zctx.From(ctx).Warn("Discarding invalid cart snapshot", zap.String("session", sess.id), zap.Error(err))
			sess.cart.Clear()
		}
	}

	var ws wishlist.Snapshot
	found, err = s.loadSnapshot(ctx, wishlistKey(sess.id), &ws)
	if err != nil {
		return err
	}
	if found {
		sess.wishlist.Restore(ws)
	}

	var ms checkout.Snapshot
	found, err = s.loadSnapshot(ctx, checkoutKey(sess.id), &ms)
	if err != nil {
		return err
	}
	if found {
		m, err := checkout.RestoreMachine(ms)
		if err != nil {
			zctx.From(ctx).Warn("Discarding invalid checkout snapshot", zap.String("session", sess.id), zap.Error(err))
			m = checkout.NewMachine()
		}
		sess.checkout = m
	}
	return nil
}

// loadSnapshot decodes the snapshot at key into v. Undecodable snapshots are
// treated as absent.
func (s *Service) loadSnapshot(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.store.Load(ctx, key)
	if errors.Is(err, ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "load %s", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		zctx.From(ctx).Warn("Discarding undecodable snapshot", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// save writes the snapshot through. The in-memory session stays
// authoritative, so failures are logged rather than returned.
func (s *Service) save(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.store.Save(ctx, key, data)
	}
	if err != nil {
		zctx.From(ctx).Warn("Save snapshot failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) saveCart(ctx context.Context, sess *Session) {
	s.save(ctx, cartKey(sess.id), sess.cart.Snapshot())
}

func (s *Service) saveWishlist(ctx context.Context, sess *Session) {
	s.save(ctx, wishlistKey(sess.id), sess.wishlist.Snapshot())
}

func (s *Service) saveCheckout(ctx context.Context, sess *Session) {
	s.save(ctx, checkoutKey(sess.id), sess.checkout.Snapshot())
}

// Len returns the number of sessions held in memory.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
