package session

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/wishlist"
)

func (s *Service) Wishlist(ctx context.Context, sessionID string) ([]wishlist.Entry, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.wishlist.Entries(), nil
}

// AddToWishlist saves a catalog product. Adding a product twice keeps the
// first entry; added reports whether a new entry was stored.
func (s *Service) AddToWishlist(ctx context.Context, sessionID, productID string) (entries []wishlist.Entry, added bool, err error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, false, err
	}

	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	defer sess.mu.Unlock()

	added = sess.wishlist.AddItem(wishlist.Entry{
		ProductID:    p.ID,
		DisplayName:  p.Name,
		UnitPrice:    p.Price,
		ComparePrice: p.ComparePrice,
		ImageRef:     p.Image.Thumbnail,
		AddedAt:      s.now(),
	})
	if added {
		s.saveWishlist(ctx, sess)
	}
	return sess.wishlist.Entries(), added, nil
}

func (s *Service) RemoveFromWishlist(ctx context.Context, sessionID, productID string) ([]wishlist.Entry, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()

	sess.wishlist.RemoveItem(productID)
	s.saveWishlist(ctx, sess)
	return sess.wishlist.Entries(), nil
}

func (s *Service) ClearWishlist(ctx context.Context, sessionID string) error {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer sess.mu.Unlock()

	sess.wishlist.Clear()
	s.saveWishlist(ctx, sess)
	return nil
}

// MoveWishlistToCart adds a saved product to the cart and drops it from the
// wishlist. The wishlist is only changed if the add succeeds. req.ProductID
// is overwritten with productID.
func (s *Service) MoveWishlistToCart(ctx context.Context, sessionID, productID string, req AddItemRequest) (CartView, error) {
	req.ProductID = productID
	if req.Quantity < 0 {
		req.Quantity = 0
	}
	line, err := s.priceLine(ctx, req)
	if err != nil {
		return CartView{}, err
	}

	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	defer sess.mu.Unlock()

	if !sess.wishlist.Contains(productID) {
		return CartView{}, errors.Wrapf(ErrNotInWishlist, "%q", productID)
	}
	if err := sess.cart.AddItem(line); err != nil {
		return CartView{}, err
	}
	sess.wishlist.RemoveItem(productID)
	s.saveCart(ctx, sess)
	s.saveWishlist(ctx, sess)
	return s.cartView(sess, "")
}
