package session

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// AddItemRequest describes a product to put in the cart. Width, Height and
// Media are only read for custom-priced products.
type AddItemRequest struct {
	ProductID string
	Quantity  int
	Width     string
	Height    string
	Media     string
}

// CartView is a read-only rendering of a cart with its totals preview.
type CartView struct {
	Lines     []cart.Line
	ItemCount int
	Total     order.Total
	Method    order.PaymentMethod
}

// Cart returns the session cart priced for method. An empty method uses the
// method selected in checkout, if any.
func (s *Service) Cart(ctx context.Context, sessionID string, method order.PaymentMethod) (CartView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	defer sess.mu.Unlock()
	return s.cartView(sess, method)
}

func (s *Service) cartView(sess *Session, method order.PaymentMethod) (CartView, error) {
	if method == "" {
		method = sess.checkout.Method()
	}
	total, err := order.ComputeTotal(sess.cart.TotalPrice(), method, s.payments.Policy())
	if err != nil {
		return CartView{}, err
	}
	return CartView{
		Lines:     sess.cart.Lines(),
		ItemCount: sess.cart.TotalItemCount(),
		Total:     total,
		Method:    method,
	}, nil
}

// AddToCart prices the product and merges it into the cart.
func (s *Service) AddToCart(ctx context.Context, sessionID string, req AddItemRequest) (CartView, error) {
	if req.Quantity < 0 {
		return CartView{}, cart.ErrInvalidQuantity
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

	if err := sess.cart.AddItem(line); err != nil {
		return CartView{}, err
	}
	s.saveCart(ctx, sess)
	return s.cartView(sess, "")
}

// priceLine builds a cart line for a sellable product. Custom-priced
// products get a line id derived from their inputs so that different sizes
// stay separate lines.
func (s *Service) priceLine(ctx context.Context, req AddItemRequest) (cart.Line, error) {
	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return cart.Line{}, err
	}
	if p.Status != product.StatusActive {
		return cart.Line{}, ErrUnavailable
	}
	if p.Stock <= 0 {
		return cart.Line{}, ErrOutOfStock
	}

	line := cart.Line{
		ProductID:   p.ID,
		DisplayName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    req.Quantity,
		MaxQuantity: min(s.maxQty, p.Stock),
		ImageRef:    p.Image.Thumbnail,
	}

	policy := p.PricingPolicy()
	if !pricing.NeedsDimensions(policy) {
		return line, nil
	}

	dims, err := pricing.ParseDimensions(req.Width, req.Height)
	if err != nil {
		return cart.Line{}, err
	}
	q, err := s.engine.Compute(policy, p.Price, &dims, req.Media)
	if err != nil {
		return cart.Line{}, err
	}
	line.ProductID = LineID(p.ID, dims, q.Media)
	line.DisplayName = q.Describe(p.Name)
	line.UnitPrice = q.Total
	return line, nil
}

// LineID is the cart line id of a custom-sized product.
func LineID(productID string, dims pricing.Dimensions, media string) string {
	var b strings.Builder
	b.WriteString(productID)
	b.WriteByte('@')
	b.WriteString(dims.Width.String())
	b.WriteByte('x')
	b.WriteString(dims.Height.String())
	if media != "" {
		b.WriteByte(':')
		b.WriteString(media)
	}
	return b.String()
}

// ProductIDFromLine returns the catalog product id of a cart line id.
func ProductIDFromLine(lineID string) string {
	if i := strings.IndexByte(lineID, '@'); i >= 0 {
		return lineID[:i]
	}
	return lineID
}

// SetCartQuantity replaces the quantity of a line. Non-positive quantities
// remove it.
func (s *Service) SetCartQuantity(ctx context.Context, sessionID, lineID string, quantity int) (CartView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	defer sess.mu.Unlock()

	if !sess.cart.SetQuantity(lineID, quantity) {
		return CartView{}, errors.Wrapf(ErrLineNotFound, "%q", lineID)
	}
	s.saveCart(ctx, sess)
	return s.cartView(sess, "")
}

// RemoveFromCart deletes a line. Unknown lines are ignored.
func (s *Service) RemoveFromCart(ctx context.Context, sessionID, lineID string) (CartView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	defer sess.mu.Unlock()

	sess.cart.RemoveItem(lineID)
	s.saveCart(ctx, sess)
	return s.cartView(sess, "")
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (CartView, error) {
	sess, err := s.acquire(ctx, sessionID)
	if err != nil {
		return CartView{}, err
	}
	defer sess.mu.Unlock()

	sess.cart.Clear()
	s.saveCart(ctx, sess)
	return s.cartView(sess, "")
}

// QuoteView is a price preview for a product and a set of inputs.
type QuoteView struct {
	ProductID string
	Kind      pricing.Kind
	// Price is the computed total when Computed is set, otherwise the flat
	// catalog price shown as a placeholder.
	Price       decimal.Decimal
	Computed    bool
	AreaUnits   int64
	RollCount   int64
	Description string
	// Err explains why the inputs could not be priced.
	Err error
}

// Quote prices a product without touching any session.
func (s *Service) Quote(ctx context.Context, productID, width, height, media string) (QuoteView, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return QuoteView{}, err
	}
	policy := p.PricingPolicy()
	view := QuoteView{
		ProductID:   p.ID,
		Kind:        policy.Kind(),
		Price:       p.Price,
		Description: p.Name,
	}

	var dims *pricing.Dimensions
	if pricing.NeedsDimensions(policy) {
		d, err := pricing.ParseDimensions(width, height)
		if err != nil {
			view.Err = err
			return view, nil
		}
		dims = &d
	}
	q, err := s.engine.Compute(policy, p.Price, dims, media)
	if err != nil {
		view.Err = err
		return view, nil
	}
	view.Price = q.Total
	view.Computed = true
	view.AreaUnits = q.AreaUnits
	view.RollCount = q.RollCount
	view.Description = q.Describe(p.Name)
	return view, nil
}
