package handler

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/session"
	"github.com/xenking/storefront/internal/domain/wishlist"
)

// money renders amounts with two decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func optionalMoney(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := money(d.Decimal)
	return &s
}

// dimension accepts a JSON number or string so clients can send either
// 40 or "40.5".
type dimension string

func (d *dimension) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = dimension(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = dimension(n.String())
	return nil
}

type imageResponse struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

type productResponse struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Price           string        `json:"price"`
	ComparePrice    *string       `json:"compare_price,omitempty"`
	Category        string        `json:"category"`
	Image           imageResponse `json:"image"`
	Pricing         pricing.Kind  `json:"pricing"`
	NeedsDimensions bool          `json:"needs_dimensions"`
	Media           []string      `json:"media,omitempty"`
	InStock         bool          `json:"in_stock"`
}

// toProductResponse converts a catalog product. Image paths are prefixed
// with the configured imageBaseURL.
func (h *Handler) toProductResponse(p product.Product) productResponse {
	base := h.imageBaseURL
	policy := p.PricingPolicy()
	resp := productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Price:        money(p.Price),
		ComparePrice: optionalMoney(p.ComparePrice),
		Category:     p.Category,
		Image: imageResponse{
			Thumbnail: base + p.Image.Thumbnail,
			Mobile:    base + p.Image.Mobile,
			Tablet:    base + p.Image.Tablet,
			Desktop:   base + p.Image.Desktop,
		},
		Pricing:         policy.Kind(),
		NeedsDimensions: pricing.NeedsDimensions(policy),
		InStock:         p.Sellable(),
	}
	if m, ok := policy.(pricing.PerAreaMedia); ok {
		for _, o := range m.Options {
			resp.Media = append(resp.Media, o.Name)
		}
	}
	return resp
}

type quoteRequest struct {
	Width  dimension `json:"width"`
	Height dimension `json:"height"`
	Media  string    `json:"media"`
}

type quoteResponse struct {
	ProductID   string       `json:"product_id"`
	Kind        pricing.Kind `json:"kind"`
	Price       string       `json:"price"`
	Computed    bool         `json:"computed"`
	AreaUnits   int64        `json:"area_units,omitempty"`
	RollCount   int64        `json:"roll_count,omitempty"`
	Description string       `json:"description"`
	Error       string       `json:"error,omitempty"`
}

func toQuoteResponse(q session.QuoteView) quoteResponse {
	resp := quoteResponse{
		ProductID:   q.ProductID,
		Kind:        q.Kind,
		Price:       money(q.Price),
		Computed:    q.Computed,
		AreaUnits:   q.AreaUnits,
		RollCount:   q.RollCount,
		Description: q.Description,
	}
	if q.Err != nil {
		resp.Error = q.Err.Error()
	}
	return resp
}

type lineResponse struct {
	LineID      string `json:"line_id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	MaxQuantity int    `json:"max_quantity"`
	Subtotal    string `json:"subtotal"`
	Image       string `json:"image,omitempty"`
}

func (h *Handler) toLines(lines []cart.Line) []lineResponse {
	out := make([]lineResponse, len(lines))
	for i, l := range lines {
		out[i] = lineResponse{
			LineID:      l.ProductID,
			ProductID:   session.ProductIDFromLine(l.ProductID),
			Name:        l.DisplayName,
			UnitPrice:   money(l.UnitPrice),
			Quantity:    l.Quantity,
			MaxQuantity: l.MaxQuantity,
			Subtotal:    money(l.Subtotal()),
		}
		if l.ImageRef != "" {
			out[i].Image = h.imageBaseURL + l.ImageRef
		}
	}
	return out
}

type totalResponse struct {
	Subtotal     string `json:"subtotal"`
	ShippingFee  string `json:"shipping_fee"`
	Tax          string `json:"tax"`
	CODSurcharge string `json:"cod_surcharge"`
	GrandTotal   string `json:"grand_total"`
}

func toTotalResponse(t order.Total) totalResponse {
	return totalResponse{
		Subtotal:     money(t.Subtotal),
		ShippingFee:  money(t.ShippingFee),
		Tax:          money(t.TaxAmount),
		CODSurcharge: money(t.CODSurcharge),
		GrandTotal:   money(t.GrandTotal),
	}
}

type cartResponse struct {
	Lines     []lineResponse      `json:"lines"`
	ItemCount int                 `json:"item_count"`
	Method    order.PaymentMethod `json:"payment_method,omitempty"`
	Totals    totalResponse       `json:"totals"`
}

func (h *Handler) toCartResponse(v session.CartView) cartResponse {
	return cartResponse{
		Lines:     h.toLines(v.Lines),
		ItemCount: v.ItemCount,
		Method:    v.Method,
		Totals:    toTotalResponse(v.Total),
	}
}

type addItemRequest struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Width     dimension `json:"width"`
	Height    dimension `json:"height"`
	Media     string    `json:"media"`
}

func (r addItemRequest) toDomain() session.AddItemRequest {
	return session.AddItemRequest{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Width:     string(r.Width),
		Height:    string(r.Height),
		Media:     r.Media,
	}
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type wishlistItemRequest struct {
	ProductID string `json:"product_id"`
}

type wishlistEntryResponse struct {
	ProductID    string    `json:"product_id"`
	Name         string    `json:"name"`
	Price        string    `json:"price"`
	ComparePrice *string   `json:"compare_price,omitempty"`
	Image        string    `json:"image,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

type wishlistResponse struct {
	Items []wishlistEntryResponse `json:"items"`
	Count int                     `json:"count"`
	Added *bool                   `json:"added,omitempty"`
}

func (h *Handler) toWishlistResponse(entries []wishlist.Entry) wishlistResponse {
	items := make([]wishlistEntryResponse, len(entries))
	for i, e := range entries {
		items[i] = wishlistEntryResponse{
			ProductID:    e.ProductID,
			Name:         e.DisplayName,
			Price:        money(e.UnitPrice),
			ComparePrice: optionalMoney(e.ComparePrice),
			AddedAt:      e.AddedAt,
		}
		if e.ImageRef != "" {
			items[i].Image = h.imageBaseURL + e.ImageRef
		}
	}
	return wishlistResponse{Items: items, Count: len(items)}
}

type paymentMethodRequest struct {
	Method string `json:"method"`
}

type checkoutResponse struct {
	State         string              `json:"state"`
	Shipping      *order.ShippingInfo `json:"shipping,omitempty"`
	PaymentMethod order.PaymentMethod `json:"payment_method,omitempty"`
	Totals        totalResponse       `json:"totals"`
	ItemCount     int                 `json:"item_count"`
	OrderID       string              `json:"order_id,omitempty"`
	LastFailure   string              `json:"last_failure,omitempty"`
}

func toCheckoutResponse(v session.CheckoutView) checkoutResponse {
	return checkoutResponse{
		State:         v.State.String(),
		Shipping:      v.Shipping,
		PaymentMethod: v.Method,
		Totals:        toTotalResponse(v.Total),
		ItemCount:     v.ItemCount,
		OrderID:       v.OrderID,
		LastFailure:   v.LastFailure,
	}
}

type orderResponse struct {
	ID            string             `json:"id"`
	Status        order.Status       `json:"status"`
	Lines         []lineResponse     `json:"lines"`
	ItemCount     int                `json:"item_count"`
	Shipping      order.ShippingInfo `json:"shipping"`
	PaymentMethod string             `json:"payment_method"`
	PaymentRef    string             `json:"payment_ref,omitempty"`
	Totals        totalResponse      `json:"totals"`
	CreatedAt     time.Time          `json:"created_at"`
}

func (h *Handler) toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		Status:        o.Status,
		Lines:         h.toLines(o.Lines),
		ItemCount:     o.ItemCount(),
		Shipping:      o.Shipping,
		PaymentMethod: string(o.PaymentMethod),
		PaymentRef:    o.PaymentRef,
		Totals:        toTotalResponse(o.Total),
		CreatedAt:     o.CreatedAt,
	}
}
