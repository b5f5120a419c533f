package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Status controls whether a product can be sold.
type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// ParseStatus maps stored values to a Status, treating unknown values as draft.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusActive, StatusArchived:
		return Status(s)
	default:
		return StatusDraft
	}
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID           string
	Name         string
	Price        decimal.Decimal
	ComparePrice decimal.NullDecimal
	Category     string
	Image        Image
	Pricing      pricing.Policy
	Stock        int
	Status       Status
}

// Sellable reports whether the product may be added to a cart.
func (p *Product) Sellable() bool {
	return p.Status == StatusActive && p.Stock > 0
}

// PricingPolicy returns the product's policy, defaulting to flat pricing.
func (p *Product) PricingPolicy() pricing.Policy {
	if p.Pricing == nil {
		return pricing.Standard{}
	}
	return p.Pricing
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string `json:"thumbnail"`
	Mobile    string `json:"mobile"`
	Tablet    string `json:"tablet"`
	Desktop   string `json:"desktop"`
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// Writer loads products into the catalog. Only the catalog tools use it.
type Writer interface {
	Upsert(ctx context.Context, p Product) error
}
