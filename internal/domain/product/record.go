package product

import (
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/pricing"
)

// Record is the JSON form of a product in seed files and catalog feeds.
type Record struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Price        decimal.Decimal     `json:"price"`
	ComparePrice decimal.NullDecimal `json:"compare_price"`
	Category     string              `json:"category"`
	Image        Image               `json:"image"`
	Pricing      json.RawMessage     `json:"pricing,omitempty"`
	Stock        *int                `json:"stock,omitempty"`
	Status       string              `json:"status,omitempty"`
}

// DefaultStock is assigned to records that carry no stock level.
const DefaultStock = 100

// Product validates the record and converts it. A missing status means
// active.
func (r Record) Product() (Product, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Product{}, errors.New("product id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return Product{}, errors.Errorf("product %q: name is required", id)
	}
	if r.Price.IsNegative() {
		return Product{}, errors.Errorf("product %q: price must not be negative", id)
	}
	policy, err := pricing.UnmarshalPolicy(r.Pricing)
	if err != nil {
		return Product{}, errors.Wrapf(err, "product %q", id)
	}

	stock := DefaultStock
	if r.Stock != nil {
		stock = max(*r.Stock, 0)
	}
	status := StatusActive
	if r.Status != "" {
		status = ParseStatus(r.Status)
	}
	return Product{
		ID:           id,
		Name:         r.Name,
		Price:        r.Price,
		ComparePrice: r.ComparePrice,
		Category:     r.Category,
		Image:        r.Image,
		Pricing:      policy,
		Stock:        stock,
		Status:       status,
	}, nil
}
