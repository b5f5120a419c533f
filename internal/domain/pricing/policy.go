// Package pricing computes prices for products sold by coverage area or by
// roll, from customer-supplied dimensions.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Kind identifies a custom pricing policy.
type Kind string

const (
	// KindStandard sells the product at its flat price.
	KindStandard Kind = "standard"
	// KindPerAreaMedia charges per area unit at the price of the chosen media.
	KindPerAreaMedia Kind = "per_area_media"
	// KindPerAreaFlat charges the flat price once per area unit.
	KindPerAreaFlat Kind = "per_area_flat"
	// KindPerRoll charges the flat price once per roll needed to cover the area.
	KindPerRoll Kind = "per_roll"
)

// Policy is a closed set of pricing strategies attached to a product.
// Only the types in this package implement it.
type Policy interface {
	Kind() Kind
	policy()
}

// Standard ignores dimensions entirely.
type Standard struct{}

// PerAreaFlat is used for products like blinds, priced per area unit.
type PerAreaFlat struct{}

// PerAreaMedia is used for products like printed wallpaper where the customer
// picks a media and pays its per-area-unit price.
type PerAreaMedia struct {
	Options []MediaOption
}

// MediaOption is one selectable media and its price per area unit.
type MediaOption struct {
	Name             string
	PricePerAreaUnit decimal.Decimal
}

// PerRoll is used for regular wallpaper sold by the roll.
type PerRoll struct {
	AreaUnitsPerRoll decimal.Decimal
}

func (Standard) Kind() Kind     { return KindStandard }
func (PerAreaFlat) Kind() Kind  { return KindPerAreaFlat }
func (PerAreaMedia) Kind() Kind { return KindPerAreaMedia }
func (PerRoll) Kind() Kind      { return KindPerRoll }

func (Standard) policy()     {}
func (PerAreaFlat) policy()  {}
func (PerAreaMedia) policy() {}
func (PerRoll) policy()      {}

// Option returns the media option with the given name.
func (p PerAreaMedia) Option(name string) (MediaOption, bool) {
	for _, o := range p.Options {
		if o.Name == name {
			return o, true
		}
	}
	return MediaOption{}, false
}

// NeedsDimensions reports whether the policy prices by customer dimensions.
func NeedsDimensions(p Policy) bool {
	if p == nil {
		return false
	}
	return p.Kind() != KindStandard
}
