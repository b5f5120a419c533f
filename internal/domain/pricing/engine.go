package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	// DefaultUnitsPerAreaUnit is the number of square inches in a square foot.
	DefaultUnitsPerAreaUnit = 144
	// MaxDimension bounds a single width or height.
	MaxDimension = 100_000
	// maxDimensionExp bounds the decimal exponent of a dimension in both
	// directions so that products of dimensions stay cheap to compute.
	maxDimensionExp = 18
)

var (
	maxDimension = decimal.NewFromInt(MaxDimension)
	maxInt64     = decimal.NewFromInt(math.MaxInt64)
)

// Dimensions are customer-supplied width and height in the same linear unit.
type Dimensions struct {
	Width  decimal.Decimal
	Height decimal.Decimal
}

// ParseDimensions parses raw width and height input.
func ParseDimensions(width, height string) (Dimensions, error) {
	w, err := parseDimension("width", width)
	if err != nil {
		return Dimensions{}, err
	}
	h, err := parseDimension("height", height)
	if err != nil {
		return Dimensions{}, err
	}
	return Dimensions{Width: w, Height: h}, nil
}

func parseDimension(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, &InvalidDimensionsError{Field: field, Reason: "required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &InvalidDimensionsError{Field: field, Reason: "must be a number"}
	}
	if err := checkDimension(field, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// checkDimension accepts values in (0, MaxDimension]. The exponent is checked
// before any comparison that would rescale the value.
func checkDimension(field string, d decimal.Decimal) error {
	switch {
	case !d.IsPositive():
		return &InvalidDimensionsError{Field: field, Reason: "must be greater than 0"}
	case d.Exponent() > maxDimensionExp:
		return &InvalidDimensionsError{Field: field, Reason: "too large"}
	case d.Exponent() < -maxDimensionExp:
		return &InvalidDimensionsError{Field: field, Reason: "too many decimal places"}
	case d.GreaterThan(maxDimension):
		return &InvalidDimensionsError{Field: field, Reason: "too large"}
	}
	return nil
}

// Validate checks that both dimensions are strictly positive and within
// MaxDimension.
func (d Dimensions) Validate() error {
	if err := checkDimension("width", d.Width); err != nil {
		return err
	}
	return checkDimension("height", d.Height)
}

// Quote is the result of pricing a product for a set of inputs.
type Quote struct {
	Kind       Kind
	Total      decimal.Decimal
	AreaUnits  int64
	RollCount  int64
	Media      string
	Dimensions *Dimensions
}

// Describe decorates a product name with the custom sizing that was priced,
// e.g. `Linen Blind (40 x 90 in, 25 sq ft)`.
func (q Quote) Describe(name string) string {
	if q.Kind == KindStandard || q.Dimensions == nil {
		return name
	}
	parts := []string{
		fmt.Sprintf("%s x %s in", q.Dimensions.Width, q.Dimensions.Height),
		fmt.Sprintf("%d sq ft", q.AreaUnits),
	}
	if q.Media != "" {
		parts = append(parts, q.Media)
	}
	if q.Kind == KindPerRoll {
		parts = append(parts, fmt.Sprintf("%d rolls", q.RollCount))
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(parts, ", "))
}

// Engine prices products. It holds no state besides its unit conversion and
// every call is a pure function of its inputs.
type Engine struct {
	unitsPerAreaUnit decimal.Decimal
}

// NewEngine creates an Engine converting squared linear units to area units
// with the given divisor. Non-positive values fall back to
// DefaultUnitsPerAreaUnit.
func NewEngine(unitsPerAreaUnit decimal.Decimal) *Engine {
	if !unitsPerAreaUnit.IsPositive() {
		unitsPerAreaUnit = decimal.NewFromInt(DefaultUnitsPerAreaUnit)
	}
	return &Engine{unitsPerAreaUnit: unitsPerAreaUnit}
}

// AreaUnits returns ceil(width*height / unitsPerAreaUnit). Partial area units
// are always rounded up since coverage is sold in whole units.
func (e *Engine) AreaUnits(dims Dimensions) (int64, error) {
	if err := dims.Validate(); err != nil {
		return 0, err
	}
	area, ok := ceilDiv(dims.Width.Mul(dims.Height), e.unitsPerAreaUnit)
	if !ok {
		return 0, &InvalidDimensionsError{Field: "area", Reason: "too large"}
	}
	return area, nil
}

// Compute prices a product with the given policy. flatPrice is the product's
// catalog price. dims and media are ignored by the standard policy.
func (e *Engine) Compute(policy Policy, flatPrice decimal.Decimal, dims *Dimensions, media string) (Quote, error) {
	if policy == nil {
		policy = Standard{}
	}
	if flatPrice.IsNegative() {
		return Quote{}, errors.Errorf("negative flat price %s", flatPrice)
	}

	if policy.Kind() == KindStandard {
		return Quote{Kind: KindStandard, Total: flatPrice}, nil
	}

	if dims == nil {
		return Quote{}, &InvalidDimensionsError{Field: "width", Reason: "required"}
	}
	area, err := e.AreaUnits(*dims)
	if err != nil {
		return Quote{}, err
	}
	areaDec := decimal.NewFromInt(area)
	d := *dims

	switch p := policy.(type) {
	case PerAreaFlat:
		return Quote{
			Kind:       KindPerAreaFlat,
			Total:      areaDec.Mul(flatPrice),
			AreaUnits:  area,
			Dimensions: &d,
		}, nil
	case PerAreaMedia:
		if strings.TrimSpace(media) == "" {
			return Quote{}, &MissingSelectionError{Field: "media"}
		}
		opt, ok := p.Option(media)
		if !ok {
			return Quote{}, &UnknownOptionError{Option: media}
		}
		return Quote{
			Kind:       KindPerAreaMedia,
			Total:      areaDec.Mul(opt.PricePerAreaUnit),
			AreaUnits:  area,
			Media:      opt.Name,
			Dimensions: &d,
		}, nil
	case PerRoll:
		if !p.AreaUnitsPerRoll.IsPositive() {
			return Quote{}, &InvalidPolicyError{Kind: KindPerRoll, Reason: "area units per roll must be greater than 0"}
		}
		rolls, ok := ceilDiv(areaDec, p.AreaUnitsPerRoll)
		if !ok {
			return Quote{}, &InvalidDimensionsError{Field: "area", Reason: "too large"}
		}
		return Quote{
			Kind:       KindPerRoll,
			Total:      decimal.NewFromInt(rolls).Mul(flatPrice),
			AreaUnits:  area,
			RollCount:  rolls,
			Dimensions: &d,
		}, nil
	default:
		return Quote{}, &InvalidPolicyError{Kind: policy.Kind(), Reason: "unsupported"}
	}
}

// DisplayPrice returns the computed total, or the flat price as a placeholder
// with computed=false while the inputs are incomplete or invalid.
func (e *Engine) DisplayPrice(policy Policy, flatPrice decimal.Decimal, dims *Dimensions, media string) (price decimal.Decimal, computed bool) {
	q, err := e.Compute(policy, flatPrice, dims, media)
	if err != nil {
		return flatPrice, false
	}
	return q.Total, true
}

// ceilDiv divides two positive decimals and rounds the quotient up. It
// reports false when the result does not fit in an int64.
func ceilDiv(a, b decimal.Decimal) (int64, bool) {
	q, r := a.QuoRem(b, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	if q.GreaterThan(maxInt64) {
		return 0, false
	}
	return q.IntPart(), true
}
