package pricing

import (
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

type policyJSON struct {
	Kind             Kind              `json:"kind"`
	Media            []mediaOptionJSON `json:"media,omitempty"`
	AreaUnitsPerRoll *decimal.Decimal  `json:"area_units_per_roll,omitempty"`
}

type mediaOptionJSON struct {
	Name             string          `json:"name"`
	PricePerAreaUnit decimal.Decimal `json:"price_per_area_unit"`
}

// MarshalPolicy encodes a policy for storage alongside a catalog product.
func MarshalPolicy(p Policy) ([]byte, error) {
	if p == nil {
		p = Standard{}
	}
	out := policyJSON{Kind: p.Kind()}
	switch v := p.(type) {
	case PerAreaMedia:
		out.Media = make([]mediaOptionJSON, len(v.Options))
		for i, o := range v.Options {
			out.Media[i] = mediaOptionJSON{Name: o.Name, PricePerAreaUnit: o.PricePerAreaUnit}
		}
	case PerRoll:
		perRoll := v.AreaUnitsPerRoll
		out.AreaUnitsPerRoll = &perRoll
	}
	return json.Marshal(out)
}

// UnmarshalPolicy decodes a stored policy. Empty input decodes to Standard.
func UnmarshalPolicy(data []byte) (Policy, error) {
	if len(data) == 0 || string(data) == "null" {
		return Standard{}, nil
	}
	var in policyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "decode pricing policy")
	}
	return in.policy()
}

func (in policyJSON) policy() (Policy, error) {
	switch in.Kind {
	case "", KindStandard:
		return Standard{}, nil
	case KindPerAreaFlat:
		return PerAreaFlat{}, nil
	case KindPerAreaMedia:
		if len(in.Media) == 0 {
			return nil, &InvalidPolicyError{Kind: in.Kind, Reason: "no media options"}
		}
		opts := make([]MediaOption, len(in.Media))
		for i, o := range in.Media {
			if o.Name == "" || o.PricePerAreaUnit.IsNegative() {
				return nil, &InvalidPolicyError{Kind: in.Kind, Reason: "media options need a name and a non-negative price"}
			}
			opts[i] = MediaOption{Name: o.Name, PricePerAreaUnit: o.PricePerAreaUnit}
		}
		return PerAreaMedia{Options: opts}, nil
	case KindPerRoll:
		if in.AreaUnitsPerRoll == nil || !in.AreaUnitsPerRoll.IsPositive() {
			return nil, &InvalidPolicyError{Kind: in.Kind, Reason: "area units per roll must be greater than 0"}
		}
		return PerRoll{AreaUnitsPerRoll: *in.AreaUnitsPerRoll}, nil
	default:
		return nil, &InvalidPolicyError{Kind: in.Kind, Reason: "unsupported"}
	}
}
