package pricing

import (
	"fmt"
)

// InvalidDimensionsError reports a dimension that is missing, not a number,
// not positive or out of range. Field is "area" when the dimensions are valid
// on their own but their area cannot be priced.
type InvalidDimensionsError struct {
	Field  string
	Reason string
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MissingSelectionError is returned when a media-priced product is quoted
// without a media choice.
type MissingSelectionError struct {
	Field string
}

func (e *MissingSelectionError) Error() string {
	return fmt.Sprintf("%s selection required", e.Field)
}

// UnknownOptionError is returned when the chosen media is not offered.
type UnknownOptionError struct {
	Option string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown media option %q", e.Option)
}

// InvalidPolicyError reports a misconfigured policy on a catalog product.
type InvalidPolicyError struct {
	Kind   Kind
	Reason string
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid %s policy: %s", e.Kind, e.Reason)
}
