package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/order"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// ValidateShipping trims the form and checks required fields. It returns the
// normalized info.
func ValidateShipping(info order.ShippingInfo) (order.ShippingInfo, error) {
	info = order.ShippingInfo{
		Name:       strings.TrimSpace(info.Name),
		Contact:    strings.TrimSpace(info.Contact),
		Email:      strings.TrimSpace(info.Email),
		Address:    strings.TrimSpace(info.Address),
		City:       strings.TrimSpace(info.City),
		State:      strings.TrimSpace(info.State),
		PostalCode: strings.TrimSpace(info.PostalCode),
	}
	if err := validate.Struct(info); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return info, errors.Wrap(err, "validate shipping")
		}
		out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
		for _, fe := range fieldErrs {
			out.Fields[fe.Field()] = validationMessage(fe)
		}
		return info, out
	}
	return info, nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
