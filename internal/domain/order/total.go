package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	MethodCard       PaymentMethod = "card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetBanking PaymentMethod = "netbanking"
	MethodCOD        PaymentMethod = "cod"
)

// Methods lists every supported payment method.
var Methods = []PaymentMethod{MethodCard, MethodUPI, MethodNetBanking, MethodCOD}

// ErrUnknownMethod is returned for payment methods outside Methods.
var ErrUnknownMethod = errors.New("unknown payment method")

// ParsePaymentMethod normalizes user input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Methods {
		if m == known {
			return m, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownMethod, "%q", s)
}

// ErrNegativeSubtotal guards the calculator against corrupted input.
var ErrNegativeSubtotal = errors.New("subtotal must not be negative")

// ConfigurationError reports a selection the store policy does not allow.
// The customer has to choose differently; retrying is pointless.
type ConfigurationError struct {
	Method PaymentMethod
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("payment method %s unavailable: %s", e.Method, e.Reason)
}

// Policy is the store configuration for shipping, tax and surcharges.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	StandardShippingFee   decimal.Decimal
	TaxEnabled            bool
	TaxRate               decimal.Decimal
	CODEnabled            bool
	CODFee                decimal.Decimal
}

// DefaultPolicy: free shipping above 500, otherwise 50; 18% tax; COD for 25.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		StandardShippingFee:   decimal.NewFromInt(50),
		TaxEnabled:            true,
		TaxRate:               decimal.RequireFromString("0.18"),
		CODEnabled:            true,
		CODFee:                decimal.NewFromInt(25),
	}
}

// Allows reports whether the method can be selected under this policy.
func (p Policy) Allows(m PaymentMethod) error {
	if m == MethodCOD && !p.CODEnabled {
		return &ConfigurationError{Method: m, Reason: "cash on delivery is disabled"}
	}
	return nil
}

// Total is the payable breakdown of a cart.
type Total struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	CODSurcharge decimal.Decimal `json:"cod_surcharge"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

// ComputeTotal derives shipping, tax and surcharge for a subtotal. An empty
// method is allowed and prices the order without a surcharge.
func ComputeTotal(subtotal decimal.Decimal, method PaymentMethod, p Policy) (Total, error) {
	if subtotal.IsNegative() {
		return Total{}, ErrNegativeSubtotal
	}
	if err := p.Allows(method); err != nil {
		return Total{}, err
	}

	t := Total{
		Subtotal:     subtotal,
		ShippingFee:  p.StandardShippingFee,
		TaxAmount:    decimal.Zero,
		CODSurcharge: decimal.Zero,
	}
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		t.ShippingFee = decimal.Zero
	}
	if p.TaxEnabled {
		// Round rounds half away from zero, which is half-up for a
		// non-negative amount.
		t.TaxAmount = subtotal.Mul(p.TaxRate).Round(0)
	}
	if method == MethodCOD {
		t.CODSurcharge = p.CODFee
	}
	t.GrandTotal = t.Subtotal.Add(t.ShippingFee).Add(t.TaxAmount).Add(t.CODSurcharge)
	return t, nil
}
