package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// PaymentRequest is a single charge against the payment provider.
type PaymentRequest struct {
	AttemptID string
	Method    order.PaymentMethod
	Amount    decimal.Decimal
	Payer     order.ShippingInfo
}

// PaymentResult is the binary outcome of a charge. Reference is set on
// success, Reason on decline.
type PaymentResult struct {
	Success   bool
	Reference string
	Reason    string
}

// Gateway charges customers. An error means the outcome is unknown to the
// caller (transport failure, timeout); declines are reported in the result.
type Gateway interface {
	AttemptPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error)
}

// Voider is implemented by gateways that can reverse a successful charge.
type Voider interface {
	Void(ctx context.Context, reference string) error
}
