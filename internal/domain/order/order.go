package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/cart"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status of a persisted order. Fulfillment states live outside this service.
type Status string

const StatusConfirmed Status = "confirmed"

// ShippingInfo is the delivery address captured during checkout.
type ShippingInfo struct {
	Name       string `json:"name" validate:"required,max=120"`
	Contact    string `json:"contact" validate:"required,max=32"`
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	Address    string `json:"address" validate:"required,max=500"`
	City       string `json:"city,omitempty" validate:"max=120"`
	State      string `json:"state,omitempty" validate:"max=120"`
	PostalCode string `json:"postal_code,omitempty" validate:"max=16"`
}

// Order is an immutable record of a paid checkout. Lines and Total are copied
// from the frozen payment attempt, never re-derived from the live cart.
type Order struct {
	ID            string
	SessionID     string
	Lines         []cart.Line
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
	PaymentRef    string
	Total         Total
	Status        Status
	CreatedAt     time.Time
}

// ItemCount is the sum of line quantities.
func (o *Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]Order, error)
}

// Publisher announces confirmed orders to downstream fulfillment.
type Publisher interface {
	PublishConfirmed(ctx context.Context, order *Order) error
}
