// Package kafka announces confirmed orders on a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// DefaultTopic receives one message per confirmed order.
const DefaultTopic = "orders.confirmed"

// OrderConfirmed is the message value, keyed by order id.
type OrderConfirmed struct {
	OrderID       string             `json:"order_id"`
	SessionID     string             `json:"session_id"`
	PaymentMethod string             `json:"payment_method"`
	PaymentRef    string             `json:"payment_ref"`
	GrandTotal    decimal.Decimal    `json:"grand_total"`
	ItemCount     int                `json:"item_count"`
	Items         []OrderedItem      `json:"items"`
	Shipping      order.ShippingInfo `json:"shipping"`
	ConfirmedAt   time.Time          `json:"confirmed_at"`
}

// OrderedItem is one line of a confirmed order.
type OrderedItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher implements order.Publisher on a kafka-go Writer.
type Publisher struct {
	w messageWriter
}

// NewPublisher returns a Publisher writing to topic on brokers. Messages
// with the same order id land on the same partition.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// PublishConfirmed writes an OrderConfirmed message for o.
func (p *Publisher) PublishConfirmed(ctx context.Context, o *order.Order) error {
	value, err := json.Marshal(newOrderConfirmed(o))
	if err != nil {
		return errors.Wrap(err, "marshal order event")
	}
	msg := kafka.Message{
		Key:   []byte(o.ID),
		Value: value,
		Time:  o.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("order.confirmed")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish order %q", o.ID)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func newOrderConfirmed(o *order.Order) OrderConfirmed {
	items := make([]OrderedItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, OrderedItem{
			ProductID: l.ProductID,
			Name:      l.DisplayName,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	return OrderConfirmed{
		OrderID:       o.ID,
		SessionID:     o.SessionID,
		PaymentMethod: string(o.PaymentMethod),
		PaymentRef:    o.PaymentRef,
		GrandTotal:    o.Total.GrandTotal,
		ItemCount:     o.ItemCount(),
		Items:         items,
		Shipping:      o.Shipping,
		ConfirmedAt:   o.CreatedAt,
	}
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

var _ order.Publisher = Nop{}

func (Nop) PublishConfirmed(context.Context, *order.Order) error { return nil }
