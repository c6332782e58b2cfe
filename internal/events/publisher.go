// Package events publishes order lifecycle events to RabbitMQ for the
// fulfilment and notification consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	domain "github.com/adomherbals/api/internal/domain"
)

const (
	// OrderCreatedQueue receives an event per assembled order.
	OrderCreatedQueue = "order.created"
	// OrderPaidQueue receives an event per settled payment.
	OrderPaidQueue = "order.paid"

	publishTimeout = 3 * time.Second
)

// Publisher emits order lifecycle events. Emission is best-effort from the
// checkout flow's perspective: a broker outage never fails an order.
type Publisher interface {
	OrderCreated(ctx context.Context, order domain.Order) error
	OrderPaid(ctx context.Context, order domain.Order) error
}

// OrderCreatedEvent is the wire shape of an order creation announcement.
type OrderCreatedEvent struct {
	EventType string           `json:"eventType"`
	OrderID   string           `json:"orderId"`
	UserID    string           `json:"userId"`
	Currency  string           `json:"currency"`
	Total     float64          `json:"total"`
	Items     []OrderEventItem `json:"items"`
	Timestamp time.Time        `json:"timestamp"`
}

// OrderEventItem is one order line inside an event payload.
type OrderEventItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrderPaidEvent is the wire shape of a settlement announcement.
type OrderPaidEvent struct {
	EventType        string    `json:"eventType"`
	OrderID          string    `json:"orderId"`
	UserID           string    `json:"userId"`
	PaymentReference string    `json:"paymentReference"`
	Total            float64   `json:"total"`
	Timestamp        time.Time `json:"timestamp"`
}

// AMQPPublisher publishes events over a RabbitMQ channel.
type AMQPPublisher struct {
	ch  *amqp.Channel
	now func() time.Time
}

// NewAMQPPublisher opens a channel and declares the queues so publishing
// never fails on missing broker infrastructure.
func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	for _, queue := range []string{OrderCreatedQueue, OrderPaidQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("events: declare %s: %w", queue, err)
		}
	}
	return &AMQPPublisher{ch: ch, now: time.Now}, nil
}

// Close releases the underlying channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// OrderCreated announces a newly assembled order.
func (p *AMQPPublisher) OrderCreated(ctx context.Context, order domain.Order) error {
	event := OrderCreatedEvent{
		EventType: "OrderCreated",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Currency:  order.Currency,
		Total:     order.Total,
		Timestamp: p.now().UTC(),
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal OrderCreated: %w", err)
	}
	return p.publishJSON(ctx, OrderCreatedQueue, body)
}

// OrderPaid announces settlement of an order's payment.
func (p *AMQPPublisher) OrderPaid(ctx context.Context, order domain.Order) error {
	event := OrderPaidEvent{
		EventType:        "OrderPaid",
		OrderID:          order.ID,
		UserID:           order.UserID,
		PaymentReference: order.PaymentReference,
		Total:            order.Total,
		Timestamp:        p.now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal OrderPaid: %w", err)
	}
	return p.publishJSON(ctx, OrderPaidQueue, body)
}

func (p *AMQPPublisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct{}

// OrderCreated implements Publisher.
func (NoopPublisher) OrderCreated(context.Context, domain.Order) error { return nil }

// OrderPaid implements Publisher.
func (NoopPublisher) OrderPaid(context.Context, domain.Order) error { return nil }
