package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	TopicOrderEvents = "order-events"
	TypeOrderCreated = "order.created"
)

// OrderCreated is emitted once the catalog API has stored an order.
type OrderCreated struct {
	EventID       string    `json:"eventId"`
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId,omitempty"`
	Email         string    `json:"email,omitempty"`
	ProductID     string    `json:"productId"`
	Quantity      any       `json:"quantity"`
	Total         any       `json:"total,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *slog.Logger
}

func NewPublisher(log *slog.Logger, brokers ...string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicOrderEvents,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, timeout: 5 * time.Second, log: log}
}

// NewOrderCreated builds the event from a stored order document.
func NewOrderCreated(orderID string, doc map[string]any) OrderCreated {
	str := func(k string) string {
		s, _ := doc[k].(string)
		return s
	}
	return OrderCreated{
		EventID:       uuid.NewString(),
		OrderID:       orderID,
		UserID:        str("userId"),
		Email:         str("email"),
		ProductID:     str("productId"),
		Quantity:      doc["quantity"],
		Total:         doc["total"],
		TransactionID: str("transactionId"),
		OccurredAt:    time.Now().UTC(),
	}
}

func buildMessage(ev OrderCreated) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", TypeOrderCreated, err)
	}
	return kafka.Message{
		Key:   []byte(ev.OrderID), // order id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeOrderCreated)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}, nil
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, ev OrderCreated) error {
	msg, err := buildMessage(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", TypeOrderCreated, ev.OrderID, err)
	}
	p.log.DebugContext(ctx, "event published", "type", TypeOrderCreated, "order_id", ev.OrderID, "event_id", ev.EventID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
