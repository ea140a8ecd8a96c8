package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	mu       sync.Mutex
	ch       channel
	seqRepo  SequenceRepository
	producer string
}

func NewPublisher(conn *amqp.Connection, seqRepo SequenceRepository) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seqRepo), nil
}

func newPublisher(ch channel, seqRepo SequenceRepository) *Publisher {
	return &Publisher{ch: ch, seqRepo: seqRepo, producer: mallServiceName}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, o order.Order) error {
	payload := OrderCreatedPayload{
		OrderID:    o.ID,
		Email:      o.Customer.Email,
		Subtotal:   o.Subtotal,
		Discount:   o.Discount,
		Shipping:   o.Shipping,
		Total:      o.Total,
		CouponCode: o.CouponCode,
		CreatedAt:  o.CreatedAt,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, OrderLine{
			ProductID: it.ProductID,
			StoreID:   it.StoreID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	return publishEnveloped(ctx, p, OrderCreatedRoutingKey, EventTypeOrderCreated, orderCreatedSchema, o.ID, payload)
}

func (p *Publisher) PublishPaymentSucceeded(ctx context.Context, pay payment.Payment) error {
	return publishEnveloped(ctx, p, PaymentSucceededRoutingKey, EventTypePaymentSucceeded, paymentSucceededSchema, pay.OrderID, paymentPayload(pay))
}

func (p *Publisher) PublishPaymentFailed(ctx context.Context, pay payment.Payment) error {
	return publishEnveloped(ctx, p, PaymentFailedRoutingKey, EventTypePaymentFailed, paymentFailedSchema, pay.OrderID, paymentPayload(pay))
}

func paymentPayload(pay payment.Payment) PaymentPayload {
	return PaymentPayload{
		PaymentID: pay.ID,
		OrderID:   pay.OrderID,
		Method:    string(pay.Method),
		Amount:    pay.Amount,
		Status:    string(pay.Status),
		Reason:    pay.FailureReason,
		Timestamp: time.Now().UTC(),
	}
}

// publishEnveloped wraps payload in an envelope partitioned by order id.
func publishEnveloped[T any](ctx context.Context, p *Publisher, routingKey, name, schema, partitionKey string, payload T) error {
	seq, err := p.seqRepo.NextSequence(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := newEnvelope(ctx, name, schema, p.producer, partitionKey, &seq, payload)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", name, err)
	}

	return p.publishJSON(ctx, routingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
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

// NopPublisher drops every event. Used when publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(ctx context.Context, o order.Order) error         { return nil }
func (NopPublisher) PublishPaymentSucceeded(ctx context.Context, p payment.Payment) error { return nil }
func (NopPublisher) PublishPaymentFailed(ctx context.Context, p payment.Payment) error    { return nil }
