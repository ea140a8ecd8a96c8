package events

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one message body. A returned error NACKs the message
// without requeue.
type HandlerFunc func(ctx context.Context, body []byte) error

// StartConsumer binds a durable service queue to routingKey on the events
// exchange and dispatches deliveries to handler until ctx is done.
func StartConsumer(ctx context.Context, conn *amqp.Connection, routingKey string, handler HandlerFunc, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}

	queue := mallQueueName(routingKey)
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(queue, routingKey, EventsExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		mallServiceName, // consumer tag
		false,           // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Printf("stopping %s consumer", routingKey)
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Printf("%s: messages channel closed", routingKey)
					return
				}
				dispatch(ctx, msg, handler, logger)
			}
		}
	}()

	return nil
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func dispatch(ctx context.Context, msg amqp.Delivery, handler HandlerFunc, logger *log.Logger) {
	handle(ctx, msg, msg.Body, msg.RoutingKey, handler, logger)
}

func handle(ctx context.Context, d acknowledger, body []byte, routingKey string, handler HandlerFunc, logger *log.Logger) {
	if err := handler(ctx, body); err != nil {
		logger.Printf("%s: handle message: %v", routingKey, err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
