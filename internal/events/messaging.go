package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "ecommerce.events"

	OrderCreatedRoutingKey     = "order.created.v1"
	PaymentSucceededRoutingKey = "payment.succeeded.v1"
	PaymentFailedRoutingKey    = "payment.failed.v1"
	GatewayResultRoutingKey    = "payment.gateway-result.v1"

	mallServiceName = "mall-service"
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

func mallQueueName(routingKey string) string {
	return serviceQueue(mallServiceName, routingKey)
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}
