package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ride-relay/internal/models"
)

// NotifyBindingKey routes trip-lifecycle notifications to the relay queue.
const NotifyBindingKey = "notify.#"

const handlerTimeout = 10 * time.Second

// DeliveryHandler processes one delivery. A returned error drops the message.
type DeliveryHandler func(ctx context.Context, d amqp.Delivery) error

// Consumer reads targeted notifications from a durable queue.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
}

// NewConsumer declares the exchange, the queue and its binding.
func NewConsumer(amqpURL, exchange, queue string, prefetch int) (*Consumer, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	cleanup := func(err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := declareExchange(ch, exchange); err != nil {
		return cleanup(fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return cleanup(fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err))
	}
	if err := ch.QueueBind(queue, NotifyBindingKey, exchange, false, nil); err != nil {
		return cleanup(fmt.Errorf("rabbitmq: bind queue %s: %w", queue, err))
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return cleanup(fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err))
	}

	log.Printf("rabbitmq consumer ready exchange=%s queue=%s", exchange, queue)
	return &Consumer{conn: conn, ch: ch, queue: queue, prefetch: prefetch}, nil
}

// Run consumes with manual acks until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context, consumerTag string, handler DeliveryHandler) error {
	deliveries, err := c.ch.Consume(
		c.queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", c.queue, err)
	}

	closed := c.ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = c.ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-closed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", c.queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
			err := handler(hCtx, d)
			cancel()

			if err != nil {
				log.Printf("rabbitmq: dropping delivery routing_key=%s: %v", d.RoutingKey, err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// NotificationHandler decodes notification deliveries and passes them to notify.
// Offline targets are acknowledged; only undecodable or malformed commands fail.
func NotificationHandler(notify func(context.Context, models.Notification) (bool, error)) DeliveryHandler {
	return func(ctx context.Context, d amqp.Delivery) error {
		var n models.Notification
		if err := json.Unmarshal(d.Body, &n); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		delivered, err := notify(ctx, n)
		if err != nil {
			return err
		}
		if !delivered {
			log.Printf("rabbitmq: notification target offline event=%s participant=%s:%s", n.Event, n.ParticipantKind, n.ParticipantID)
		}
		return nil
	}
}
