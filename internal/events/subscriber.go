package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bidhub/auctions/internal/pkg/logger"
)

// Handler processes one decoded event body.
type Handler interface {
	Handle(ctx context.Context, body map[string]interface{}) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, body map[string]interface{}) error

// Handle calls the wrapped function.
func (f HandlerFunc) Handle(ctx context.Context, body map[string]interface{}) error {
	return f(ctx, body)
}

// Subscriber consumes accounts-service events from a durable queue bound to
// the shared direct exchange. Messages are acked only after their handler
// succeeds; unknown event types are dropped without requeue.
type Subscriber struct {
	url      string
	exchange string
	queue    string
	log      *logger.Logger
	handlers map[string]Handler
}

// NewSubscriber creates a subscriber for the given broker URL, exchange and
// queue. Register handlers before calling Run.
func NewSubscriber(url, exchange, queue string) *Subscriber {
	return &Subscriber{
		url:      url,
		exchange: exchange,
		queue:    queue,
		log:      logger.With("events"),
		handlers: make(map[string]Handler),
	}
}

// RegisterHandler binds a handler to an event type. The routing key used for
// the queue binding equals the event type.
func (s *Subscriber) RegisterHandler(eventType string, h Handler) {
	s.handlers[eventType] = h
}

// Run consumes events until the context is canceled or the connection drops.
// Callers own the reconnect policy.
func (s *Subscriber) Run(ctx context.Context) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", s.exchange, err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", s.queue, err)
	}
	for eventType := range s.handlers {
		if err := ch.QueueBind(s.queue, eventType, s.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", s.queue, eventType, err)
		}
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(s.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.queue, err)
	}

	s.log.Info("event subscriber started", "queue", s.queue, "exchange", s.exchange)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			s.dispatch(ctx, d)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, d amqp.Delivery) {
	eventType, _ := d.Headers["event_type"].(string)
	if eventType == "" {
		eventType = d.RoutingKey
	}

	handler, ok := s.handlers[eventType]
	if !ok {
		s.log.Warn("no handler for event type", "event_type", eventType)
		d.Nack(false, false)
		return
	}

	var body map[string]interface{}
	if err := json.Unmarshal(d.Body, &body); err != nil {
		s.log.Error("undecodable event body", "event_type", eventType, "error", err)
		d.Nack(false, false)
		return
	}

	if err := handler.Handle(ctx, body); err != nil {
		s.log.Error("event handler failed", "event_type", eventType, "error", err)
		// Requeue once; the broker redelivers until the handler succeeds.
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}
