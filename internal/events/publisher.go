package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bidhub/auctions/internal/pkg/logger"
)

// Event types this service emits.
const (
	EventAuctionCompleted = "auction.completed"
	EventWinnerDeclared   = "winner.declared"
)

// Publisher emits auction events to a durable direct exchange. Connection
// loss is handled by reconnecting on the next publish.
type Publisher struct {
	url      string
	exchange string
	log      *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher creates a publisher for the given broker URL and exchange.
// The connection is established lazily on first publish.
func NewPublisher(url, exchange string) *Publisher {
	return &Publisher{url: url, exchange: exchange, log: logger.With("events")}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Publish sends one event. The event type travels in a header, matching the
// accounts-service convention, and the routing key equals the event type.
func (p *Publisher) Publish(ctx context.Context, eventType string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{"event_type": eventType},
		Body:         data,
	})
	if err != nil {
		// Drop the broken channel so the next publish reconnects.
		p.conn.Close()
		p.conn, p.ch = nil, nil
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	p.log.Debug("event published", "event_type", eventType)
	return nil
}

// Close tears down the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
