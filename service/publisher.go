package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finamily/config"
	"finamily/importer"

	"github.com/rabbitmq/amqp091-go"
)

// EventImportCompleted type header of import events
const EventImportCompleted = "transactions.imported"

const publishTimeout = 5 * time.Second

// Publisher sends import events to a topic exchange so other services
// (gamification, dashboards) can react to new transactions.
type Publisher struct {
	mu         sync.Mutex
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	routingKey string
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:       conn,
		channel:    channel,
		exchange:   cfg.Exchange,
		routingKey: routingKeyOrDefault(cfg.RoutingKey),
	}, nil
}

func routingKeyOrDefault(key string) string {
	if key == "" {
		return EventImportCompleted
	}
	return key
}

// PublishImportCompleted publishes ev as a persistent JSON message.
func (p *Publisher) PublishImportCompleted(ctx context.Context, ev importer.CompletedEvent) error {
	msg, err := importCompletedMessage(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.InfoContext(ctx, "published import event",
		"user_id", ev.UserID,
		"imported", ev.Imported,
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

func importCompletedMessage(ev importer.CompletedEvent) (amqp091.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Type:         EventImportCompleted,
		Timestamp:    ev.FinishedAt,
		Body:         body,
	}, nil
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
