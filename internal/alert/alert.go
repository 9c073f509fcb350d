package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// DefaultExchange is the exchange block messages are published to.
const DefaultExchange = "blocking_exchange"

// BlockMessage asks downstream blockers to ban a set of IPs for Duration.
type BlockMessage struct {
	IPs      []string `json:"ips"`
	Duration string   `json:"duration"`
}

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends BlockMessages for suspicious IPs.
type Publisher struct {
	conn       *amqp.Connection
	ch         Channel
	exchange   string
	routingKey string
	duration   time.Duration
}

// Dial connects to url and declares a durable fanout exchange.
func Dial(url, exchange, routingKey string, duration time.Duration) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.Info().Str("exchange", exchange).Msg("amqp connected")
	p := NewPublisher(ch, exchange, routingKey, duration)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, exchange, routingKey string, duration time.Duration) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange, routingKey: routingKey, duration: duration}
}

// Publish sends one BlockMessage listing every suspicious IP.
// It returns false without publishing when the list is empty.
func (p *Publisher) Publish(ctx context.Context, suspicious []aggregator.Ranked) (bool, error) {
	if len(suspicious) == 0 {
		return false, nil
	}

	msg := BlockMessage{
		IPs:      make([]string, 0, len(suspicious)),
		Duration: p.duration.String(),
	}
	for _, s := range suspicious {
		msg.IPs = append(msg.IPs, s.Key)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return false, fmt.Errorf("publish block message: %w", err)
	}

	log.Info().Int("ips", len(msg.IPs)).Str("exchange", p.exchange).Msg("block message published")
	return true, nil
}

// Close closes the channel and, when dialed, the connection.
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
