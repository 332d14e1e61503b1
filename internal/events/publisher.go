// Package events publishes transaction mutation notifications to an AMQP
// exchange so companion automation (budget alerts, sync jobs) can react.
// Publishing is optional and best-effort: the client works identically with
// no broker configured.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/log"
)

// reconnectAttempts bounds the re-dial tries after a dropped connection.
const reconnectAttempts = 3

// Publisher owns one AMQP connection and channel. Safe for concurrent use;
// publishes are serialized.
type Publisher struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger
}

// NewPublisher connects to the broker and declares the exchange and queue.
func NewPublisher(url, exchangeName, queueName string, logger *log.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p := &Publisher{
		conn:         conn,
		channel:      channel,
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentEvents),
	}

	if err := p.setup(queueName); err != nil {
		p.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return p, nil
}

func (p *Publisher) setup(queueName string) error {
	err := p.channel.ExchangeDeclare(
		p.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = p.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = p.channel.QueueBind(
		queueName,      // queue name
		queueName,      // routing key (same as queue name for direct exchange)
		p.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionEvent publishes one mutation notification. A publish that
// fails because the broker connection dropped triggers one reconnect cycle
// and a single retry.
func (p *Publisher) PublishTransactionEvent(ctx context.Context, ev TransactionEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, body)
	if err != nil && isConnectionError(err) {
		p.logger.WarnContext(ctx, "Broker connection lost, reconnecting",
			log.FieldError, err)
		if rerr := p.reconnectLocked(ctx, reconnectAttempts); rerr != nil {
			return fmt.Errorf("publish event: %w", err)
		}
		err = p.publishLocked(ctx, body)
	}
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	p.logger.InfoContext(ctx, "Published transaction event",
		log.FieldOperation, ev.Action,
		"transaction_id", ev.ID,
		"exchange", p.exchangeName)

	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, body []byte) error {
	return p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		p.queueName,    // routing key (same as queue name for direct exchange)
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// exponentialBackoff returns reconnect delays: 1s, 2s, 4s... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= 30*time.Second {
			return 30 * time.Second
		}
	}
	return d
}

// isConnectionError reports whether an error looks like a dropped broker
// connection worth a reconnect attempt.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, probe := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, probe) {
			return true
		}
	}
	return false
}

// reconnectLocked re-dials the broker with exponential backoff, up to
// maxAttempts. Caller holds p.mu.
func (p *Publisher) reconnectLocked(ctx context.Context, maxAttempts int) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(exponentialBackoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		conn, err := amqp091.Dial(p.url)
		if err != nil {
			lastErr = err
			continue
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			lastErr = err
			continue
		}

		p.closeLocked()
		p.conn = conn
		p.channel = channel
		if err := p.setup(p.queueName); err != nil {
			p.closeLocked()
			p.conn, p.channel = nil, nil
			lastErr = err
			continue
		}

		p.logger.InfoContext(ctx, "Reconnected to AMQP broker", "attempts", attempt+1)
		return nil
	}
	return fmt.Errorf("reconnect after %d attempts: %w", maxAttempts, lastErr)
}
