package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"photobridge/internal/domain/ports/adapter"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var _ adapter.EventPublisher = (*AMQPPublisher)(nil)

// AMQPPublisher writes job lifecycle events to a durable queue on the default
// exchange, waiting for the broker confirm on each message. A dropped
// connection is redialed on the next Publish, at most once per redialEvery.
type AMQPPublisher struct {
	mu          sync.Mutex
	url         string
	dial        func(url string) (*amqp.Connection, error)
	conn        *amqp.Connection
	channel     *amqp.Channel
	queue       string
	timeout     time.Duration
	redialEvery time.Duration
	lastDial    time.Time
	log         *zerolog.Logger
}

func NewAMQPPublisher(url, queue string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		url:         url,
		dial:        amqp.Dial,
		queue:       queue,
		timeout:     5 * time.Second,
		redialEvery: 5 * time.Second,
		log:         logger,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials and prepares a confirming channel. Callers hold p.mu.
func (p *AMQPPublisher) connect() error {
	p.lastDial = time.Now()
	conn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to enable publish confirmations: %w", err)
	}

	if _, err := channel.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // arguments
	); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	p.conn, p.channel = conn, channel
	return nil
}

// ensureChannel redials when the broker dropped the connection or channel.
// Callers hold p.mu.
func (p *AMQPPublisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	if since := time.Since(p.lastDial); since < p.redialEvery {
		return fmt.Errorf("amqp connection down, next redial in %s", (p.redialEvery - since).Round(time.Millisecond))
	}
	p.closeLocked()
	if err := p.connect(); err != nil {
		p.log.Warn().Err(err).Msg("amqp redial failed")
		return err
	}
	p.log.Info().Str("queue", p.queue).Msg("amqp connection re-established")
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev adapter.JobEvent) error {
	body, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    ev.ID,
			Type:         string(ev.Type),
			Timestamp:    ev.At,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("wait publish confirmation: %w", err)
	}
	if !acked {
		return errors.New("broker nacked job event")
	}
	return nil
}

func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func encodeEvent(ev adapter.JobEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return b, nil
}
