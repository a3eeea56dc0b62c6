package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the durable RabbitMQ queue carrying outbound mail.
const QueueName = "mail.outbound"

func declareQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(
		QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}

// =========================================================================
// RELAY (producer side)
// =========================================================================

// AMQPRelay is a Transport that publishes messages to QueueName instead of
// delivering them. A Consumer in another process does the SMTP work.
// The connection is opened lazily and re-opened after a failure.
type AMQPRelay struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ Transport = (*AMQPRelay)(nil)

func NewAMQPRelay(url string, logger *slog.Logger) *AMQPRelay {
	return &AMQPRelay{url: url, logger: logger}
}

func (r *AMQPRelay) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mail: encoding message: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, err := r.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",        // default exchange
		QueueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         string(msg.Kind),
			Body:         body,
		},
	)
	if err != nil {
		r.reset()
		return fmt.Errorf("mail: publishing to %s: %w", QueueName, err)
	}
	return nil
}

// channel returns an open channel, dialing if needed. Callers hold r.mu.
func (r *AMQPRelay) channel() (*amqp.Channel, error) {
	if r.conn != nil && !r.conn.IsClosed() && r.ch != nil && !r.ch.IsClosed() {
		return r.ch, nil
	}
	r.reset()

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return nil, fmt.Errorf("mail: dialing broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("mail: opening channel: %w", err)
	}
	if err := declareQueue(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("mail: declaring queue: %w", err)
	}

	r.logger.Info("connected to mail broker", slog.String("queue", QueueName))
	r.conn, r.ch = conn, ch
	return ch, nil
}

func (r *AMQPRelay) reset() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.conn, r.ch = nil, nil
}

// Close drops the broker connection.
func (r *AMQPRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	return nil
}

// =========================================================================
// CONSUMER
// =========================================================================

// Consumer drains QueueName and delivers every message through a Transport.
// Failed messages are rejected without requeue so a poison message cannot
// spin the loop.
type Consumer struct {
	url         string
	transport   Transport
	sendTimeout time.Duration
	prefetch    int
	logger      *slog.Logger
}

func NewConsumer(url string, t Transport, sendTimeout time.Duration, logger *slog.Logger) *Consumer {
	if sendTimeout <= 0 {
		sendTimeout = DefaultConfig().SendTimeout
	}
	return &Consumer{
		url:         url,
		transport:   t,
		sendTimeout: sendTimeout,
		prefetch:    10,
		logger:      logger,
	}
}

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled. It only returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("mail consumer: dial failed",
				slog.String("error", err.Error()),
				slog.Duration("retryIn", backoff),
			)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = minBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("mail consumer: consume loop ended, reconnecting", slog.String("error", err.Error()))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Warn("mail consumer: set QoS failed", slog.String("error", err.Error()))
	}
	if err := declareQueue(ch); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("mail consumer: waiting for messages", slog.String("queue", QueueName))

	for d := range deliveries {
		if err := c.handle(ctx, d.Body); err != nil {
			c.logger.Error("mail consumer: delivery failed", slog.String("error", err.Error()))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// handle decodes one queued message and sends it.
func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decoding message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	if err := c.transport.Send(sendCtx, msg); err != nil {
		return err
	}
	c.logger.Info("mail consumer: delivered",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", msg.To),
	)
	return nil
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
