package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue flags shared by the publisher and the watcher.  A queue redeclared
// with different flags is rejected by the broker, so both sides must agree.
const (
	queueDurable    = false
	queueAutoDelete = false
)

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type amqpConn struct{ *amqp.Connection }

func (c amqpConn) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// AMQPPublisher publishes to RabbitMQ through the default exchange, using
// the channel key as both queue name and routing key.  One connection is
// shared and redialled when the broker drops it; each Publish opens its
// own channel.
type AMQPPublisher struct {
	url  string
	dial func(string) (amqpConnection, error)
	now  func() time.Time

	mu   sync.Mutex
	conn amqpConnection
}

// NewAMQPPublisher dials url and returns a ready publisher.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, dial: dialAMQP, now: time.Now}
	if _, err := p.connection(); err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	return p, nil
}

func (p *AMQPPublisher) connection() (amqpConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn, nil
	}
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

// Publish declares the queue for key if needed and sends payload as JSON.
func (p *AMQPPublisher) Publish(ctx context.Context, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal payload: %w", err)
	}
	conn, err := p.connection()
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(key, queueDurable, queueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare %q: %w", key, err)
	}
	msg := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   p.now().UTC(),
		Body:        body,
	}
	if err := ch.PublishWithContext(ctx, "", key, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %q: %w", key, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}
