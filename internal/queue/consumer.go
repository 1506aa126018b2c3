package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
)

// Handler processes one decoded event.  A returned error rejects the
// message without requeueing it.
type Handler func(ReservationEvent) error

// WatchAMQP consumes the queue named key until ctx is cancelled, redialling
// with exponential backoff when the broker goes away.
func WatchAMQP(ctx context.Context, url, key string, handle Handler) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("watch: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeAMQP(ctx, conn, key, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("watch: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeAMQP(ctx context.Context, conn *amqp.Connection, key string, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("watch: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(key, queueDurable, queueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(key, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := dispatch(d.Body, handle); err != nil {
				logger.Warn("watch: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// WatchNATS subscribes to the subject for key until ctx is cancelled.
func WatchNATS(ctx context.Context, url, key string, handle Handler) error {
	nc, err := nats.Connect(url, nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("nats: connect: %w", err)
	}
	defer nc.Close()

	sub, err := nc.Subscribe(Subject(key), func(m *nats.Msg) {
		if err := dispatch(m.Data, handle); err != nil {
			logger.Warn("watch: handle message failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats: subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return ctx.Err()
}

func dispatch(body []byte, handle Handler) error {
	ev, err := DecodeEvent(body)
	if err != nil {
		return err
	}
	return handle(ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
