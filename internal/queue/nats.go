package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix is prepended to the channel key to form the NATS subject.
const SubjectPrefix = "reservation."

// Subject returns the NATS subject for a channel key.
func Subject(key string) string { return SubjectPrefix + key }

type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

// NATSPublisher publishes core NATS messages.  Delivery is at-most-once,
// which is no weaker than the RabbitMQ path since nothing is retried.
type NATSPublisher struct {
	conn natsConn
}

// NewNATSPublisher connects to url.  The client reconnects on its own.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("reservation-service"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("nats: marshal payload: %w", err)
	}
	if err := p.conn.Publish(Subject(key), body); err != nil {
		return fmt.Errorf("nats: publish %q: %w", key, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
