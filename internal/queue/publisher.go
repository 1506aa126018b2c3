package queue

import (
	"context"
	"sync"
	"time"

	"github.com/Jinnapat/jod-rod-matching-service/internal/logger"
	"github.com/Jinnapat/jod-rod-matching-service/internal/metrics"
)

// Publisher delivers a JSON-serialisable payload to the channel named by
// key.  Implementations may declare the channel on first use.
type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

// AsyncPublisher makes any Publisher fire-and-forget: Publish returns
// immediately and delivery happens on its own goroutine.  Delivery errors
// are logged and counted, never returned, so a broker outage cannot fail a
// reservation or confirmation request.  There is no retry.
type AsyncPublisher struct {
	next    Publisher
	metrics *metrics.Collector
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncPublisher wraps next.  timeout bounds each delivery attempt.
func NewAsyncPublisher(next Publisher, m *metrics.Collector, timeout time.Duration) *AsyncPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AsyncPublisher{next: next, metrics: m, timeout: timeout}
}

// Publish schedules delivery and always returns nil.  The request context's
// values are kept for logging but its cancellation is not, so a finished
// HTTP request does not abort delivery.
func (a *AsyncPublisher) Publish(ctx context.Context, key string, payload any) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Publish(pctx, key, payload); err != nil {
			a.metrics.RecordPublishFailed()
			logger.WarnContext(ctx, "notification dropped", "channel", key, "error", err)
			return
		}
		a.metrics.RecordPublished()
	}()
	return nil
}

// Flush blocks until every delivery started so far has finished.
func (a *AsyncPublisher) Flush() { a.wg.Wait() }

// Close flushes outstanding deliveries and closes the wrapped publisher.
func (a *AsyncPublisher) Close() error {
	a.Flush()
	return a.next.Close()
}
