// Package metrics exposes Prometheus collectors for the reservation
// lifecycle and the deadline timers behind it.
//
// All Collector methods are safe on a nil receiver so components can be
// constructed without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics.
type Collector struct {
	reservationsCreated   prometheus.Counter
	reservationsRejected  *prometheus.CounterVec
	reservationsConfirmed prometheus.Counter
	reservationsExpired   *prometheus.CounterVec
	expiryFailures        prometheus.Counter

	timersArmed     prometheus.Counter
	timersFired     prometheus.Counter
	timersCancelled prometheus.Counter
	timersPending   prometheus.Gauge

	notificationsPublished prometheus.Counter
	notificationsFailed    prometheus.Counter

	upstreamLatency *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewCollector creates the collectors and registers them on reg.  A nil
// reg uses a fresh registry, which keeps repeated construction in tests
// from panicking on duplicate registration.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_created_total",
			Help: "Total number of reservations created",
		}),
		reservationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_rejected_total",
			Help: "Total number of reservation requests rejected, by reason",
		}, []string{"reason"}),
		reservationsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_confirmed_total",
			Help: "Total number of reservations confirmed",
		}),
		reservationsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reservation_expired_total",
			Help: "Total number of expiry notifications emitted, by status",
		}, []string{"status"}),
		expiryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_expiry_failures_total",
			Help: "Total number of expiry callbacks that failed before notifying",
		}),
		timersArmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_timers_armed_total",
			Help: "Total number of deadline timers armed",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_timers_fired_total",
			Help: "Total number of deadline timers fired",
		}),
		timersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_timers_cancelled_total",
			Help: "Total number of deadline timers cancelled before firing",
		}),
		timersPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reservation_timers_pending",
			Help: "Current number of armed deadline timers",
		}),
		notificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_notifications_published_total",
			Help: "Total number of notifications handed to the broker",
		}),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reservation_notifications_failed_total",
			Help: "Total number of notifications dropped after a broker error",
		}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reservation_upstream_request_duration_seconds",
			Help:    "Latency of calls to the user and parking-space services",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.reservationsCreated,
		c.reservationsRejected,
		c.reservationsConfirmed,
		c.reservationsExpired,
		c.expiryFailures,
		c.timersArmed,
		c.timersFired,
		c.timersCancelled,
		c.timersPending,
		c.notificationsPublished,
		c.notificationsFailed,
		c.upstreamLatency,
	)
	return c
}

func (c *Collector) RecordCreated() {
	if c == nil {
		return
	}
	c.reservationsCreated.Inc()
}

// RecordRejected counts a failed reservation attempt.  reason is one of
// not_found, forbidden, bad_request or internal.
func (c *Collector) RecordRejected(reason string) {
	if c == nil {
		return
	}
	c.reservationsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordConfirmed() {
	if c == nil {
		return
	}
	c.reservationsConfirmed.Inc()
}

// RecordExpired counts an expiry notification by its status (LATED or BANNED).
func (c *Collector) RecordExpired(status string) {
	if c == nil {
		return
	}
	c.reservationsExpired.WithLabelValues(status).Inc()
}

func (c *Collector) RecordExpiryFailure() {
	if c == nil {
		return
	}
	c.expiryFailures.Inc()
}

func (c *Collector) RecordTimerArmed() {
	if c == nil {
		return
	}
	c.timersArmed.Inc()
	c.timersPending.Inc()
}

func (c *Collector) RecordTimerFired() {
	if c == nil {
		return
	}
	c.timersFired.Inc()
	c.timersPending.Dec()
}

func (c *Collector) RecordTimerCancelled() {
	if c == nil {
		return
	}
	c.timersCancelled.Inc()
	c.timersPending.Dec()
}

func (c *Collector) RecordPublished() {
	if c == nil {
		return
	}
	c.notificationsPublished.Inc()
}

func (c *Collector) RecordPublishFailed() {
	if c == nil {
		return
	}
	c.notificationsFailed.Inc()
}

// ObserveUpstream records one upstream call.  ok is false for transport
// failures and 5xx responses.
func (c *Collector) ObserveUpstream(service string, d time.Duration, ok bool) {
	if c == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.upstreamLatency.WithLabelValues(service, outcome).Observe(d.Seconds())
}

// Handler serves the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
