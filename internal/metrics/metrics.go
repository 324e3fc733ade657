// Package metrics records client activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of observations the session makes while running.
type Recorder interface {
	RecordRequest(endpoint string, statusCode int, duration time.Duration)
	RecordExchange(mode string, ok bool)
	RecordPoll(kind string, ok bool)
	RecordEvent(kind string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	exchanges      *prometheus.CounterVec
	polls          *prometheus.CounterVec
	events         *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruqqus_requests_total",
			Help: "API responses by endpoint and status code.",
		}, []string{"endpoint", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ruqqus_request_latency_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruqqus_token_exchanges_total",
			Help: "Credential exchanges by grant mode and outcome.",
		}, []string{"mode", "result"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruqqus_polls_total",
			Help: "Listing polls by kind and outcome.",
		}, []string{"kind", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruqqus_events_emitted_total",
			Help: "Events delivered to subscribers by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.exchanges,
		c.polls,
		c.events,
	)

	return c
}

// RecordRequest records one completed API request. A zero status code means
// the request never produced a response.
func (c *Collector) RecordRequest(endpoint string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordExchange records a credential exchange outcome.
func (c *Collector) RecordExchange(mode string, ok bool) {
	c.exchanges.WithLabelValues(mode, result(ok)).Inc()
}

// RecordPoll records one listing poll for a kind.
func (c *Collector) RecordPoll(kind string, ok bool) {
	c.polls.WithLabelValues(kind, result(ok)).Inc()
}

// RecordEvent records a delivered event.
func (c *Collector) RecordEvent(kind string) {
	c.events.WithLabelValues(kind).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordExchange(string, bool)              {}
func (Nop) RecordPoll(string, bool)                  {}
func (Nop) RecordEvent(string)                       {}

// Handler returns the HTTP handler serving the gathered metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
