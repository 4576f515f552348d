// internal/metrics/metrics.go
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tamzrod/modbus-client/internal/fault"
	"github.com/tamzrod/modbus-client/internal/status"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "modbus").
	Namespace string

	// Buckets are the histogram buckets for request duration.
	// Default: tuned for sub-second fieldbus round trips.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

func (c *Config) defaults() {
	if c.Namespace == "" {
		c.Namespace = "modbus"
	}
	if len(c.Buckets) == 0 {
		c.Buckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	}
	if c.Registry == nil {
		c.Registry = prometheus.DefaultRegisterer
	}
}

// Collector implements the client Observer and records poll and ingest
// outcomes.
type Collector struct {
	factory   promauto.Factory
	namespace string

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    prometheus.Counter
	retryDelay      prometheus.Histogram
	state           *prometheus.GaugeVec
	pollsTotal      *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	readingsTotal   *prometheus.CounterVec
	deliveriesTotal *prometheus.CounterVec
}

// New registers every collector on cfg.Registry.
func New(cfg Config) *Collector {
	cfg.defaults()
	factory := promauto.With(cfg.Registry)
	ns := cfg.Namespace

	return &Collector{
		factory:   factory,
		namespace: ns,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "Total number of register requests by operation and result",
		}, []string{"op", "result"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds, including reconnects",
			Buckets:   cfg.Buckets,
		}, []string{"op"}),

		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts",
		}),

		retryDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff slept before each reconnect attempt",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "client_state",
			Help:      "Current connection state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=faulted)",
		}, []string{"client_id"}),

		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "polls_total",
			Help:      "Total number of poll cycles by result",
		}, []string{"result"}),

		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "poll_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   cfg.Buckets,
		}),

		readingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "readings_total",
			Help:      "Total number of tag readings by quality",
		}, []string{"quality"}),

		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "deliveries_total",
			Help:      "Total number of sink deliveries by result",
		}, []string{"result"}),
	}
}

// ---- client observer ----

func (c *Collector) ObserveRequest(op string, took time.Duration, err error) {
	c.requestsTotal.WithLabelValues(op, result(err)).Inc()
	c.requestDuration.WithLabelValues(op).Observe(took.Seconds())
}

func (c *Collector) ObserveRetry(_ int, delay time.Duration) {
	c.retriesTotal.Inc()
	c.retryDelay.Observe(delay.Seconds())
}

func (c *Collector) ObserveState(clientID string, s status.State) {
	c.state.WithLabelValues(clientID).Set(float64(s))
}

// TrackDroppedEvents exposes a client's dropped event count.
func (c *Collector) TrackDroppedEvents(clientID string, dropped func() uint64) {
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   c.namespace,
		Name:        "events_dropped_total",
		Help:        "Events evicted from slow subscriber queues",
		ConstLabels: prometheus.Labels{"client_id": clientID},
	}, func() float64 { return float64(dropped()) })
}

// ---- poll / delivery ----

func (c *Collector) ObservePoll(took time.Duration, err error) {
	c.pollsTotal.WithLabelValues(result(err)).Inc()
	c.pollDuration.Observe(took.Seconds())
}

func (c *Collector) ObserveReading(quality string) {
	c.readingsTotal.WithLabelValues(quality).Inc()
}

func (c *Collector) ObserveDelivery(err error) {
	c.deliveriesTotal.WithLabelValues(result(err)).Inc()
}

// result labels an outcome by error kind, "ok" on success.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(fault.KindOf(err).String(), " ", "_")
}
