package obs

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector of the service. Build it once with
// NewMetrics; a nil *Metrics is valid and records nothing.
type Metrics struct {
	codesIssued    prometheus.Counter
	codesRedeemed  prometheus.Counter
	codesRejected  *prometheus.CounterVec
	codesSwept     prometheus.Counter
	mirrorOutcomes *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	recordsExpired prometheus.Counter
	gameConnected  prometheus.Gauge
	gameQueueDepth prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		codesIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "linkbridge_codes_issued_total",
			Help: "Verification codes issued.",
		}),
		codesRedeemed: f.NewCounter(prometheus.CounterOpts{
			Name: "linkbridge_codes_redeemed_total",
			Help: "Verification codes redeemed into a link.",
		}),
		codesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbridge_codes_rejected_total",
			Help: "Redemption attempts rejected, by reason.",
		}, []string{"reason"}),
		codesSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "linkbridge_codes_swept_total",
			Help: "Expired verification codes removed by the sweep.",
		}),
		mirrorOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbridge_moderation_events_total",
			Help: "Moderation events processed, by origin and outcome.",
		}, []string{"origin", "outcome"}),
		remoteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "linkbridge_remote_apply_failures_total",
			Help: "Mirrored actions the remote platform rejected after retry.",
		}, []string{"platform", "action"}),
		recordsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "linkbridge_moderation_records_expired_total",
			Help: "Timed moderation records deactivated by the expiry sweep.",
		}),
		gameConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "linkbridge_game_connected",
			Help: "1 while the game plugin holds a WebSocket session.",
		}),
		gameQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "linkbridge_game_queue_depth",
			Help: "Commands waiting to be written to the game plugin.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) CodeIssued() {
	if m != nil {
		m.codesIssued.Inc()
	}
}

func (m *Metrics) CodeRedeemed() {
	if m != nil {
		m.codesRedeemed.Inc()
	}
}

func (m *Metrics) CodeRejected(reason string) {
	if m != nil {
		m.codesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CodesSwept(n int64) {
	if m != nil && n > 0 {
		m.codesSwept.Add(float64(n))
	}
}

func (m *Metrics) ModerationOutcome(origin, outcome string) {
	if m != nil {
		m.mirrorOutcomes.WithLabelValues(origin, outcome).Inc()
	}
}

func (m *Metrics) RemoteApplyFailed(platform, action string) {
	if m != nil {
		m.remoteFailures.WithLabelValues(platform, action).Inc()
	}
}

func (m *Metrics) RecordsExpired(n int) {
	if m != nil && n > 0 {
		m.recordsExpired.Add(float64(n))
	}
}

func (m *Metrics) GameConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.gameConnected.Set(1)
	} else {
		m.gameConnected.Set(0)
	}
}

func (m *Metrics) GameQueueDepth(n int) {
	if m != nil {
		m.gameQueueDepth.Set(float64(n))
	}
}

// Instrument records request count and latency per route pattern.
func (m *Metrics) Instrument() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		m.httpRequests.WithLabelValues(labels...).Inc()
		m.httpDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}
