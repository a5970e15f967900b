package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/prism/internal/protocol"
	"github.com/danmuck/prism/internal/protocol/session"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Frames written to the socket.",
		},
		[]string{"node", "type"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Datagrams read from the socket, by declared type.",
		},
		[]string{"node", "type"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "frames",
			Name:      "dropped_total",
			Help:      "Inbound datagrams dropped without acknowledgment.",
		},
		[]string{"node", "reason"},
	)
	requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "requests",
			Name:      "resolved_total",
			Help:      "Requests resolved, by outcome.",
		},
		[]string{"node", "outcome"},
	)
	unknownAcks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "requests",
			Name:      "unknown_acks_total",
			Help:      "ACKs that matched no pending request.",
		},
		[]string{"node"},
	)
	ackLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prism",
			Subsystem: "requests",
			Name:      "ack_latency_seconds",
			Help:      "Time from send to acknowledgment.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "prism",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "prism",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesSent, framesReceived, framesDropped,
			requests, unknownAcks, ackLatency,
			httpRequests, httpDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// Metrics records protocol events for one node.
type Metrics struct {
	node string
}

var _ session.Observer = (*Metrics)(nil)

func NewMetrics(node string) *Metrics {
	RegisterMetrics()
	return &Metrics{node: node}
}

func (m *Metrics) FrameSent(t protocol.PacketType) {
	framesSent.WithLabelValues(m.node, t.String()).Inc()
}

func (m *Metrics) FrameReceived(t protocol.PacketType) {
	framesReceived.WithLabelValues(m.node, t.String()).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	framesDropped.WithLabelValues(m.node, reason).Inc()
}

func (m *Metrics) RequestResolved(outcome session.Outcome, latency time.Duration) {
	requests.WithLabelValues(m.node, string(outcome)).Inc()
	if outcome == session.OutcomeAcked {
		ackLatency.WithLabelValues(m.node).Observe(latency.Seconds())
	}
}

func (m *Metrics) UnknownAck() {
	unknownAcks.WithLabelValues(m.node).Inc()
}
