package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "amqpwire"

// Frame directions.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames decoded or encoded, by frame type.",
		},
		[]string{"node", "direction", "type"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Frame bytes moved through connection buffers.",
		},
		[]string{"node", "direction"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Connections closed on a decode error, by reason.",
		},
		[]string{"node", "reason"},
	)
	methodsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "methods_total",
			Help:      "Method frames by class.method name.",
		},
		[]string{"node", "direction", "method"},
	)
	connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open frame connections.",
		},
		[]string{"node"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
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
		prometheus.MustRegister(framesTotal, bytesTotal, methodsTotal, decodeErrors, connections, httpRequests, httpDuration)
	})
}

func RecordFrame(node, direction, frameType string, size int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(node, direction, frameType).Inc()
	bytesTotal.WithLabelValues(node, direction).Add(float64(size))
}

// RecordBytes counts bytes that are not part of a frame, such as the
// protocol header.
func RecordBytes(node, direction string, n int) {
	RegisterMetrics()
	bytesTotal.WithLabelValues(node, direction).Add(float64(n))
}

// RecordMethod counts a method frame. Callers pass "unknown" for ids outside
// the registry to keep label cardinality bounded.
func RecordMethod(node, direction, method string) {
	RegisterMetrics()
	methodsTotal.WithLabelValues(node, direction, method).Inc()
}

func RecordDecodeError(node, reason string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(node, reason).Inc()
}

func ConnectionOpened(node string) {
	RegisterMetrics()
	connections.WithLabelValues(node).Inc()
}

func ConnectionClosed(node string) {
	RegisterMetrics()
	connections.WithLabelValues(node).Dec()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
