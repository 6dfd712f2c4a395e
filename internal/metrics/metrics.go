package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhub",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workhub",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "workhub",
		Name:      "live_connections",
		Help:      "Currently admitted workspace connections",
	})

	rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "workhub",
		Name:      "live_rooms",
		Help:      "Rooms with at least one live occupant",
	})

	events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhub",
		Name:      "events_dispatched_total",
		Help:      "Mutation events handed to the fan-out router, by kind",
	}, []string{"kind"})

	droppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "workhub",
		Name:      "deliveries_dropped_total",
		Help:      "Per-recipient deliveries dropped because the connection was gone",
	})

	pointsTransfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workhub",
		Name:      "points_transfers_total",
		Help:      "Points transfer attempts by outcome",
	}, []string{"outcome"})
)

func SetConnections(n int)        { connections.Set(float64(n)) }
func SetRooms(n int)              { rooms.Set(float64(n)) }
func EventDispatched(kind string) { events.WithLabelValues(kind).Inc() }
func DeliveryDropped()            { droppedDeliveries.Inc() }
func PointsTransfer(outcome string) {
	pointsTransfers.WithLabelValues(outcome).Inc()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required for the websocket upgrade to pass through the recorder.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
