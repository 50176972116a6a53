// Package metrics tracks gateway-wide request counters. The JSON
// snapshot mirrors the legacy /metrics payload; the same observations
// also feed Prometheus collectors for scraping.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// minuteRetention bounds how many per-minute buckets are kept.
const minuteRetention = 5 * time.Minute

// Snapshot is the cumulative view served at /metrics. ErrorRate is
// recomputed from its inputs on every read, never stored.
type Snapshot struct {
	RequestsTotal       int64   `json:"requests_total"`
	RequestsPerMinute   int64   `json:"requests_per_minute"`
	AverageResponseTime float64 `json:"average_response_time"`
	ErrorRate           float64 `json:"error_rate"`
}

// Metrics is the process-wide counter set. All updates happen under
// one mutex so the running average and the counters it depends on
// cannot drift apart under concurrent requests.
type Metrics struct {
	mu            sync.Mutex
	requestsTotal int64
	errorsTotal   int64
	avgLatencyMs  float64
	minutes       map[string]int64

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New registers the Prometheus collectors on reg and returns the
// metrics set. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		minutes: make(map[string]int64),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

// Observe records one completed request. Statuses >= 400 count as
// errors; the running average uses the post-increment request total.
func (m *Metrics) Observe(method, route, status string, statusCode int, duration time.Duration) {
	durationMs := float64(duration) / float64(time.Millisecond)

	m.mu.Lock()
	m.requestsTotal++
	if statusCode >= 400 {
		m.errorsTotal++
	}
	n := float64(m.requestsTotal)
	m.avgLatencyMs = ((m.avgLatencyMs * (n - 1)) + durationMs) / n

	now := time.Now()
	m.minutes[now.Format("2006-01-02 15:04")]++
	m.pruneLocked(now)
	m.mu.Unlock()

	m.requests.WithLabelValues(method, route, status).Inc()
	m.latency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Snapshot returns the current cumulative view. RequestsPerMinute is
// the count for the previous full minute.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errorRate float64
	if m.requestsTotal > 0 {
		errorRate = float64(m.errorsTotal) / float64(m.requestsTotal) * 100
	}

	previousMinute := time.Now().Add(-time.Minute).Format("2006-01-02 15:04")
	return Snapshot{
		RequestsTotal:       m.requestsTotal,
		RequestsPerMinute:   m.minutes[previousMinute],
		AverageResponseTime: round2(m.avgLatencyMs),
		ErrorRate:           round2(errorRate),
	}
}

func (m *Metrics) pruneLocked(now time.Time) {
	if len(m.minutes) <= int(minuteRetention/time.Minute)+1 {
		return
	}
	cutoff := now.Add(-minuteRetention).Format("2006-01-02 15:04")
	for bucket := range m.minutes {
		if bucket < cutoff {
			delete(m.minutes, bucket)
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
