// Package metrics exposes prometheus collectors for ingestion and delivery.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atikulmunna/logrelay/internal/manager"
	"github.com/atikulmunna/logrelay/internal/model"
)

// Metrics holds the collectors registered for one manager.
type Metrics struct {
	ingested *prometheus.CounterVec
	dropped  prometheus.Counter
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New registers collectors on reg. stats supplies the live gauges.
func New(reg prometheus.Registerer, stats func() manager.Stats) *Metrics {
	m := &Metrics{
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logrelay_ingested_entries_total",
				Help: "Total log entries ingested",
			},
			[]string{"level"},
		),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logrelay_dropped_entries_total",
			Help: "Entries discarded for slow subscribers",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logrelay_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "logrelay_http_request_duration_seconds",
				Help:    "Request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
	reg.MustRegister(m.ingested, m.dropped, m.requests, m.latency)

	gauge := func(name, help string, value func(manager.Stats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(value(stats()))
		})
	}
	reg.MustRegister(
		gauge("logrelay_loggers", "Logger streams retained", func(s manager.Stats) int { return s.Loggers }),
		gauge("logrelay_sessions", "Active session bindings", func(s manager.Stats) int { return s.Sessions }),
		gauge("logrelay_subscribers", "Live stream subscribers", func(s manager.Stats) int { return s.Subscribers }),
	)
	return m
}

// Observe implements manager.Observer.
func (m *Metrics) Observe(entry model.LogEntry, dropped int) {
	m.ingested.WithLabelValues(entry.Level).Inc()
	if dropped > 0 {
		m.dropped.Add(float64(dropped))
	}
}

// Middleware records request counts and latency. Streaming routes are
// counted when the stream ends.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(path, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(path, method).Observe(time.Since(start).Seconds())
	}
}
