// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "vault_active_sessions",
		Help: "Number of live DH sessions held in memory",
	},
)

var DBConnects = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vault_db_connects_total",
		Help: "Database connect attempts by result",
	},
	[]string{"result"},
)

var DBIdleCloses = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "vault_db_idle_closes_total",
		Help: "Database handles closed by the idle timer",
	},
)

var DecryptFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vault_decrypt_failures_total",
		Help: "Inbound payloads rejected by the dispatcher, by mode",
	},
	[]string{"mode"},
)

var OTPIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "vault_otp_issued_total",
		Help: "One-time passcodes issued",
	},
)

var RateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "vault_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by path",
	},
	[]string{"path"},
)

var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ActiveSessions,
			DBConnects,
			DBIdleCloses,
			DecryptFailures,
			OTPIssued,
			RateLimited,
			RequestDuration,
		)
	})
}
