// Package metrics provides Prometheus instrumentation for the exchange engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SwapsTotal counts executed swaps, partitioned by direction (a_to_b /
	// b_to_a).
	SwapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_swaps_total",
		Help: "Total number of swaps executed",
	}, []string{"direction"})

	// LiquidityOpsTotal counts liquidity operations by action (add / remove).
	LiquidityOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_liquidity_ops_total",
		Help: "Total number of liquidity operations",
	}, []string{"action"})

	// PositionsTotal counts position lifecycle events by action (open /
	// close / liquidate).
	PositionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_positions_total",
		Help: "Total number of position operations",
	}, []string{"action"})

	// OpenInterest tracks aggregate open interest per market.
	OpenInterest = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dex_open_interest",
		Help: "Aggregate open interest per perpetual market",
	}, []string{"market"})

	// FundingRate tracks the last computed funding rate per market.
	FundingRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dex_funding_rate_bps",
		Help: "Last funding rate in basis points per perpetual market",
	}, []string{"market"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dex_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dex_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// RiskLimitRejections counts position opens rejected by the risk limiter.
	RiskLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_risk_limit_rejections_total",
		Help: "Position opens rejected by risk limiter",
	})

	// SwapVolume tracks cumulative input volume per pool and direction.
	SwapVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_swap_volume_total",
		Help: "Cumulative swap input volume in base units",
	}, []string{"pool", "direction"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
