package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge

	quotes    *prometheus.CounterVec
	checkouts *prometheus.CounterVec
	bookings  *prometheus.CounterVec
}

// NewMetrics registers the site's collectors, plus the Go runtime and
// process collectors, on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridebook_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ridebook_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ridebook_http_requests_in_flight",
			Help: "Requests being served.",
		}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridebook_fare_quotes_total",
			Help: "Fare quote attempts by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridebook_checkout_sessions_total",
			Help: "Checkout session requests by payment method and result.",
		}, []string{"method", "result"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ridebook_bookings_total",
			Help: "Finished booking flows by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.requests, m.duration, m.inFlight, m.quotes, m.checkouts, m.bookings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func skipMetrics(path string) bool {
	for _, p := range []string{"/metrics", "/healthz", "/static/"} {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipMetrics(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(ww.statusCode)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
