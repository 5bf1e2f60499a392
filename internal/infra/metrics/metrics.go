package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	swipes          *prometheus.CounterVec
	matchesCreated  prometheus.Counter
	chatMessages    prometheus.Counter
	chatConnections prometheus.Gauge
	chatDeliveries  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		swipes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ember_swipes_total",
			Help: "Swipes processed, by outcome",
		}, []string{"outcome"}),
		matchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ember_matches_created_total",
			Help: "Matches created",
		}),
		chatMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "ember_chat_messages_total",
			Help: "Chat messages persisted",
		}),
		chatConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ember_chat_connections",
			Help: "Live chat connections on this instance",
		}),
		chatDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ember_chat_deliveries_total",
			Help: "Chat events routed, by mode",
		}, []string{"mode"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) SwipeRecorded(outcome string) {
	if m != nil {
		m.swipes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) MatchCreated() {
	if m != nil {
		m.matchesCreated.Inc()
	}
}

func (m *Metrics) MessagePersisted() {
	if m != nil {
		m.chatMessages.Inc()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.chatConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.chatConnections.Dec()
	}
}

// Delivery counts a routed event; mode is live, remote or deferred.
func (m *Metrics) Delivery(mode string) {
	if m != nil {
		m.chatDeliveries.WithLabelValues(mode).Inc()
	}
}

// Middleware records request count and latency per chi route pattern so
// ids in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
