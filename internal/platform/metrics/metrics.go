package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing, so packages can be constructed without one in tests.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RPCCallsTotal   *prometheus.CounterVec
	RPCCallDuration *prometheus.HistogramVec

	StrategyResolutionsTotal *prometheus.CounterVec
	StrategyActionsTotal     *prometheus.CounterVec

	PurchasesTotal *prometheus.CounterVec

	MetadataFetchesTotal *prometheus.CounterVec
}

// New registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"route", "method"},
		),
		RPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "calls_total",
				Help:      "Contract calls and transactions by interface, method and outcome",
			},
			[]string{"interface", "method", "kind", "outcome"},
		),
		RPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "chain",
				Name:      "call_duration_seconds",
				Help:      "Contract call latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"interface", "kind"},
		),
		StrategyResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "strategy",
				Name:      "resolutions_total",
				Help:      "Resolved strategy rows by category and status",
			},
			[]string{"category", "status"},
		),
		StrategyActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "strategy",
				Name:      "actions_total",
				Help:      "Executed strategy actions by variant, action and outcome",
			},
			[]string{"variant", "action", "outcome"},
		),
		PurchasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "purchase",
				Name:      "submissions_total",
				Help:      "Purchase submissions by terminal state",
			},
			[]string{"state"},
		),
		MetadataFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "metadata",
				Name:      "fetches_total",
				Help:      "Metadata fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) RecordRPC(iface, method, kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.RPCCallsTotal.WithLabelValues(iface, method, kind, outcome(err)).Inc()
	m.RPCCallDuration.WithLabelValues(iface, kind).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RecordResolution(category, status string) {
	if m == nil {
		return
	}
	m.StrategyResolutionsTotal.WithLabelValues(category, status).Inc()
}

func (m *Metrics) RecordAction(variant, action string, err error) {
	if m == nil {
		return
	}
	m.StrategyActionsTotal.WithLabelValues(variant, action, outcome(err)).Inc()
}

func (m *Metrics) RecordPurchase(state string) {
	if m == nil {
		return
	}
	m.PurchasesTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) RecordMetadataFetch(source string, err error) {
	if m == nil {
		return
	}
	m.MetadataFetchesTotal.WithLabelValues(source, outcome(err)).Inc()
}

// Middleware counts requests by their chi route pattern rather than the raw
// path, which keeps label cardinality bounded.
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
		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
