package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRPC("Shop", "owner", "call", time.Now(), nil)
		m.RecordResolution("reward", "resolved")
		m.RecordAction("PercentageDiscount", "update-percentage", errors.New("boom"))
		m.RecordPurchase("success")
		m.RecordMetadataFetch("cache", nil)
	})
}

func TestRecordResolution(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordResolution("discount", "unsupported")
	m.RecordResolution("discount", "unsupported")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StrategyResolutionsTotal.WithLabelValues("discount", "unsupported")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/shops/{shop}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops/0xabc", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/v1/shops/{shop}", "GET", "418")))
}
