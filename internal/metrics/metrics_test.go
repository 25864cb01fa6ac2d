package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bizquest/internal/metrics"
)

func TestObserveCompletion(t *testing.T) {
	m := metrics.New()
	m.ObserveCompletion(true, 100, 10)
	m.ObserveCompletion(false, 100, 10)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LevelCompletions.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LevelCompletions.WithLabelValues("false")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.RewardsGranted.WithLabelValues("xp")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.RewardsGranted.WithLabelValues("coins")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveCompletion(true, 1, 1)
		m.ObserveAchievement()
		m.ObserveSessionsPurged(3)
	})
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/levels/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/levels/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/levels/def", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/api/levels/{id}", "404")))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "bizquest_http_requests_total"))
}
