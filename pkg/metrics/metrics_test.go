package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RecordsOnPrivateRegistry(t *testing.T) {
	m := NewMetrics(&Config{Namespace: "test", Enabled: true})
	require.NotNil(t, m.Registry())

	m.RecordRequest("GET", "success", 10*time.Millisecond)
	m.RecordRequest("GET", "success", 20*time.Millisecond)
	m.RecordAttempt("http://a", "no_response", time.Millisecond)
	m.RecordFailover("http://a", "no_response")
	m.RecordExhausted("POST")
	m.RecordAnalysisAttempt("error")
	m.RecordAnalysisRetry()
	m.RecordSessionOperation("file", "get", nil)
	m.RecordSessionOperation("file", "set", errors.New("disk full"))

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("http://a", "no_response")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FailoversTotal.WithLabelValues("http://a", "no_response")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ExhaustedTotal.WithLabelValues("POST")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysisRetriesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionOperations.WithLabelValues("file", "set", "error")))

	// Two instances never collide on registration
	assert.NotPanics(t, func() { NewMetrics(&Config{Namespace: "test", Enabled: true}) })
}

func TestMetrics_Disabled(t *testing.T) {
	m := NewMetrics(&Config{Enabled: false})

	assert.NotPanics(t, func() {
		m.RecordRequest("GET", "success", time.Millisecond)
		m.RecordAttempt("http://a", "ok", time.Millisecond)
		m.RecordFailover("http://a", "status_502")
		m.RecordAnalysisRetry()
	})
	assert.Nil(t, m.Registry())

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.RecordExhausted("GET") })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(DefaultConfig())
	m.RecordRequest("GET", "success", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nebula_client_requests_total")
}

func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics(DefaultConfig())

	router := gin.New()
	router.Use(m.PrometheusMiddleware())
	router.GET("/documents", func(c *gin.Context) { c.JSON(http.StatusOK, []string{}) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/documents", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}
