package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, code int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestHTTPChecker(t *testing.T) {
	tests := []struct {
		code int
		want Status
	}{
		{http.StatusOK, StatusHealthy},
		{http.StatusNotFound, StatusDegraded},
		{http.StatusBadGateway, StatusUnhealthy},
	}

	for _, tt := range tests {
		url := statusServer(t, tt.code)
		check := NewHTTPChecker(url, "backend", nil).Check(context.Background())
		assert.Equal(t, tt.want, check.Status, "status %d", tt.code)
		assert.Equal(t, url, check.Metadata["url"])
	}
}

func TestHTTPChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	check := NewHTTPChecker(url, "gone", &http.Client{Timeout: time.Second}).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Contains(t, check.Error, "request failed")
}

func TestCustomChecker_ErrorMakesUnhealthy(t *testing.T) {
	check := NewCustomChecker("store", func(context.Context) (Status, string, error) {
		return StatusHealthy, "", errors.New("boom")
	}).Check(context.Background())

	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "boom", check.Error)
}

func TestService_AggregatesInOrder(t *testing.T) {
	s := NewService(nil, nil)
	s.RegisterChecker("b", NewHTTPChecker(statusServer(t, http.StatusOK), "b", nil))
	s.RegisterChecker("a", NewHTTPChecker(statusServer(t, http.StatusNotFound), "a", nil))

	report := s.CheckHealth(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)

	ordered := report.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "b", ordered[0].Name)
	assert.Equal(t, "a", ordered[1].Name)

	s.RegisterChecker("c", NewCustomChecker("c", func(context.Context) (Status, string, error) {
		return StatusUnhealthy, "down", nil
	}))
	assert.Equal(t, StatusUnhealthy, s.CheckHealth(context.Background()).Status)
}

func TestService_Handler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := NewService(nil, nil)
	s.RegisterChecker("down", NewCustomChecker("down", func(context.Context) (Status, string, error) {
		return StatusUnhealthy, "down", nil
	}))

	router := gin.New()
	router.GET("/healthz", s.Handler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}
