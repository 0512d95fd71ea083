package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordRequest(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.RecordRequest("GET", "dispatched", 200, 5*time.Millisecond)
	m.RecordRequest("GET", "dispatched", 200, 7*time.Millisecond)
	m.RecordRequest("GET", "not_found", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "dispatched", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "not_found", "404")))
}

func TestMetrics_ActiveRequests(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.RequestStarted()
	m.RequestStarted()
	m.RequestFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRequests))
	assert.NotNil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("handler")
	m.RecordRequest("POST", "dispatched", 201, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "handler_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
