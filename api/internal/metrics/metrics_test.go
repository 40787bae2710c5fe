package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New("gptproxy")

	m.ObserveHTTP("/infer", 200, 50*time.Millisecond)
	m.ObserveHTTP("/infer", 200, 70*time.Millisecond)
	m.ObserveHTTP("/infer", 413, time.Millisecond)
	m.ObserveCompletion("gpt", "gpt-4.1-mini", "success", time.Second)
	m.ObserveImageBytes(2048)
	m.ObserveImageBytes(0)
	m.ObservePDFChars(500)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/infer", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/infer", "413")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completionRequests.WithLabelValues("gpt", "gpt-4.1-mini", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.imageBytes))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("/", 200, time.Second)
		m.ObserveCompletion("gpt", "m", "error", time.Second)
		m.ObserveImageBytes(10)
		m.ObservePDFChars(10)
	})
}

func TestHandler(t *testing.T) {
	m := New("gptproxy")
	m.ObserveCompletion("gemini", "gemini-2.5-flash", "error", time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `gptproxy_completion_requests_total{engine="gemini",model="gemini-2.5-flash",status="error"} 1`))
}
