package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	metrics := NewMetrics()
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.RequestCount)
	assert.NotNil(t, metrics.RequestDuration)
	assert.NotNil(t, metrics.ResponseSize)
	assert.NotNil(t, metrics.ReportCount)
	assert.NotNil(t, metrics.CheckStatus)
	assert.NotNil(t, metrics.CheckDuration)
	assert.NotNil(t, metrics.HealthStatus)
	assert.NotNil(t, metrics.Registry())
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	first := NewMetrics()
	second := NewMetrics()

	first.RecordReport("healthy")

	assert.Equal(t, 1.0, testutil.ToFloat64(first.ReportCount.WithLabelValues("healthy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.ReportCount.WithLabelValues("healthy")))
}

func TestMetrics_RecordRequest(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest("GET", "/api/health", 503, 100*time.Millisecond, 512)
	metrics.RecordRequest("GET", "/api/health", 503, 100*time.Millisecond, 512)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("GET", "/api/health", "503")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("GET", "/api/health", "200")))
}

func TestMetrics_RecordCheck(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordCheck("database", true, 3*time.Millisecond)
	metrics.RecordCheck("filesystem", false, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CheckStatus.WithLabelValues("database")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CheckStatus.WithLabelValues("filesystem")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.CheckDuration))
}

func TestMetrics_SetHealthStatus(t *testing.T) {
	metrics := NewMetrics()

	metrics.SetHealthStatus(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HealthStatus))

	metrics.SetHealthStatus(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.HealthStatus))
}

func TestMetrics_Handler(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordCheck("redis", true, time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `health_check_status{service="redis"} 1`))
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	metrics := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				metrics.RecordRequest("GET", "/endpoint-"+strconv.Itoa(id), 200, 10*time.Millisecond, int64(j*200))
				metrics.RecordCheck("database", j%2 == 0, time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100.0, testutil.ToFloat64(metrics.RequestCount.WithLabelValues("GET", "/endpoint-3", "200")))
}
