package security

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leslieo2/go-health-probe/internal/config"
)

// MockClock allows controlling time in tests
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (mc *MockClock) Now() time.Time {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.now
}

func (mc *MockClock) Advance(d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.now = mc.now.Add(d)
}

func testConfig(rps, burst int) config.RateLimitConfig {
	cfg := config.DefaultRateLimitConfig()
	cfg.Enabled = true
	cfg.ByIP = &config.RateLimit{
		RequestsPerSecond: rps,
		BurstSize:         burst,
		WindowSize:        time.Minute,
	}
	return cfg
}

// newTestRateLimiter builds a limiter on a mock clock without the cleanup goroutine
func newTestRateLimiter(cfg config.RateLimitConfig) (*RateLimiter, *MockClock) {
	clock := &MockClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newRateLimiter(cfg, clock), clock
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func probe(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_Success(t *testing.T) {
	rl, _ := newTestRateLimiter(testConfig(5, 10))
	middleware := rl.Middleware(okHandler())

	rr := probe(middleware, "192.0.2.1:12345")

	assert.Equal(t, http.StatusOK, rr.Code, "Request within limit should succeed")
	assert.Equal(t, "10", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rr.Header().Get("X-RateLimit-Remaining"), "Remaining requests should be correct")
}

func TestRateLimiter_Failure_Exceeded(t *testing.T) {
	rl, _ := newTestRateLimiter(testConfig(2, 2))
	middleware := rl.Middleware(okHandler())

	for i := 1; i <= 2; i++ {
		rr := probe(middleware, "192.0.2.2:12345")
		assert.Equal(t, http.StatusOK, rr.Code, "Request #%d should succeed", i)
	}

	rr := probe(middleware, "192.0.2.2:12345")
	require.Equal(t, http.StatusTooManyRequests, rr.Code, "Request exceeding burst should fail")
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	var body rateLimitResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error)
	assert.Contains(t, body.Message, "Rate limit exceeded")
	assert.Equal(t, 1, body.RetryAfter)
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl, _ := newTestRateLimiter(testConfig(1, 1))
	middleware := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, probe(middleware, "192.0.2.3:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, probe(middleware, "192.0.2.3:12345").Code)
	assert.Equal(t, http.StatusOK, probe(middleware, "192.0.2.4:12345").Code, "other clients keep their own bucket")
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.Enabled = false
	rl, _ := newTestRateLimiter(cfg)
	middleware := rl.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		rr := probe(middleware, "192.0.2.5:12345")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"), "Should not have rate limit headers when disabled")
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl, clock := newTestRateLimiter(testConfig(1, 1))
	middleware := rl.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, probe(middleware, "192.0.2.6:12345").Code)
	assert.Equal(t, http.StatusTooManyRequests, probe(middleware, "192.0.2.6:12345").Code)

	clock.Advance(time.Second)

	rr := probe(middleware, "192.0.2.6:12345")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_RetryAfterRoundsUp(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.ByIP.RequestsPerSecond = 1
	rl, clock := newTestRateLimiter(cfg)

	allowed, _ := rl.Allow("ip:192.0.2.9")
	require.True(t, allowed)

	clock.Advance(250 * time.Millisecond)
	allowed, status := rl.Allow("ip:192.0.2.9")
	require.False(t, allowed)
	assert.InDelta(t, (750 * time.Millisecond).Seconds(), status.RetryAfter.Seconds(), 0.001)

	rr := probe(rl.Middleware(okHandler()), "192.0.2.9:1")
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRateLimitStatusHeaders(t *testing.T) {
	rl, clock := newTestRateLimiter(testConfig(10, 10))
	middleware := rl.Middleware(okHandler())

	rr := probe(middleware, "192.0.2.7:12345")
	assert.Equal(t, http.StatusOK, rr.Code)

	limit, _ := strconv.Atoi(rr.Header().Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(rr.Header().Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)

	assert.Equal(t, 10, limit)
	assert.Equal(t, 9, remaining)
	assert.False(t, time.Unix(reset, 0).Before(clock.Now().Truncate(time.Second)))
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
		remote  string
		wantIP  string
	}{
		{
			name:    "From X-Forwarded-For",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.2"},
			remote:  "192.0.2.1:12345",
			wantIP:  "203.0.113.1",
		},
		{
			name:    "From X-Real-IP",
			headers: map[string]string{"X-Real-IP": "203.0.113.2"},
			remote:  "192.0.2.1:12345",
			wantIP:  "203.0.113.2",
		},
		{
			name:    "Empty X-Forwarded-For entry falls through",
			headers: map[string]string{"X-Forwarded-For": " , 198.51.100.2"},
			remote:  "203.0.113.4:12345",
			wantIP:  "203.0.113.4",
		},
		{
			name:    "From RemoteAddr",
			headers: map[string]string{},
			remote:  "203.0.113.3:12345",
			wantIP:  "203.0.113.3",
		},
		{
			name:   "RemoteAddr without port",
			remote: "203.0.113.5",
			wantIP: "203.0.113.5",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			req.RemoteAddr = tc.remote

			assert.Equal(t, tc.wantIP, ClientIP(req))
		})
	}
}

func TestRateLimiter_EvictOverflow(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.MaxCacheSize = 10
	rl, _ := newTestRateLimiter(cfg)

	for i := 0; i < 25; i++ {
		rl.Allow(fmt.Sprintf("ip:198.51.100.%d", i))
	}
	require.Equal(t, 25, rl.limiters.ItemCount())

	rl.evictOverflow()

	assert.Equal(t, 9, rl.limiters.ItemCount(), "overflow plus a tenth of the cap is evicted")
}

func TestNewRateLimiter_Stop(t *testing.T) {
	cfg := testConfig(1, 1)
	cfg.CleanupInterval = 0
	cfg.MaxCacheSize = 0

	rl := NewRateLimiter(cfg)
	assert.Equal(t, 5*time.Minute, rl.config.CleanupInterval)
	assert.Equal(t, 10000, rl.config.MaxCacheSize)

	rl.Stop()
	rl.Stop()
}
