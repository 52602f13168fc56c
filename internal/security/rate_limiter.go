// Package security provides request throttling for the probe route.
package security

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/leslieo2/go-health-probe/internal/config"
	"github.com/leslieo2/go-health-probe/internal/constants"
)

// RateLimiter keeps one token bucket per client identifier. Buckets live in a
// go-cache instance so idle clients expire after the cleanup interval.
type RateLimiter struct {
	limiters *cache.Cache
	config   config.RateLimitConfig
	clock    Clock

	stop     chan struct{}
	stopOnce sync.Once
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// Status describes the bucket of one client after a request
type Status struct {
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type rateLimitResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = constants.RateLimitMaxCacheSize
	}

	rl := newRateLimiter(cfg, RealClock{})
	go rl.periodicCleanup()

	return rl
}

func newRateLimiter(cfg config.RateLimitConfig, clock Clock) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:   cfg,
		clock:    clock,
		stop:     make(chan struct{}),
	}
}

// Stop ends the background cleanup loop
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

// periodicCleanup caps the number of tracked clients at MaxCacheSize,
// evicting a random tenth more than the overflow when the cap is exceeded.
func (rl *RateLimiter) periodicCleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictOverflow()
		}
	}
}

func (rl *RateLimiter) evictOverflow() {
	maxSize := rl.config.MaxCacheSize
	currentSize := rl.limiters.ItemCount()
	if currentSize <= maxSize {
		return
	}

	toRemove := currentSize - maxSize + maxSize/10

	keys := make([]string, 0, currentSize)
	for key := range rl.limiters.Items() {
		keys = append(keys, key)
	}
	rand.Shuffle(len(keys), func(i, j int) {
		keys[i], keys[j] = keys[j], keys[i]
	})

	for i := 0; i < toRemove && i < len(keys); i++ {
		rl.limiters.Delete(keys[i])
	}
}

// Allow consumes one token from the bucket of identifier
func (rl *RateLimiter) Allow(identifier string) (bool, Status) {
	limit := rl.config.ByIP
	limiter := rl.limiterFor(identifier, limit)

	now := rl.clock.Now()
	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	status := Status{
		Limit:     limit.BurstSize,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		Reset:     now.Add(refillTime(float64(limit.BurstSize)-tokens, limit.RequestsPerSecond)),
	}
	if !allowed {
		status.RetryAfter = refillTime(1-tokens, limit.RequestsPerSecond)
	}

	return allowed, status
}

func (rl *RateLimiter) limiterFor(identifier string, limit *config.RateLimit) *rate.Limiter {
	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.BurstSize)
	rl.limiters.Set(identifier, limiter, cache.DefaultExpiration)
	return limiter
}

// refillTime is how long a bucket refilling at rps takes to gain tokens
func refillTime(tokens float64, rps int) time.Duration {
	if tokens <= 0 || rps <= 0 {
		return 0
	}
	return time.Duration(tokens / float64(rps) * float64(time.Second))
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		allowed, status := rl.Allow("ip:" + ClientIP(r))

		w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(status.Limit))
		w.Header().Set(constants.HeaderXRateLimitRemaining, strconv.Itoa(status.Remaining))
		w.Header().Set(constants.HeaderXRateLimitReset, strconv.FormatInt(status.Reset.Unix(), 10))

		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		retryAfter := int(math.Ceil(status.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}

		w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
		w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))
		w.WriteHeader(http.StatusTooManyRequests)

		_ = json.NewEncoder(w).Encode(rateLimitResponse{
			Error:      constants.ErrorCodeRateLimitExceeded,
			Message:    fmt.Sprintf("Rate limit exceeded. Try again in %ds", retryAfter),
			RetryAfter: retryAfter,
		})
	})
}

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get(constants.HeaderXRealIP)); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
