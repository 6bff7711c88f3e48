package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	sweepEvery   = 5 * time.Minute
	idleEviction = 10 * time.Minute
)

// RateLimiter applies a per-client token bucket. Clients are keyed by the
// authenticated subject, falling back to the remote IP for anonymous traffic.
// Buckets refill at requestsPerMinute and allow bursts of a quarter of the
// budget (at least one). Idle buckets are evicted in the background.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	refill    rate.Limit
	burst     int
	perMinute int
	done      chan struct{}
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// verdict carries the outcome of a budget check plus the header values
// derived from it.
type verdict struct {
	ok        bool
	remaining int
	reset     time.Time
}

// NewRateLimiter creates a RateLimiter allowing requestsPerMinute per client.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	burst := requestsPerMinute / 4
	if burst < 1 {
		burst = 1
	}

	rl := &RateLimiter{
		visitors:  make(map[string]*visitor),
		refill:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		perMinute: requestsPerMinute,
		done:      make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether a request from the given client fits its budget.
func (rl *RateLimiter) Allow(clientKey string) bool {
	return rl.take(clientKey).ok
}

// Stop shuts down the background eviction loop.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

// take reserves one slot from the client's bucket. When the bucket is
// exhausted the reservation is cancelled and reset tells the caller when to
// retry; otherwise reset estimates when the bucket is full again.
func (rl *RateLimiter) take(clientKey string) verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[clientKey]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(rl.refill, rl.burst)}
		rl.visitors[clientKey] = v
	}
	v.lastSeen = now

	res := v.bucket.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return verdict{reset: now.Add(delay)}
	}

	remaining := int(v.bucket.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	refillIn := time.Duration(float64(rl.burst-remaining) / float64(rl.refill) * float64(time.Second))
	return verdict{ok: true, remaining: remaining, reset: now.Add(refillIn)}
}

func (rl *RateLimiter) sweep() {
	tick := time.NewTicker(sweepEvery)
	defer tick.Stop()

	for {
		select {
		case <-rl.done:
			return
		case now := <-tick.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > idleEviction {
			delete(rl.visitors, key)
			evicted++
		}
	}
	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("Evicted idle rate limit buckets")
	}
}

// RateLimitMiddleware returns an Echo middleware enforcing the given limiter.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientKey := GetSubject(c)
			if clientKey == "" {
				clientKey = c.RealIP()
			}

			v := rl.take(clientKey)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))

			if !v.ok {
				retryAfter := int(time.Until(v.reset).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				log.Warn().
					Str("client", clientKey).
					Int("retry_after", retryAfter).
					Msg("Rate limit exceeded")

				return c.JSON(http.StatusTooManyRequests, problemDetails{
					Type:     errorTypeRateLimit,
					Title:    "Rate Limit Exceeded",
					Status:   http.StatusTooManyRequests,
					Detail:   fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter),
					Instance: c.Request().URL.Path,
				})
			}

			return next(c)
		}
	}
}
