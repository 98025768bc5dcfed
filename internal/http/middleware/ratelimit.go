package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIP keys buckets by client IP, prefixed "ip:".
func KeyByIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter is a process-local, per-client token bucket guarding the
// endpoints that cost money to serve (generation, payment provider calls).
// Buckets idle for longer than the TTL are swept at most once per TTL.
// It is not an authorization mechanism.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  keyFunc
	exempt []string
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewRateLimiter allows rps requests per second per key with the given
// burst. A burst below 1 is raised to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   max(burst, 1),
		keyFn:   keyFn,
		ttl:     10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Exempt skips limiting for paths under any of prefixes. Blank prefixes are
// ignored. Call before installing Handler.
func (rl *RateLimiter) Exempt(prefixes ...string) *RateLimiter {
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			rl.exempt = append(rl.exempt, p)
		}
	}
	return rl
}

func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, b := range rl.buckets {
			if now.Sub(b.seen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

// wait reports how long key must back off before its next request, 0 when
// the request may proceed. A granted request consumes one token.
func (rl *RateLimiter) wait(key string) time.Duration {
	now := rl.now()
	lim := rl.limiter(key, now)
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return time.Minute
	}
	d := res.DelayFrom(now)
	if d > 0 {
		res.CancelAt(now)
	}
	return d
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which Handler serves without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Value(ctxKeyRateBypass).(bool)
	return b
}

// Handler enforces the limits. Denied requests get 429 with the rate_limited
// envelope and a Retry-After in whole seconds.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) || hasAnyPrefix(c.Request.URL.Path, rl.exempt) {
			c.Next()
			return
		}
		d := rl.wait(rl.keyFn(c))
		if d <= 0 {
			c.Next()
			return
		}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
