package middleware

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/freewebtopdf/find-related/internal/domain"
)

const (
	bucketIdleTTL   = time.Hour
	cleanupInterval = 10 * time.Minute
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate int // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow takes one token if available
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	tb.tokens = min(float64(tb.capacity), tb.tokens+now.Sub(tb.lastRefill).Seconds()*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

// remaining returns the whole tokens left in the bucket
func (tb *TokenBucket) remaining() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return int(tb.tokens)
}

// retryAfter returns the seconds until one token is available, at least 1
func (tb *TokenBucket) retryAfter() int {
	if tb.refillRate <= 0 {
		return 60
	}
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return max(int(math.Ceil((1-tb.tokens)/float64(tb.refillRate))), 1)
}

func (tb *TokenBucket) idleFor(now time.Time) time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return now.Sub(tb.lastRefill)
}

type endpointLimit struct {
	capacity   int
	refillRate int
}

// RateLimiter keeps one token bucket per client and route family
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex

	fallback endpointLimit
	limits   map[string]endpointLimit
}

// NewRateLimiter creates a rate limiter. rps and burst are the defaults;
// resolution gets twice the default and ruleset management half of it.
func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		buckets:  make(map[string]*TokenBucket),
		fallback: endpointLimit{capacity: burst, refillRate: rps},
		limits: map[string]endpointLimit{
			"/v1/related":  {capacity: burst * 2, refillRate: rps * 2},
			"/v1/rulesets": {capacity: max(burst/2, 1), refillRate: max(rps/2, 1)},
			"/v1/reload":   {capacity: 5, refillRate: 1},
			"/health":      {capacity: 20, refillRate: 2},
			"/metrics":     {capacity: 20, refillRate: 2},
		},
	}
}

// routeFamily maps a request path onto the key its limit is configured under,
// so /v1/rulesets/<id> shares the /v1/rulesets bucket
func (rl *RateLimiter) routeFamily(path string) string {
	path = strings.TrimSuffix(path, "/")
	if _, ok := rl.limits[path]; ok {
		return path
	}
	for family := range rl.limits {
		if strings.HasPrefix(path, family+"/") {
			return family
		}
	}
	return path
}

func (rl *RateLimiter) limitFor(family string) endpointLimit {
	if l, ok := rl.limits[family]; ok {
		return l
	}
	return rl.fallback
}

// getBucket gets or creates the bucket for a client and route family
func (rl *RateLimiter) getBucket(clientID, family string) *TokenBucket {
	key := clientID + ":" + family

	rl.mutex.RLock()
	bucket, ok := rl.buckets[key]
	rl.mutex.RUnlock()
	if ok {
		return bucket
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if bucket, ok := rl.buckets[key]; ok {
		return bucket
	}
	l := rl.limitFor(family)
	bucket = NewTokenBucket(l.capacity, l.refillRate)
	rl.buckets[key] = bucket
	return bucket
}

// clientID identifies the caller by API key, then by IP
func clientID(c *fiber.Ctx) string {
	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return "api:" + apiKey
	}
	return "ip:" + c.IP()
}

// Middleware returns a Fiber middleware that rejects requests over the limit with 429
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := clientID(c)
		family := rl.routeFamily(c.Path())
		bucket := rl.getBucket(client, family)

		c.Set("X-RateLimit-Limit", strconv.Itoa(bucket.capacity))

		if bucket.Allow() {
			c.Set("X-RateLimit-Remaining", strconv.Itoa(bucket.remaining()))
			return c.Next()
		}

		retryAfter := bucket.retryAfter()
		appErr := domain.NewAppError(
			domain.ErrRateLimit,
			"Rate limit exceeded",
			429,
			map[string]any{
				"endpoint":    family,
				"retry_after": retryAfter,
			},
		).WithContext(c.UserContext(), "rate_limit")

		log.Debug().
			Str("client", client).
			Str("endpoint", family).
			Int("retry_after", retryAfter).
			Msg("Request throttled")

		c.Set("Retry-After", strconv.Itoa(retryAfter))
		c.Set("X-RateLimit-Remaining", "0")
		c.Set("X-RateLimit-Reset", time.Now().Add(time.Duration(retryAfter)*time.Second).Format(time.RFC3339))

		return c.Status(appErr.StatusCode).JSON(map[string]any{
			"status":  "error",
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		})
	}
}

// CleanupOldBuckets drops buckets idle for longer than an hour
func (rl *RateLimiter) CleanupOldBuckets() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		if bucket.idleFor(now) > bucketIdleTTL {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs CleanupOldBuckets periodically until the returned stop is called
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(cleanupInterval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	limits := make(map[string]map[string]int, len(rl.limits))
	for family, l := range rl.limits {
		limits[family] = map[string]int{"capacity": l.capacity, "refill_rate": l.refillRate}
	}

	return map[string]any{
		"active_buckets":      len(rl.buckets),
		"default_capacity":    rl.fallback.capacity,
		"default_refill_rate": rl.fallback.refillRate,
		"endpoint_limits":     limits,
	}
}
