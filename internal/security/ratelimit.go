package security

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast one client may call the router
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	IdleTTL           time.Duration `yaml:"idle_ttl"`
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter keeps one token bucket per client key
type ClientRateLimiter struct {
	config *RateLimitConfig
	logger *logrus.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

// NewClientRateLimiter creates a per-client limiter
func NewClientRateLimiter(config *RateLimitConfig, logger *logrus.Logger) *ClientRateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.BurstSize <= 0 {
		config.BurstSize = config.RequestsPerMinute
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &ClientRateLimiter{
		config:  config,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
}

// Allow consumes one token for key. When denied it returns how long the
// client should wait.
func (l *ClientRateLimiter) Allow(key string) (bool, time.Duration) {
	if !l.config.Enabled {
		return true, 0
	}

	now := l.now()
	limiter := l.limiterFor(key, now)

	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len returns the number of tracked clients
func (l *ClientRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *ClientRateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// sweep idle clients opportunistically
	for k, c := range l.clients {
		if now.Sub(c.lastSeen) > l.config.IdleTTL {
			delete(l.clients, k)
		}
	}

	c, ok := l.clients[key]
	if !ok {
		perSecond := rate.Limit(float64(l.config.RequestsPerMinute) / 60)
		c = &clientLimiter{limiter: rate.NewLimiter(perSecond, l.config.BurstSize)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Middleware rejects clients that exceed their budget with 429
func (l *ClientRateLimiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			allowed, retryAfter := l.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.RequestsPerMinute))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			seconds := int(math.Ceil(retryAfter.Seconds()))
			l.logger.WithFields(logrus.Fields{
				"client":      key,
				"path":        r.URL.Path,
				"retry_after": seconds,
			}).Warn("Client rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"message":     "Rate limit exceeded",
					"type":        "rate_limit_error",
					"code":        http.StatusTooManyRequests,
					"retry_after": seconds,
				},
				"timestamp": time.Now().Unix(),
			})
		})
	}
}

// ClientKey identifies the caller by auth subject, falling back to IP
func ClientKey(r *http.Request) string {
	if info, ok := GetAuthInfo(r.Context()); ok {
		return "sub:" + info.Subject
	}
	return "ip:" + ClientIP(r)
}
