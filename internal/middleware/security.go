package middleware

import (
	"net/http"
	"strings"

	"github.com/architect-ai/model-router/internal/security"
	"github.com/sirupsen/logrus"
)

// CORSConfig lists the origins allowed to call the router from a browser
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SecurityMiddlewareConfig holds configuration for security middleware
type SecurityMiddlewareConfig struct {
	Auth      *security.Config          `yaml:"auth"`
	RateLimit *security.RateLimitConfig `yaml:"rate_limit"`
	CORS      *CORSConfig               `yaml:"cors"`
}

// SecurityMiddleware combines all security middleware components
type SecurityMiddleware struct {
	authenticator *security.Authenticator
	rateLimiter   *security.ClientRateLimiter
	cors          *CORSConfig
	logger        *logrus.Logger
}

// NewSecurityMiddleware creates a new security middleware stack
func NewSecurityMiddleware(config *SecurityMiddlewareConfig, logger *logrus.Logger) *SecurityMiddleware {
	s := &SecurityMiddleware{logger: logger}

	if config.Auth != nil {
		s.authenticator = security.NewAuthenticator(config.Auth, logger)
	}
	if config.RateLimit != nil && config.RateLimit.Enabled {
		s.rateLimiter = security.NewClientRateLimiter(config.RateLimit, logger)
	}
	if config.CORS != nil && config.CORS.Enabled {
		s.cors = config.CORS
	}
	return s
}

// Handler creates the complete security middleware chain
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Build middleware chain in reverse order (innermost first)
		handler := next

		// rate limiting runs after auth so limits follow the caller identity
		if s.rateLimiter != nil {
			handler = s.rateLimiter.Middleware(security.ClientKey)(handler)
		}
		if s.authenticator != nil {
			handler = s.authenticator.Middleware()(handler)
		}
		if s.cors != nil {
			handler = s.corsMiddleware()(handler)
		}

		return s.securityHeadersMiddleware()(handler)
	}
}

// RequireScope guards admin routes. Without an authenticator it is a no-op.
func (s *SecurityMiddleware) RequireScope(scope string) func(http.Handler) http.Handler {
	if s.authenticator != nil {
		return s.authenticator.RequireScope(scope)
	}
	return func(next http.Handler) http.Handler { return next }
}

// Authenticator exposes the configured authenticator, nil when auth is off
func (s *SecurityMiddleware) Authenticator() *security.Authenticator {
	return s.authenticator
}

// GetStats returns security middleware statistics
func (s *SecurityMiddleware) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"authentication_enabled": s.authenticator != nil,
		"rate_limiter_enabled":   s.rateLimiter != nil,
		"cors_enabled":           s.cors != nil,
	}
	if s.rateLimiter != nil {
		stats["rate_limited_clients"] = s.rateLimiter.Len()
	}
	return stats
}

// securityHeadersMiddleware adds security headers to responses
func (s *SecurityMiddleware) securityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Server", "Model-Router/1.0")
			w.Header().Set("X-API-Version", "1.0")

			next.ServeHTTP(w, r)
		})
	}
}

func (s *SecurityMiddleware) corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && s.originAllowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			// Handle preflight OPTIONS requests
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (s *SecurityMiddleware) originAllowed(origin string) bool {
	for _, allowed := range s.cors.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
