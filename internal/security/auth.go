package security

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Scopes granted to callers
const (
	ScopeInvoke = "router:invoke"
	ScopeAdmin  = "router:admin"
)

const issuer = "model-router"

type contextKey string

const authInfoKey contextKey = "auth_info"

// AuthInfo describes an authenticated caller
type AuthInfo struct {
	Subject   string     `json:"subject"`
	Method    string     `json:"method"` // "api_key" or "jwt"
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// HasScope reports whether the caller was granted scope
func (a *AuthInfo) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Claims is the JWT payload accepted by the router
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	APIKeys      []string      `yaml:"api_keys"`
	AdminAPIKeys []string      `yaml:"admin_api_keys"`
	JWTSecret    string        `yaml:"jwt_secret"`
	JWTExpiry    time.Duration `yaml:"jwt_expiry"`
	RequireAuth  bool          `yaml:"require_auth"`

	// Paths served without credentials, matched by prefix
	PublicPaths []string `yaml:"public_paths"`
}

// Authenticator validates API keys and JWTs
type Authenticator struct {
	config *Config
	logger *logrus.Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(config *Config, logger *logrus.Logger) *Authenticator {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	if config.PublicPaths == nil {
		config.PublicPaths = []string{"/health", "/metrics", "/docs"}
	}
	return &Authenticator{
		config: config,
		logger: logger,
	}
}

// Authenticate accepts either an API key or a signed JWT
func (a *Authenticator) Authenticate(token string) (*AuthInfo, error) {
	if info, err := a.ValidateAPIKey(token); err == nil {
		return info, nil
	}

	if a.config.JWTSecret == "" {
		return nil, errors.New("invalid API key")
	}

	claims, err := a.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	info := &AuthInfo{
		Subject: claims.Subject,
		Method:  "jwt",
		Scopes:  claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = &claims.ExpiresAt.Time
	}
	return info, nil
}

// ValidateAPIKey checks key against the configured keys in constant time
func (a *Authenticator) ValidateAPIKey(key string) (*AuthInfo, error) {
	if key == "" {
		return nil, errors.New("API key is required")
	}

	if matchKey(key, a.config.AdminAPIKeys) {
		return &AuthInfo{Subject: keySubject(key), Method: "api_key", Scopes: []string{ScopeInvoke, ScopeAdmin}}, nil
	}
	if matchKey(key, a.config.APIKeys) {
		return &AuthInfo{Subject: keySubject(key), Method: "api_key", Scopes: []string{ScopeInvoke}}, nil
	}
	return nil, errors.New("invalid API key")
}

// IssueToken signs a JWT for subject with the given scopes
func (a *Authenticator) IssueToken(subject string, scopes []string) (string, error) {
	if a.config.JWTSecret == "" {
		return "", errors.New("JWT secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT parses and verifies a token signed with the configured secret
func (a *Authenticator) ValidateJWT(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT token")
	}
	return claims, nil
}

// Middleware rejects requests without valid credentials when auth is required
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.config.RequireAuth || a.isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			info, err := a.Authenticate(token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"path":       r.URL.Path,
					"method":     r.Method,
					"remote_ip":  ClientIP(r),
					"key_prefix": MaskKey(token),
				}).WithError(err).Warn("Authentication failed")
				writeAuthError(w, http.StatusUnauthorized, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}

// RequireScope rejects authenticated callers lacking scope. When auth is
// disabled every caller is allowed.
func (a *Authenticator) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.config.RequireAuth {
				next.ServeHTTP(w, r)
				return
			}
			info, ok := GetAuthInfo(r.Context())
			if !ok || !info.HasScope(scope) {
				writeAuthError(w, http.StatusForbidden, "Missing scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) isPublic(path string) bool {
	for _, prefix := range a.config.PublicPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// WithAuthInfo stores the caller identity on ctx
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

// GetAuthInfo extracts authentication info from request context
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.Header.Get("X-API-Key")
}

func matchKey(key string, keys []string) bool {
	for _, valid := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// keySubject derives a stable, non-reversible subject from an API key
func keySubject(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:6])
}

// MaskKey hides all but the edges of a credential for logging
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// ClientIP returns the originating client address
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	errType := "authentication_error"
	if status == http.StatusForbidden {
		errType = "authorization_error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"code":    status,
		},
		"timestamp": time.Now().Unix(),
	})
}
