package security

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewAuthenticator_Defaults(t *testing.T) {
	config := &Config{}
	auth := NewAuthenticator(config, testLogger())

	assert.Equal(t, 24*time.Hour, auth.config.JWTExpiry)
	assert.Equal(t, []string{"/health", "/metrics", "/docs"}, auth.config.PublicPaths)
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	auth := NewAuthenticator(&Config{
		APIKeys:      []string{"valid-key-1", "valid-key-2"},
		AdminAPIKeys: []string{"admin-key"},
	}, testLogger())

	tests := []struct {
		name      string
		apiKey    string
		wantErr   bool
		wantAdmin bool
	}{
		{name: "valid API key 1", apiKey: "valid-key-1"},
		{name: "valid API key 2", apiKey: "valid-key-2"},
		{name: "admin key", apiKey: "admin-key", wantAdmin: true},
		{name: "invalid API key", apiKey: "invalid-key", wantErr: true},
		{name: "empty API key", apiKey: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := auth.ValidateAPIKey(tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, info)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "api_key", info.Method)
			assert.NotContains(t, info.Subject, tt.apiKey)
			assert.True(t, info.HasScope(ScopeInvoke))
			assert.Equal(t, tt.wantAdmin, info.HasScope(ScopeAdmin))
		})
	}
}

func TestAuthenticator_IssueAndValidateJWT(t *testing.T) {
	auth := NewAuthenticator(&Config{JWTSecret: testSecret, JWTExpiry: time.Hour}, testLogger())

	token, err := auth.IssueToken("studio-frontend", []string{ScopeInvoke})
	require.NoError(t, err)

	claims, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "studio-frontend", claims.Subject)
	assert.Equal(t, []string{ScopeInvoke}, claims.Scopes)
	assert.Equal(t, "model-router", claims.Issuer)

	info, err := auth.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "jwt", info.Method)
	require.NotNil(t, info.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *info.ExpiresAt, time.Minute)
}

func TestAuthenticator_ValidateJWT_Invalid(t *testing.T) {
	auth := NewAuthenticator(&Config{JWTSecret: testSecret}, testLogger())

	other := NewAuthenticator(&Config{JWTSecret: "some-other-secret-that-is-long-enough"}, testLogger())
	foreign, err := other.IssueToken("intruder", []string{ScopeAdmin})
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "late",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "invalid token format", token: "not.a.jwt"},
		{name: "malformed token", token: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
		{name: "wrong secret", token: foreign},
		{name: "expired", token: expiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := auth.ValidateJWT(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestAuthenticator_AuthenticateWithoutSecret(t *testing.T) {
	auth := NewAuthenticator(&Config{APIKeys: []string{"api-key-test"}}, testLogger())

	_, err := auth.Authenticate("not-a-key")
	assert.Error(t, err)

	_, err = auth.IssueToken("anyone", nil)
	assert.Error(t, err)
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth := NewAuthenticator(&Config{
		APIKeys:     []string{"valid-key-123"},
		JWTSecret:   testSecret,
		RequireAuth: true,
	}, testLogger())

	token, err := auth.IssueToken("svc", []string{ScopeInvoke})
	require.NoError(t, err)

	var seen *AuthInfo
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetAuthInfo(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "public health", path: "/health", wantStatus: http.StatusOK},
		{name: "public metrics", path: "/metrics", wantStatus: http.StatusOK},
		{name: "missing token", path: "/v1/tasks", wantStatus: http.StatusUnauthorized},
		{name: "bad key", path: "/v1/tasks", headers: map[string]string{"X-API-Key": "wrong"}, wantStatus: http.StatusUnauthorized},
		{name: "api key header", path: "/v1/tasks", headers: map[string]string{"X-API-Key": "valid-key-123"}, wantStatus: http.StatusOK},
		{name: "bearer api key", path: "/v1/tasks", headers: map[string]string{"Authorization": "Bearer valid-key-123"}, wantStatus: http.StatusOK},
		{name: "bearer jwt", path: "/v1/tasks", headers: map[string]string{"Authorization": "Bearer " + token}, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if rec.Code == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "authentication_error")
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	assert.Equal(t, "svc", seen.Subject)
}

func TestAuthenticator_RequireScope(t *testing.T) {
	auth := NewAuthenticator(&Config{
		APIKeys:      []string{"user-key"},
		AdminAPIKeys: []string{"admin-key"},
		RequireAuth:  true,
	}, testLogger())

	handler := auth.Middleware()(auth.RequireScope(ScopeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for key, want := range map[string]int{
		"user-key":  http.StatusForbidden,
		"admin-key": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/availability/refresh", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, key)
	}

	open := NewAuthenticator(&Config{}, testLogger())
	rec := httptest.NewRecorder()
	open.RequireScope(ScopeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   string
	}{
		{name: "normal API key", apiKey: "sk-1234567890abcdef", want: "sk-1****cdef"},
		{name: "short API key", apiKey: "short", want: "****"},
		{name: "exactly 8 chars", apiKey: "12345678", want: "****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskKey(tt.apiKey))
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.3")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}

func TestGetAuthInfo(t *testing.T) {
	info := &AuthInfo{Subject: "test-user", Scopes: []string{ScopeInvoke}}

	result, ok := GetAuthInfo(WithAuthInfo(context.Background(), info))
	assert.True(t, ok)
	assert.Equal(t, info, result)

	result, ok = GetAuthInfo(context.Background())
	assert.False(t, ok)
	assert.Nil(t, result)

	// plain string keys do not collide with ours
	wrongCtx := context.WithValue(context.Background(), "auth_info", info) //nolint:staticcheck
	_, ok = GetAuthInfo(wrongCtx)
	assert.False(t, ok)
}
