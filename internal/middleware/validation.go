package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/sirupsen/logrus"
)

// ValidationConfig configures the validation middleware
type ValidationConfig struct {
	Enabled        bool  `yaml:"enabled"`
	MaxRequestSize int64 `yaml:"max_request_size"`
}

// ValidationMiddleware validates requests against the router's OpenAPI document
type ValidationMiddleware struct {
	router  routers.Router
	config  *ValidationConfig
	logger  *logrus.Logger
	enabled bool
}

// NewValidationMiddleware loads spec and builds the route matcher. A disabled
// middleware passes every request through.
func NewValidationMiddleware(spec []byte, config *ValidationConfig, logger *logrus.Logger) (*ValidationMiddleware, error) {
	if config == nil {
		config = &ValidationConfig{}
	}
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = 1 << 20
	}

	vm := &ValidationMiddleware{
		config:  config,
		logger:  logger,
		enabled: config.Enabled,
	}
	if !config.Enabled {
		logger.Info("API validation middleware disabled")
		return vm, nil
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	// match on path only, whatever host the router is deployed behind
	doc.Servers = nil

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}
	vm.router = router

	logger.WithField("paths", doc.Paths.Len()).Info("API validation middleware enabled")
	return vm, nil
}

// Middleware returns the HTTP middleware function
func (vm *ValidationMiddleware) Middleware(next http.Handler) http.Handler {
	if !vm.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := vm.validateRequest(r); err != nil {
			vm.logger.WithError(err).WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Warn("Request validation failed")

			writeValidationError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (vm *ValidationMiddleware) validateRequest(r *http.Request) error {
	route, pathParams, err := vm.router.FindRoute(r)
	if err != nil {
		// undocumented routes such as /metrics and /docs pass through
		if errors.Is(err, routers.ErrPathNotFound) {
			return nil
		}
		return err
	}

	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, vm.config.MaxRequestSize+1))
		if err != nil {
			return fmt.Errorf("failed to read request body: %w", err)
		}
		if int64(len(body)) > vm.config.MaxRequestSize {
			return fmt.Errorf("request body exceeds %d bytes", vm.config.MaxRequestSize)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		defer func() { r.Body = io.NopCloser(bytes.NewReader(body)) }()
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    r,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			// credentials are checked by the auth middleware
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	return openapi3filter.ValidateRequest(context.Background(), input)
}

func writeValidationError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, routers.ErrMethodNotAllowed) {
		status = http.StatusMethodNotAllowed
	}

	details := map[string]interface{}{}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			details["parameter"] = reqErr.Parameter.Name
		}
		if reqErr.RequestBody != nil {
			details["field"] = "request body"
		}
		details["reason"] = reqErr.Reason
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": err.Error(),
			"type":    "validation_error",
			"code":    status,
			"details": details,
		},
		"timestamp": time.Now().Unix(),
	})
}
