package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/docs"
	"github.com/architect-ai/model-router/internal/metrics"
	"github.com/architect-ai/model-router/internal/middleware"
	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/routing"
	"github.com/architect-ai/model-router/internal/security"
	"github.com/architect-ai/model-router/internal/types"
)

// ModelRouter is the routing surface the HTTP server exposes
type ModelRouter interface {
	InvokeText(ctx context.Context, taskIdentifier string, params *types.TextParams) (*types.InvocationResult, error)
	InvokeImage(ctx context.Context, taskIdentifier string, params *types.ImageParams) (*types.InvocationResult, error)
	GetModelConfig(taskIdentifier string) (*types.ResolvedModelConfig, error)
	Explain(taskIdentifier string, opts types.InvocationOptions) (*routing.RoutingDecision, error)
	Registry() *registry.Registry
	Stats() map[string]types.PerformanceEntry
	Availability() types.AvailabilitySnapshot
	RefreshAvailability(ctx context.Context) (types.AvailabilitySnapshot, error)
}

// Server represents the HTTP server
type Server struct {
	router     ModelRouter
	httpServer *http.Server
	logger     *logrus.Logger
	config     *ServerConfig

	security   *middleware.SecurityMiddleware
	validation *middleware.ValidationMiddleware
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string                               `yaml:"port"`
	ReadTimeout    time.Duration                        `yaml:"read_timeout"`
	WriteTimeout   time.Duration                        `yaml:"write_timeout"`
	IdleTimeout    time.Duration                        `yaml:"idle_timeout"`
	MaxHeaderBytes int                                  `yaml:"max_header_bytes"`
	MaxRequestSize int64                                `yaml:"max_request_size"`
	Security       *middleware.SecurityMiddlewareConfig `yaml:"security"`
	Validation     *middleware.ValidationConfig         `yaml:"validation"`
}

type requestIDKey struct{}

// textInvocationRequest is the body of POST /v1/invoke/text
type textInvocationRequest struct {
	Task string `json:"task"`
	types.TextParams
}

// imageInvocationRequest is the body of POST /v1/invoke/image
type imageInvocationRequest struct {
	Task string `json:"task"`
	types.ImageParams
}

// NewServer creates a new server instance
func NewServer(router ModelRouter, config *ServerConfig, logger *logrus.Logger) (*Server, error) {
	if config.MaxRequestSize <= 0 {
		config.MaxRequestSize = 1 << 20
	}

	server := &Server{
		router: router,
		logger: logger,
		config: config,
	}

	if config.Security != nil {
		server.security = middleware.NewSecurityMiddleware(config.Security, logger)
	}

	if config.Validation != nil {
		if config.Validation.MaxRequestSize <= 0 {
			config.Validation.MaxRequestSize = config.MaxRequestSize
		}
		validation, err := middleware.NewValidationMiddleware(docs.OpenAPI, config.Validation, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize validation middleware: %w", err)
		}
		server.validation = validation
	}

	return server, nil
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting model router server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping model router server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.setupRoutes()

	if s.validation != nil {
		handler = s.validation.Middleware(handler)
	}
	handler = s.limitBodyMiddleware(handler)
	if s.security != nil {
		handler = s.security.Handler()(handler)
	}
	return s.loggingMiddleware(handler)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrumentMiddleware)
	r.Use(s.contentTypeMiddleware)

	api := r.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/invoke/text", s.handleInvokeText).Methods(http.MethodPost)
	api.HandleFunc("/invoke/image", s.handleInvokeImage).Methods(http.MethodPost)

	api.HandleFunc("/models/{task}", s.handleGetModelConfig).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)

	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)
	api.Handle("/availability/refresh", s.requireScope(security.ScopeAdmin, http.HandlerFunc(s.handleRefreshAvailability))).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.setupDocsRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		// Create a custom response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  r.UserAgent(),
			"remote_addr": security.ClientIP(r),
		}).Info("HTTP request")
	})
}

// instrumentMiddleware runs inside the mux so the route template is known
func (s *Server) instrumentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) limitBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !isJSONContentType(contentType) {
				s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireScope(scope string, next http.Handler) http.Handler {
	if s.security == nil {
		return next
	}
	return s.security.RequireScope(scope)(next)
}

// Handlers

// handleInvokeText runs a text task through its tier chain
func (s *Server) handleInvokeText(w http.ResponseWriter, r *http.Request) {
	var req textInvocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.Task == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "task is required")
		return
	}
	req.Options.RequestID = s.requestID(r, req.Options.RequestID)

	result, err := s.router.InvokeText(r.Context(), req.Task, &req.TextParams)
	s.writeInvocationResult(w, req.Task, result, err)
}

// handleInvokeImage runs an image task through its tier chain
func (s *Server) handleInvokeImage(w http.ResponseWriter, r *http.Request) {
	var req imageInvocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.Task == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "task is required")
		return
	}
	req.Options.RequestID = s.requestID(r, req.Options.RequestID)

	result, err := s.router.InvokeImage(r.Context(), req.Task, &req.ImageParams)
	s.writeInvocationResult(w, req.Task, result, err)
}

func (s *Server) writeInvocationResult(w http.ResponseWriter, task string, result *types.InvocationResult, err error) {
	if err != nil {
		if types.IsConfigurationError(err) {
			s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).WithField("task", task).Error("Invocation failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, "Invocation failed")
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, result)
}

// handleGetModelConfig resolves a task and explains how it would be routed
func (s *Server) handleGetModelConfig(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]

	config, err := s.router.GetModelConfig(task)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := types.InvocationOptions{
		DisableFallback:  r.URL.Query().Get("disable_fallback") == "true",
		DisableEmergency: r.URL.Query().Get("disable_emergency") == "true",
	}
	decision, err := s.router.Explain(task, opts)
	if err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"config":   config,
		"decision": decision,
	})
}

// handleListTasks lists canonical tasks with their kind, plus the alias table
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reg := s.router.Registry()

	tasks := make([]map[string]interface{}, 0)
	for _, task := range reg.Tasks() {
		tasks = append(tasks, map[string]interface{}{
			"task": task,
			"kind": task.Kind(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks":   tasks,
		"aliases": reg.Aliases(),
		"count":   len(tasks),
	})
}

// handleAvailability returns the cached availability snapshot
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.router.Availability())
}

// handleRefreshAvailability probes every provider before answering
func (s *Server) handleRefreshAvailability(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.router.RefreshAvailability(r.Context())
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, fmt.Sprintf("Availability refresh failed: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

// handleStats returns observed latency per task and model
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.router.Stats()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"performance": stats,
		"count":       len(stats),
		"timestamp":   time.Now().Unix(),
	})
}

// handleHealthCheck reports liveness. Unavailable providers degrade the
// status but never fail the check, since invocation still attempts them.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	snapshot := s.router.Availability()

	status := "healthy"
	for _, available := range snapshot.Providers {
		if !available {
			status = "degraded"
			break
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"providers": snapshot.Providers,
		"timestamp": time.Now().Unix(),
	}
	if s.security != nil {
		response["security"] = s.security.GetStats()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// Helper functions

func (s *Server) requestID(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	errType := "api_error"
	if statusCode == http.StatusBadRequest {
		errType = "invalid_request_error"
	}

	s.writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
			"code":    statusCode,
		},
		"timestamp": time.Now().Unix(),
	})
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
