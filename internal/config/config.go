package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/architect-ai/model-router/internal/invocation"
	"github.com/architect-ai/model-router/internal/middleware"
	"github.com/architect-ai/model-router/internal/overrides"
	"github.com/architect-ai/model-router/internal/performance"
	"github.com/architect-ai/model-router/internal/providers/anthropic"
	"github.com/architect-ai/model-router/internal/providers/gemini"
	"github.com/architect-ai/model-router/internal/providers/openai"
	"github.com/architect-ai/model-router/internal/providers/together"
	"github.com/architect-ai/model-router/internal/security"
	"github.com/architect-ai/model-router/internal/server"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Router    RouterConfig    `yaml:"router"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// RouterConfig holds routing engine configuration
type RouterConfig struct {
	TextTimeout         time.Duration            `yaml:"text_timeout"`
	ImageTimeout        time.Duration            `yaml:"image_timeout"`
	ProbeTimeout        time.Duration            `yaml:"probe_timeout"`
	OverridePrefix      string                   `yaml:"override_prefix"`
	PerformanceCapacity int                      `yaml:"performance_capacity"`
	RateLimits          map[string]time.Duration `yaml:"rate_limits"`
}

// ProvidersConfig holds configuration for all providers. A provider without
// an API key is not registered.
type ProvidersConfig struct {
	OpenAI    *openai.Config    `yaml:"openai"`
	Anthropic *anthropic.Config `yaml:"anthropic"`
	Gemini    *gemini.Config    `yaml:"gemini"`
	Together  *together.Config  `yaml:"together"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys           []string        `yaml:"api_keys"`
	AdminAPIKeys      []string        `yaml:"admin_api_keys"`
	JWTSecret         string          `yaml:"jwt_secret"`
	JWTExpiry         time.Duration   `yaml:"jwt_expiry"`
	RateLimiting      RateLimitConfig `yaml:"rate_limiting"`
	CORS              CORSConfig      `yaml:"cors"`
	RequestValidation bool            `yaml:"request_validation"`
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
	BurstSize      int  `yaml:"burst_size"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EnvFiles are loaded, when present, before the config file is read.
// Variables already set in the environment win.
var EnvFiles = []string{".env"}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	if err := loadEnvFiles(EnvFiles); err != nil {
		return nil, err
	}

	// Load from file if provided
	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:        "8080",
		ReadTimeout: 30 * time.Second,
		// three image attempts must fit in one response
		WriteTimeout:   7 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		MaxRequestSize: 1 << 20,
	}

	c.Router = RouterConfig{
		TextTimeout:         invocation.DefaultTextTimeout,
		ImageTimeout:        invocation.DefaultImageTimeout,
		ProbeTimeout:        10 * time.Second,
		OverridePrefix:      overrides.DefaultPrefix,
		PerformanceCapacity: performance.DefaultCapacity,
		RateLimits:          map[string]time.Duration{},
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		APIKeys:      []string{},
		AdminAPIKeys: []string{},
		JWTExpiry:    24 * time.Hour,
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
		},
		CORS: CORSConfig{
			Enabled:        false,
			AllowedOrigins: []string{"*"},
		},
		RequestValidation: true,
	}

	c.Providers = ProvidersConfig{
		OpenAI: &openai.Config{
			ProbeModel: "gpt-4o-mini",
			JSONSchema: true,
			Timeout:    120 * time.Second,
		},
		Anthropic: &anthropic.Config{
			ProbeModel: "claude-3-5-haiku-latest",
			Timeout:    120 * time.Second,
		},
		Gemini: &gemini.Config{
			ProbeModel: "gemini-2.0-flash",
			Timeout:    120 * time.Second,
		},
		Together: &together.Config{
			BaseURL: together.DefaultBaseURL,
			Timeout: 120 * time.Second,
		},
	}
}

func loadEnvFiles(files []string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", file, err)
		}
	}
	return nil
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// ExpandEnv replaces ${VAR} and ${VAR:-default} references. Unset
// variables without a default expand to the empty string.
func ExpandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envPattern.FindStringSubmatch(match)
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	// Server configuration
	if port := os.Getenv("MODEL_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}

	// Provider API keys
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Providers.OpenAI == nil {
			c.Providers.OpenAI = &openai.Config{}
		}
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c.Providers.Anthropic == nil {
			c.Providers.Anthropic = &anthropic.Config{}
		}
		c.Providers.Anthropic.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.Providers.Gemini == nil {
			c.Providers.Gemini = &gemini.Config{}
		}
		c.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("TOGETHER_API_KEY"); key != "" {
		if c.Providers.Together == nil {
			c.Providers.Together = &together.Config{BaseURL: together.DefaultBaseURL}
		}
		c.Providers.Together.APIKey = key
	}

	// Logging configuration
	if level := os.Getenv("MODEL_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("MODEL_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	// Security configuration
	if keys := os.Getenv("MODEL_ROUTER_API_KEYS"); keys != "" {
		c.Security.APIKeys = splitList(keys)
	}
	if keys := os.Getenv("MODEL_ROUTER_ADMIN_API_KEYS"); keys != "" {
		c.Security.AdminAPIKeys = splitList(keys)
	}
	if secret := os.Getenv("MODEL_ROUTER_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}

	// Router configuration
	if seconds := os.Getenv("MODEL_ROUTER_TEXT_TIMEOUT_SECONDS"); seconds != "" {
		if n, err := strconv.Atoi(seconds); err == nil {
			c.Router.TextTimeout = time.Duration(n) * time.Second
		}
	}
	if seconds := os.Getenv("MODEL_ROUTER_IMAGE_TIMEOUT_SECONDS"); seconds != "" {
		if n, err := strconv.Atoi(seconds); err == nil {
			c.Router.ImageTimeout = time.Duration(n) * time.Second
		}
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Router.TextTimeout <= 0 || c.Router.ImageTimeout <= 0 {
		return fmt.Errorf("tier timeouts must be positive")
	}
	if c.Router.OverridePrefix == "" {
		return fmt.Errorf("override prefix cannot be empty")
	}
	for provider, interval := range c.Router.RateLimits {
		if interval < 0 {
			return fmt.Errorf("rate limit for %s cannot be negative", provider)
		}
	}

	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.Security.RateLimiting.Enabled && c.Security.RateLimiting.RequestsPerMin <= 0 {
		return fmt.Errorf("requests_per_minute must be positive when rate limiting is enabled")
	}

	return nil
}

// RequireAuth reports whether any credential is configured
func (c *Config) RequireAuth() bool {
	return len(c.Security.APIKeys) > 0 || len(c.Security.AdminAPIKeys) > 0 || c.Security.JWTSecret != ""
}

// ToServerConfig converts to server.ServerConfig
func (c *Config) ToServerConfig() *server.ServerConfig {
	cfg := &server.ServerConfig{
		Port:           c.Server.Port,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		IdleTimeout:    c.Server.IdleTimeout,
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
		MaxRequestSize: c.Server.MaxRequestSize,
		Security:       c.ToSecurityMiddlewareConfig(),
	}
	if c.Security.RequestValidation {
		cfg.Validation = &middleware.ValidationConfig{
			Enabled:        true,
			MaxRequestSize: c.Server.MaxRequestSize,
		}
	}
	return cfg
}

// ToSecurityMiddlewareConfig converts to middleware.SecurityMiddlewareConfig
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	return &middleware.SecurityMiddlewareConfig{
		Auth: &security.Config{
			APIKeys:      c.Security.APIKeys,
			AdminAPIKeys: c.Security.AdminAPIKeys,
			JWTSecret:    c.Security.JWTSecret,
			JWTExpiry:    c.Security.JWTExpiry,
			RequireAuth:  c.RequireAuth(),
		},
		RateLimit: &security.RateLimitConfig{
			Enabled:           c.Security.RateLimiting.Enabled,
			RequestsPerMinute: c.Security.RateLimiting.RequestsPerMin,
			BurstSize:         c.Security.RateLimiting.BurstSize,
		},
		CORS: &middleware.CORSConfig{
			Enabled:        c.Security.CORS.Enabled,
			AllowedOrigins: c.Security.CORS.AllowedOrigins,
		},
	}
}

// ToEngineConfig converts to invocation.Config
func (c *Config) ToEngineConfig() invocation.Config {
	return invocation.Config{
		TextTimeout:  c.Router.TextTimeout,
		ImageTimeout: c.Router.ImageTimeout,
	}
}

// SaveToFile saves the current configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetEnabledProviders returns a list of provider families with credentials
func (c *Config) GetEnabledProviders() []string {
	var providers []string

	if c.Providers.OpenAI != nil && c.Providers.OpenAI.APIKey != "" {
		providers = append(providers, "openai")
	}
	if c.Providers.Anthropic != nil && c.Providers.Anthropic.APIKey != "" {
		providers = append(providers, "anthropic")
	}
	if c.Providers.Gemini != nil && c.Providers.Gemini.APIKey != "" {
		providers = append(providers, "gemini")
	}
	if c.Providers.Together != nil && c.Providers.Together.APIKey != "" {
		providers = append(providers, "together")
	}

	return providers
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
