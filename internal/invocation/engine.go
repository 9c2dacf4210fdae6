package invocation

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/metrics"
	"github.com/architect-ai/model-router/internal/performance"
	"github.com/architect-ai/model-router/internal/providers"
	"github.com/architect-ai/model-router/internal/throttle"
	"github.com/architect-ai/model-router/internal/types"
)

const (
	DefaultTextTimeout  = 60 * time.Second
	DefaultImageTimeout = 120 * time.Second

	defaultImageSize  = 1024
	defaultImageSteps = 28
)

// Config bounds single tier attempts
type Config struct {
	TextTimeout  time.Duration
	ImageTimeout time.Duration
}

// Engine performs exactly one provider call for one tier
type Engine struct {
	providers *providers.Set
	tracker   *performance.Tracker
	pacer     *throttle.Pacer
	config    Config
	logger    *logrus.Logger
	seed      func() int64
}

// NewEngine creates an invocation engine
func NewEngine(set *providers.Set, tracker *performance.Tracker, pacer *throttle.Pacer, config Config, logger *logrus.Logger) *Engine {
	if config.TextTimeout <= 0 {
		config.TextTimeout = DefaultTextTimeout
	}
	if config.ImageTimeout <= 0 {
		config.ImageTimeout = DefaultImageTimeout
	}
	return &Engine{
		providers: set,
		tracker:   tracker,
		pacer:     pacer,
		config:    config,
		logger:    logger,
		seed:      func() int64 { return rand.Int64N(1 << 31) },
	}
}

// InvokeText calls the text provider bound to tier. Structured output that
// cannot be parsed is replaced by params.Fallback and never returned as an error.
func (e *Engine) InvokeText(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier, params *types.TextParams) (*types.ProviderResponse, error) {
	tc, err := tierConfig(cfg, tier)
	if err != nil {
		return nil, err
	}

	req, err := buildTextRequest(tc, params)
	if err != nil {
		return nil, types.NewConfigurationError(cfg.TaskIdentifier, "invalid response schema: %v", err)
	}

	resp, err := e.attempt(ctx, cfg, tier, tc, e.config.TextTimeout, params.JSON, func(attemptCtx context.Context) (*types.ProviderResponse, error) {
		provider, ok := e.providers.Text(tc.Provider)
		if !ok {
			return nil, providers.NotRegistered(tc.Provider, tc.Model)
		}
		return provider.Complete(attemptCtx, req)
	})
	if err != nil {
		return nil, err
	}

	if !params.JSON {
		resp.Data = resp.Content
		return resp, nil
	}

	data, parseErr := ParseStructured(resp.Content)
	if parseErr != nil {
		perr := &types.ParseError{
			Task:    string(cfg.ResolvedTaskIdentifier),
			Model:   tc.Model,
			Snippet: snippet(resp.Content, 200),
			Cause:   parseErr,
		}
		e.logger.WithFields(logrus.Fields{
			"task":     cfg.TaskIdentifier,
			"tier":     tier,
			"model":    tc.Model,
			"provider": tc.Provider,
			"snippet":  perr.Snippet,
		}).WithError(perr).Warn("Structured output unparseable, using fallback")
		metrics.ParseFallbacksTotal.WithLabelValues(string(cfg.ResolvedTaskIdentifier), tc.Model).Inc()

		resp.Data = params.Fallback
		resp.ParseError = perr.Error()
		return resp, nil
	}

	resp.Data = data
	return resp, nil
}

// InvokeImage calls the image provider bound to tier
func (e *Engine) InvokeImage(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier, params *types.ImageParams) (*types.ProviderResponse, error) {
	tc, err := tierConfig(cfg, tier)
	if err != nil {
		return nil, err
	}

	req := e.buildImageRequest(tc, params)

	resp, err := e.attempt(ctx, cfg, tier, tc, e.config.ImageTimeout, false, func(attemptCtx context.Context) (*types.ProviderResponse, error) {
		provider, ok := e.providers.Image(tc.Provider)
		if !ok {
			return nil, providers.NotRegistered(tc.Provider, tc.Model)
		}
		return provider.GenerateImage(attemptCtx, req)
	})
	if err != nil {
		return nil, err
	}

	if resp.Data == nil {
		resp.Data = map[string]interface{}{"url": resp.Content, "seed": req.Seed}
	}
	return resp, nil
}

type callFunc func(ctx context.Context) (*types.ProviderResponse, error)

// attempt bounds one call with the tier timeout, paces the provider and records
// exactly one performance and metrics sample. With allowEmpty set, empty content
// is handed back to the caller (structured calls turn it into the fallback).
func (e *Engine) attempt(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier, tc *types.TierConfig, timeout time.Duration, allowEmpty bool, call callFunc) (*types.ProviderResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := e.call(attemptCtx, tc, allowEmpty, call)
	latency := time.Since(start)

	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = &types.NetworkError{
			Provider: tc.Provider,
			Model:    tc.Model,
			Cause:    fmt.Errorf("tier timeout after %s: %w", timeout, err),
		}
	}
	if err != nil {
		err = types.WithTier(providers.Classify(tc.Provider, tc.Model, err), tier, tc.Model)
	}

	e.record(cfg, tier, tc, latency, err)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Engine) call(ctx context.Context, tc *types.TierConfig, allowEmpty bool, call callFunc) (*types.ProviderResponse, error) {
	if e.pacer != nil {
		if err := e.pacer.Wait(ctx, tc.Provider); err != nil {
			return nil, &types.NetworkError{Provider: tc.Provider, Model: tc.Model, Cause: err}
		}
	}

	resp, err := call(ctx)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, providers.StatusError(tc.Provider, tc.Model, 0, "nil response", providers.ErrEmptyResponse)
	}

	if resp.Content == "" && resp.Raw != nil {
		if content, ok := extractRaw(resp.Raw); ok {
			resp.Content = content
		}
	}
	if resp.Content == "" && !allowEmpty {
		return nil, providers.StatusError(tc.Provider, tc.Model, 0, "response contained no content", providers.ErrEmptyResponse)
	}
	if resp.Model == "" {
		resp.Model = tc.Model
	}
	if resp.Provider == "" {
		resp.Provider = tc.Provider
	}
	return resp, nil
}

func (e *Engine) record(cfg *types.ResolvedModelConfig, tier types.Tier, tc *types.TierConfig, latency time.Duration, err error) {
	task := string(cfg.ResolvedTaskIdentifier)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	if e.tracker != nil {
		e.tracker.Record(task, tc.Model, latency, err != nil)
	}
	metrics.InvocationsTotal.WithLabelValues(task, string(tier), tc.Provider, outcome).Inc()
	metrics.InvocationLatency.WithLabelValues(task, string(tier), tc.Provider).Observe(latency.Seconds())

	entry := e.logger.WithFields(logrus.Fields{
		"task":          cfg.TaskIdentifier,
		"resolved_task": task,
		"tier":          tier,
		"model":         tc.Model,
		"provider":      tc.Provider,
		"latency_ms":    latency.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("Tier invocation failed")
		return
	}
	entry.Debug("Tier invocation succeeded")
}

func tierConfig(cfg *types.ResolvedModelConfig, tier types.Tier) (*types.TierConfig, error) {
	if cfg == nil {
		return nil, types.NewConfigurationError("", "no model configuration")
	}
	tc := cfg.Tier(tier)
	if tc == nil {
		return nil, types.NewConfigurationError(cfg.TaskIdentifier, "tier %s is not configured", tier)
	}
	return tc, nil
}

func buildTextRequest(tc *types.TierConfig, params *types.TextParams) (*types.TextRequest, error) {
	req := &types.TextRequest{
		Model:       tc.Model,
		Temperature: tc.Params.Temperature,
		MaxTokens:   tc.Params.MaxTokens,
		TopP:        tc.Params.TopP,
		JSONMode:    params.JSON || tc.Params.ResponseFormat == "json_object",
	}

	if params.SystemPrompt != "" {
		req.Messages = append(req.Messages, types.Message{Role: "system", Content: params.SystemPrompt})
	}
	req.Messages = append(req.Messages, types.Message{Role: "user", Content: params.UserPrompt})

	if params.Temperature != nil {
		req.Temperature = params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = params.TopP
	}

	if params.Schema != nil {
		name, raw, err := ReflectSchema(params.Schema)
		if err != nil {
			return nil, err
		}
		if params.SchemaName != "" {
			name = params.SchemaName
		}
		req.Schema = raw
		req.SchemaName = name
		req.JSONMode = true
	}

	return req, nil
}

func (e *Engine) buildImageRequest(tc *types.TierConfig, params *types.ImageParams) *types.ImageRequest {
	req := &types.ImageRequest{
		Model:          tc.Model,
		Prompt:         params.Prompt,
		NegativePrompt: params.NegativePrompt,
		Width:          orDefault(tc.Params.Width, defaultImageSize),
		Height:         orDefault(tc.Params.Height, defaultImageSize),
		Steps:          orDefault(tc.Params.Steps, defaultImageSteps),
		GuidanceScale:  tc.Params.GuidanceScale,
		Scheduler:      tc.Params.Scheduler,
	}

	if params.Width != nil {
		req.Width = *params.Width
	}
	if params.Height != nil {
		req.Height = *params.Height
	}
	if params.Steps != nil {
		req.Steps = *params.Steps
	}
	if params.Seed != nil {
		req.Seed = *params.Seed
	} else {
		req.Seed = e.seed()
	}
	return req
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func extractRaw(raw interface{}) (string, bool) {
	b, err := json.Marshal(raw)
	if err != nil {
		return "", false
	}
	var payload interface{}
	if err := json.Unmarshal(b, &payload); err != nil {
		return "", false
	}
	return providers.ExtractContent(payload)
}

