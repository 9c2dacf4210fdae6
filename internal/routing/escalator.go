package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/metrics"
	"github.com/architect-ai/model-router/internal/types"
)

// ErrNoTiers is reported when options disable every configured tier
var ErrNoTiers = errors.New("no tiers left to attempt")

// ModelConfigResolver produces the per-call model configuration
type ModelConfigResolver interface {
	GetModelConfig(taskIdentifier string) (*types.ResolvedModelConfig, error)
}

// AvailabilityChecker reports the cached availability of a provider
type AvailabilityChecker interface {
	IsAvailable(provider string) bool
}

// CallFunc performs one invocation of one tier
type CallFunc func(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier) (*types.ProviderResponse, error)

// Escalator walks the tier chain for one call, in order, at most once per tier
type Escalator struct {
	resolver     ModelConfigResolver
	availability AvailabilityChecker
	logger       *logrus.Logger
	now          func() time.Time
}

// NewEscalator creates an escalator. availability may be nil.
func NewEscalator(resolver ModelConfigResolver, availability AvailabilityChecker, logger *logrus.Logger) *Escalator {
	return &Escalator{
		resolver:     resolver,
		availability: availability,
		logger:       logger,
		now:          time.Now,
	}
}

type planStep struct {
	tier   types.Tier
	config *types.TierConfig
}

// buildPlan lists the tiers that may be attempted for cfg under opts
func buildPlan(cfg *types.ResolvedModelConfig, opts types.InvocationOptions) []planStep {
	steps := make([]planStep, 0, len(types.OrderedTiers))
	for _, tier := range types.OrderedTiers {
		tc := cfg.Tier(tier)
		if tc == nil || !opts.Allows(tier) {
			continue
		}
		steps = append(steps, planStep{tier: tier, config: tc})
	}
	return steps
}

// Execute resolves taskIdentifier and runs call against each planned tier
// until one succeeds. Configuration errors are returned as errors; an
// exhausted chain is reported through the result with a nil error.
func (e *Escalator) Execute(ctx context.Context, taskIdentifier string, opts types.InvocationOptions, call CallFunc) (*types.InvocationResult, error) {
	start := e.now()

	cfg, err := e.resolver.GetModelConfig(taskIdentifier)
	if err != nil {
		return nil, err
	}

	plan := buildPlan(cfg, opts)
	metadata := types.ResultMetadata{
		TaskIdentifier:         taskIdentifier,
		ResolvedTaskIdentifier: cfg.ResolvedTaskIdentifier,
		RequestID:              opts.RequestID,
	}

	logger := e.logger.WithFields(logrus.Fields{
		"task":          taskIdentifier,
		"resolved_task": cfg.ResolvedTaskIdentifier,
		"request_id":    opts.RequestID,
	})

	var lastErr error
	for i, step := range plan {
		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = fmt.Errorf("call chain cancelled before %s tier: %w", step.tier, ctxErr)
			break
		}

		last := i == len(plan)-1
		if e.availability != nil && !e.availability.IsAvailable(step.config.Provider) {
			metadata.UnavailableTiers = append(metadata.UnavailableTiers, step.tier)
			metrics.UnavailableAttemptsTotal.WithLabelValues(step.config.Provider, string(step.tier)).Inc()
			logger.WithFields(logrus.Fields{
				"tier":     step.tier,
				"model":    step.config.Model,
				"provider": step.config.Provider,
			}).Warn("Provider reported unavailable, attempting anyway")
		}

		metadata.Attempts++
		resp, err := call(ctx, cfg, step.tier)
		if err == nil {
			metadata.Model = resp.Model
			metadata.Provider = resp.Provider
			metadata.SelectionTier = step.tier
			metadata.LatencyMs = e.now().Sub(start).Milliseconds()
			metadata.Timestamp = e.now()

			logger.WithFields(logrus.Fields{
				"tier":       step.tier,
				"model":      resp.Model,
				"provider":   resp.Provider,
				"attempt":    metadata.Attempts,
				"latency_ms": metadata.LatencyMs,
			}).Info("Request routed")

			return &types.InvocationResult{
				Success:    true,
				Data:       resp.Data,
				RawContent: resp.Content,
				Metadata:   metadata,
			}, nil
		}

		if !types.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		if !last {
			metrics.EscalationsTotal.WithLabelValues(string(cfg.ResolvedTaskIdentifier), string(step.tier)).Inc()
		}
		logger.WithFields(logrus.Fields{
			"tier":     step.tier,
			"model":    step.config.Model,
			"provider": step.config.Provider,
			"attempt":  metadata.Attempts,
		}).WithError(err).Warn("Tier failed, escalating")
	}

	if lastErr == nil {
		lastErr = ErrNoTiers
	}

	metadata.LatencyMs = e.now().Sub(start).Milliseconds()
	metadata.Timestamp = e.now()
	metrics.ExhaustedChainsTotal.WithLabelValues(string(cfg.ResolvedTaskIdentifier)).Inc()

	logger.WithFields(logrus.Fields{
		"attempts":   metadata.Attempts,
		"latency_ms": metadata.LatencyMs,
	}).WithError(lastErr).Error("All tiers failed")

	return &types.InvocationResult{
		Success:  false,
		Error:    lastErr.Error(),
		Metadata: metadata,
	}, nil
}
