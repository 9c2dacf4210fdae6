package routing

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/architect-ai/model-router/internal/availability"
	"github.com/architect-ai/model-router/internal/invocation"
	"github.com/architect-ai/model-router/internal/overrides"
	"github.com/architect-ai/model-router/internal/performance"
	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/types"
)

// Router resolves task identifiers to tier chains and invokes them
type Router struct {
	registry  *registry.Registry
	overrides *overrides.Resolver
	monitor   *availability.Monitor
	engine    *invocation.Engine
	tracker   *performance.Tracker
	escalator *Escalator
	logger    *logrus.Logger
}

// NewRouter wires the routing components together. It performs no I/O;
// call Initialize before serving traffic.
func NewRouter(
	reg *registry.Registry,
	ov *overrides.Resolver,
	monitor *availability.Monitor,
	engine *invocation.Engine,
	tracker *performance.Tracker,
	logger *logrus.Logger,
) *Router {
	r := &Router{
		registry:  reg,
		overrides: ov,
		monitor:   monitor,
		engine:    engine,
		tracker:   tracker,
		logger:    logger,
	}
	r.escalator = NewEscalator(r, monitor, logger)
	return r
}

// Initialize runs the first availability probe round
func (r *Router) Initialize(ctx context.Context) error {
	if err := r.monitor.Initialize(ctx); err != nil {
		return err
	}
	r.logger.WithField("tasks", len(r.registry.Tasks())).Info("Router initialized")
	return nil
}

// Close stops background work
func (r *Router) Close() {
	r.monitor.Close()
}

// InvokeText runs a text task through its escalation chain
func (r *Router) InvokeText(ctx context.Context, taskIdentifier string, params *types.TextParams) (*types.InvocationResult, error) {
	if params == nil {
		params = &types.TextParams{}
	}
	if err := r.checkKind(taskIdentifier, types.KindText); err != nil {
		return nil, err
	}

	return r.escalator.Execute(ctx, taskIdentifier, params.Options, func(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier) (*types.ProviderResponse, error) {
		return r.engine.InvokeText(ctx, cfg, tier, params)
	})
}

// InvokeImage runs an image task through its escalation chain
func (r *Router) InvokeImage(ctx context.Context, taskIdentifier string, params *types.ImageParams) (*types.InvocationResult, error) {
	if params == nil {
		params = &types.ImageParams{}
	}
	if err := r.checkKind(taskIdentifier, types.KindImage); err != nil {
		return nil, err
	}

	return r.escalator.Execute(ctx, taskIdentifier, params.Options, func(ctx context.Context, cfg *types.ResolvedModelConfig, tier types.Tier) (*types.ProviderResponse, error) {
		return r.engine.InvokeImage(ctx, cfg, tier, params)
	})
}

// Registry exposes the task registry
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Stats returns a copy of the performance map
func (r *Router) Stats() map[string]types.PerformanceEntry {
	return r.tracker.GetStats()
}

// Availability returns the cached provider availability
func (r *Router) Availability() types.AvailabilitySnapshot {
	return r.monitor.GetSnapshot()
}

// RefreshAvailability probes every provider now
func (r *Router) RefreshAvailability(ctx context.Context) (types.AvailabilitySnapshot, error) {
	return r.monitor.Refresh(ctx)
}

func (r *Router) checkKind(taskIdentifier string, want types.TaskKind) error {
	resolution, err := r.registry.Resolve(taskIdentifier)
	if err != nil {
		return err
	}
	if kind := resolution.ResolvedTask.Kind(); kind != want {
		return types.NewConfigurationError(taskIdentifier,
			"task %s produces %s output and cannot be invoked as %s", resolution.ResolvedTask, kind, want)
	}
	return nil
}
