package routing

import (
	"strings"

	"github.com/architect-ai/model-router/internal/registry"
	"github.com/architect-ai/model-router/internal/types"
)

// modelPrefixes maps well-known model name prefixes to the provider serving
// them. Overrides that name a model from another vendor switch the tier's
// provider with it. An empty entry keeps the registry provider, so an image
// model named on a text task is not routed to a client that cannot serve it.
var modelPrefixes = []struct {
	prefix string
	text   string
	image  string
}{
	{"dall-e", "", registry.ProviderOpenAIImage},
	{"gpt-image", "", registry.ProviderOpenAIImage},
	{"gpt-", registry.ProviderOpenAI, registry.ProviderOpenAIImage},
	{"o1", registry.ProviderOpenAI, ""},
	{"o3", registry.ProviderOpenAI, ""},
	{"o4", registry.ProviderOpenAI, ""},
	{"claude-", registry.ProviderAnthropic, ""},
	{"gemini-", registry.ProviderGemini, ""},
	{"black-forest-labs/", "", registry.ProviderTogetherImage},
	{"stabilityai/", "", registry.ProviderTogetherImage},
}

// inferProvider guesses the provider for a model name, or returns "" when the
// name carries no hint.
func inferProvider(model string, kind types.TaskKind) string {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		if kind == types.KindImage {
			return p.image
		}
		return p.text
	}
	// org/model names are served by Together
	if strings.Contains(model, "/") {
		if kind == types.KindImage {
			return registry.ProviderTogetherImage
		}
		return registry.ProviderTogether
	}
	return ""
}

// GetModelConfig resolves a task identifier into its per-tier configuration,
// applying environment overrides. Overrides are read on every call.
func (r *Router) GetModelConfig(taskIdentifier string) (*types.ResolvedModelConfig, error) {
	resolution, err := r.registry.Resolve(taskIdentifier)
	if err != nil {
		return nil, err
	}

	candidates, err := r.registry.GetTierCandidates(resolution.ResolvedTask)
	if err != nil {
		return nil, err
	}

	o := r.overrides.GetOverrides(resolution.Normalized, resolution.ResolvedTask)
	if err := r.overrides.RequirePrimary(taskIdentifier, resolution.ResolvedTask, o); err != nil {
		return nil, err
	}

	kind := resolution.ResolvedTask.Kind()
	cfg := &types.ResolvedModelConfig{
		TaskIdentifier:         taskIdentifier,
		ResolvedTaskIdentifier: resolution.ResolvedTask,
		Primary:                applyOverride(candidates.Primary, candidates.Primary, o.Primary, kind),
		Fallback:               applyOverride(candidates.Fallback, candidates.Primary, o.Fallback, kind),
		Emergency:              applyOverride(candidates.Emergency, candidates.Primary, o.Emergency, kind),
	}
	if cfg.Primary == nil {
		return nil, types.NewConfigurationError(taskIdentifier, "no primary tier resolved for %s", resolution.ResolvedTask)
	}

	cfg.Provider = cfg.Primary.Provider
	cfg.Params = cfg.Primary.Params

	sources := make(map[string]string, len(o.Sources))
	for tier, key := range o.Sources {
		sources[string(tier)] = key
	}
	cfg.Metadata = map[string]interface{}{
		"alias":           resolution.Alias,
		"normalizedTask":  string(resolution.Normalized),
		"kind":            string(kind),
		"overrideSources": sources,
		"strictRouting":   r.overrides.IsStrictRoutingEnabled(),
	}

	return cfg, nil
}

// applyOverride returns the tier to use. An override for a tier the registry
// leaves empty creates it from the primary's parameters.
func applyOverride(tier, primary *types.TierConfig, override *string, kind types.TaskKind) *types.TierConfig {
	if override == nil {
		if tier == nil {
			return nil
		}
		c := *tier
		return &c
	}

	base := tier
	if base == nil {
		base = primary
	}
	c := base.WithModel(*override)
	if tier == nil {
		c.CostPerCall = 0
		c.AvgLatency = 0
		c.Reliability = 0
	}
	if provider := inferProvider(*override, kind); provider != "" {
		c.Provider = provider
	}
	return &c
}
